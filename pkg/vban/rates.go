// ABOUTME: VBAN sample rate table
// ABOUTME: Maps between sample rates and their 5-bit header index
package vban

// Rates is the fixed, ordered VBAN sample rate table. The header stores
// the index, not the rate.
var Rates = [...]int{
	6000, 12000, 24000, 48000, 96000, 192000, 384000,
	8000, 16000, 32000, 64000, 128000, 256000, 512000,
	11025, 22050, 44100, 88200, 176400, 352800, 705600,
}

// RateIndex returns the table index of rate
func RateIndex(rate int) (int, bool) {
	for i, r := range Rates {
		if r == rate {
			return i, true
		}
	}
	return 0, false
}

// SupportedRate reports whether rate can be carried in a packet
func SupportedRate(rate int) bool {
	_, ok := RateIndex(rate)
	return ok
}
