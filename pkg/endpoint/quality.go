// ABOUTME: Quality tiers for packet size and jitter buffer depth
// ABOUTME: Maps each tier to reference bytes per packet and buffered samples
package endpoint

import (
	"fmt"
	"strings"

	"github.com/vbancast/vbancast-go/pkg/vban"
)

// Quality trades latency for robustness. Higher tiers send larger
// packets and buffer more audio on the receiving side.
type Quality int

const (
	QualityOptimal Quality = iota
	QualityFast
	QualityMedium
	QualitySlow
	QualityVerySlow
)

var qualityNames = [...]string{"optimal", "fast", "medium", "slow", "veryslow"}

var qualityBytes = [...]int{256, 512, 768, 1024, vban.MaxPayloadBytes}

var qualitySamples = [...]int{512, 1024, 2048, 4096, 8192}

// Valid reports whether q is a known tier
func (q Quality) Valid() bool {
	return q >= QualityOptimal && q <= QualityVerySlow
}

// ReferenceBytes is the target payload size of one packet
func (q Quality) ReferenceBytes() int {
	if !q.Valid() {
		return qualityBytes[QualityFast]
	}
	return qualityBytes[q]
}

// ReferenceSamples is the target jitter buffer depth in 48kHz samples
func (q Quality) ReferenceSamples() int {
	if !q.Valid() {
		return qualitySamples[QualityFast]
	}
	return qualitySamples[q]
}

func (q Quality) String() string {
	if !q.Valid() {
		return fmt.Sprintf("quality(%d)", int(q))
	}
	return qualityNames[q]
}

// ParseQuality parses a tier name, case-insensitively
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range qualityNames {
		if s == name {
			return Quality(i), nil
		}
	}
	return QualityFast, fmt.Errorf("unknown quality %q (supported: %s)", s, strings.Join(qualityNames[:], ", "))
}

func (q Quality) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("invalid quality: %d", int(q))
	}
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
