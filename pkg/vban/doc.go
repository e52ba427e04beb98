// ABOUTME: VBAN wire protocol package
// ABOUTME: Stateless codec for audio-over-UDP packets
// Package vban implements the VBAN audio packet format.
//
// A packet is a 28-byte header followed by little-endian PCM:
//
//	0..3   "VBAN"
//	4      protocol<<5 | sample rate index
//	5      samples per frame - 1
//	6      channels - 1
//	7      codec<<5 | bit resolution code
//	8..23  stream name, NUL padded
//	24..27 frame counter (little-endian)
//
// Decode never fails loudly: malformed datagrams are reported with a
// false return so one bad packet cannot disturb a listener.
//
// Example:
//
//	pkt, err := vban.Encode(vban.Header{
//	    SampleRate:      48000,
//	    SamplesPerFrame: 256,
//	    Channels:        2,
//	    BitsPerSample:   16,
//	    Name:            "Stream1",
//	}, pcm)
package vban
