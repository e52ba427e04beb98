// ABOUTME: VBAN audio packet encoding and decoding
// ABOUTME: Builds and parses the 28-byte header followed by raw PCM payload
package vban

import (
	"encoding/binary"
	"errors"

	"github.com/vbancast/vbancast-go/pkg/audio"
)

const (
	// HeaderSize is the fixed VBAN header length
	HeaderSize = 28

	// NameSize is the length of the stream name field
	NameSize = 16

	// MaxSamplesPerFrame is the largest sample count per channel in one packet
	MaxSamplesPerFrame = 256

	// MaxChannels is the largest channel count the header can carry
	MaxChannels = 256

	// MaxPayloadBytes is the payload size VBAN recommends staying under
	MaxPayloadBytes = 1436

	protocolAudio = 0x00
	codecPCM      = 0x00

	protocolMask   = 0xE0
	rateIndexMask  = 0x1F
	codecMask      = 0xE0
	resolutionMask = 0x07
)

var magic = [4]byte{'V', 'B', 'A', 'N'}

var (
	ErrUnsupportedRate = errors.New("vban: sample rate not in table")
	ErrBitDepth        = errors.New("vban: unsupported bit depth")
	ErrSamplesPerFrame = errors.New("vban: samples per frame out of range")
	ErrChannels        = errors.New("vban: channel count out of range")
)

// Header holds the decoded fields of an audio packet header
type Header struct {
	SampleRate      int
	SamplesPerFrame int
	Channels        int
	BitsPerSample   int
	Name            string
	FrameCounter    uint32
}

// Format returns the PCM format described by the header
func (h Header) Format() audio.Format {
	return audio.Format{
		SampleRate: h.SampleRate,
		Channels:   h.Channels,
		BitDepth:   h.BitsPerSample,
	}
}

// Packet is a parsed audio packet. Payload aliases the buffer passed to
// Decode and must be treated as read-only.
type Packet struct {
	Header
	Payload []byte
}

// resolution codes 0-3 map to 8/16/24/32-bit signed PCM
func resolutionCode(bits int) (byte, bool) {
	switch bits {
	case 8:
		return 0, true
	case 16:
		return 1, true
	case 24:
		return 2, true
	case 32:
		return 3, true
	}
	return 0, false
}

func resolutionBits(code byte) (int, bool) {
	switch code {
	case 0:
		return 8, true
	case 1:
		return 16, true
	case 2:
		return 24, true
	case 3:
		return 32, true
	}
	return 0, false
}

// Encode builds a packet into a freshly allocated buffer
func Encode(h Header, payload []byte) ([]byte, error) {
	return AppendPacket(make([]byte, 0, HeaderSize+len(payload)), h, payload)
}

// AppendPacket appends the encoded header and payload to dst. The name is
// normalized to at most 16 ASCII bytes.
func AppendPacket(dst []byte, h Header, payload []byte) ([]byte, error) {
	rateIdx, ok := RateIndex(h.SampleRate)
	if !ok {
		return dst, ErrUnsupportedRate
	}
	res, ok := resolutionCode(h.BitsPerSample)
	if !ok {
		return dst, ErrBitDepth
	}
	if h.SamplesPerFrame < 1 || h.SamplesPerFrame > MaxSamplesPerFrame {
		return dst, ErrSamplesPerFrame
	}
	if h.Channels < 1 || h.Channels > MaxChannels {
		return dst, ErrChannels
	}

	var hdr [HeaderSize]byte
	copy(hdr[0:4], magic[:])
	hdr[4] = protocolAudio<<5 | byte(rateIdx)
	hdr[5] = byte(h.SamplesPerFrame - 1)
	hdr[6] = byte(h.Channels - 1)
	hdr[7] = codecPCM<<5 | res
	copy(hdr[8:8+NameSize], NormalizeName(h.Name))
	binary.LittleEndian.PutUint32(hdr[24:28], h.FrameCounter)

	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst, nil
}

// Decode parses a datagram. It returns false for anything that is not a
// well-formed PCM audio packet and never panics.
func Decode(data []byte) (Packet, bool) {
	if len(data) < HeaderSize {
		return Packet{}, false
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return Packet{}, false
	}
	if (data[4]&protocolMask)>>5 != protocolAudio {
		return Packet{}, false
	}
	rateIdx := int(data[4] & rateIndexMask)
	if rateIdx >= len(Rates) {
		return Packet{}, false
	}
	if (data[7]&codecMask)>>5 != codecPCM {
		return Packet{}, false
	}
	bits, ok := resolutionBits(data[7] & resolutionMask)
	if !ok {
		return Packet{}, false
	}

	return Packet{
		Header: Header{
			SampleRate:      Rates[rateIdx],
			SamplesPerFrame: int(data[5]) + 1,
			Channels:        int(data[6]) + 1,
			BitsPerSample:   bits,
			Name:            trimName(data[8 : 8+NameSize]),
			FrameCounter:    binary.LittleEndian.Uint32(data[24:28]),
		},
		Payload: data[HeaderSize:],
	}, true
}

// NormalizeName truncates a stream name to 16 bytes and replaces any byte
// outside printable ASCII with '_'
func NormalizeName(name string) string {
	b := make([]byte, 0, NameSize)
	for i := 0; i < len(name) && len(b) < NameSize; i++ {
		c := name[i]
		if c < 0x20 || c > 0x7E {
			c = '_'
		}
		b = append(b, c)
	}
	return string(b)
}

func trimName(field []byte) string {
	for i, c := range field {
		if c == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
