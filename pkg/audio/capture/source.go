// ABOUTME: Capture source interface and constructor
// ABOUTME: Picks a tone, file or device source from a name
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbancast/vbancast-go/pkg/audio"
)

// Source provides captured PCM audio
type Source interface {
	// Read fills p with whole frames of interleaved PCM. It returns io.EOF
	// once the source is exhausted or closed.
	Read(p []byte) (int, error)

	// Format returns the PCM format of the data returned by Read
	Format() audio.Format

	// Close releases the source and unblocks a pending Read
	Close() error
}

// DefaultFormat is used for tone and device sources when no format is given
var DefaultFormat = audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}

// Open creates a source from name:
//
//	"" or "tone"  440Hz test tone
//	"device"      default capture device
//	*.mp3, *.flac looping file playback
//
// format applies to tone and device sources; zero fields take DefaultFormat
// values. File sources report the file's own format.
func Open(name string, format audio.Format) (Source, error) {
	format = withDefaults(format)

	switch name {
	case "", "tone":
		return NewTone(format, 440, true)
	case "device":
		return OpenDevice(format)
	}

	if _, err := os.Stat(name); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", name)
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".mp3":
		return NewMP3Source(name)
	case ".flac":
		return NewFLACSource(name)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

func withDefaults(f audio.Format) audio.Format {
	if f.SampleRate == 0 {
		f.SampleRate = DefaultFormat.SampleRate
	}
	if f.Channels == 0 {
		f.Channels = DefaultFormat.Channels
	}
	if f.BitDepth == 0 {
		f.BitDepth = DefaultFormat.BitDepth
	}
	return f
}
