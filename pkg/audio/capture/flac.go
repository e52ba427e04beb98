// ABOUTME: FLAC file source
// ABOUTME: Decodes with mewkiz/flac at native bit depth and loops at end of file
package capture

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/vbancast/vbancast-go/pkg/audio"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file    *os.File
	stream  *flac.Stream
	format  audio.Format
	srcBits int
	title   string
	pacer   *pacer

	pending []byte // decoded bytes not yet returned

	done      chan struct{}
	closeOnce sync.Once
}

// NewFLACSource creates a new FLAC audio source. Streams whose bit depth
// is not 8/16/24/32 are widened to the next supported width.
func NewFLACSource(filePath string) (*FLACSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	srcBits := int(info.BitsPerSample)
	format := audio.Format{
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
		BitDepth:   outputBits(srcBits),
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		title, format.SampleRate, format.Channels, srcBits)

	s := &FLACSource{
		file:    f,
		stream:  stream,
		format:  format,
		srcBits: srcBits,
		title:   title,
		done:    make(chan struct{}),
	}
	s.pacer = newPacer(format.SampleRate, s.done)
	return s, nil
}

// outputBits rounds a FLAC bit depth up to a supported PCM width
func outputBits(bits int) int {
	switch {
	case bits <= 8:
		return 8
	case bits <= 16:
		return 16
	case bits <= 24:
		return 24
	}
	return 32
}

func (s *FLACSource) Read(p []byte) (int, error) {
	if s.closed() {
		return 0, io.EOF
	}

	want := s.format.Frames(len(p)) * s.format.BytesPerFrame()
	for len(s.pending) < want {
		if err := s.decodeFrame(); err != nil {
			if s.closed() {
				return 0, io.EOF
			}
			return 0, err
		}
	}

	n := copy(p[:want], s.pending)
	s.pending = s.pending[:copy(s.pending, s.pending[n:])]

	if !s.pacer.wait(s.format.Frames(n)) {
		return 0, io.EOF
	}
	return n, nil
}

// decodeFrame appends one FLAC frame to pending, looping at end of stream
func (s *FLACSource) decodeFrame() error {
	frame, err := s.stream.ParseNext()
	if errors.Is(err, io.EOF) {
		if _, seekErr := s.file.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("failed to seek to start: %w", seekErr)
		}
		stream, decErr := flac.New(s.file)
		if decErr != nil {
			return fmt.Errorf("failed to create new stream: %w", decErr)
		}
		s.stream = stream
		return nil
	}
	if err != nil {
		return fmt.Errorf("flac decode: %w", err)
	}

	shift := s.format.BitDepth - s.srcBits
	var buf [4]byte
	for i := 0; i < int(frame.BlockSize); i++ {
		for ch := 0; ch < s.format.Channels; ch++ {
			sample := frame.Subframes[ch].Samples[i] << shift
			switch s.format.BitDepth {
			case 8:
				s.pending = append(s.pending, byte(sample))
			case 16:
				s.pending = append(s.pending, byte(sample), byte(sample>>8))
			case 24:
				b := audio.SampleTo24Bit(sample)
				s.pending = append(s.pending, b[:]...)
			default:
				buf[0], buf[1], buf[2], buf[3] = byte(sample), byte(sample>>8), byte(sample>>16), byte(sample>>24)
				s.pending = append(s.pending, buf[:]...)
			}
		}
	}
	return nil
}

func (s *FLACSource) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *FLACSource) Format() audio.Format { return s.format }

// Title returns the file name without extension
func (s *FLACSource) Title() string { return s.title }

func (s *FLACSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.file.Close()
	})
	return err
}
