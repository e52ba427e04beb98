// ABOUTME: MP3 file source
// ABOUTME: Decodes with go-mp3 and loops at end of file
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

	"github.com/hajimehoshi/go-mp3"
	"github.com/vbancast/vbancast-go/pkg/audio"
)

// MP3Source reads from an MP3 file. The decoder always produces 16-bit stereo.
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
	title   string
	pacer   *pacer

	done      chan struct{}
	closeOnce sync.Once
}

// NewMP3Source creates a new MP3 audio source
func NewMP3Source(filePath string) (*MP3Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", title, decoder.SampleRate())

	s := &MP3Source{
		file:    f,
		decoder: decoder,
		format:  audio.Format{SampleRate: decoder.SampleRate(), Channels: 2, BitDepth: 16},
		title:   title,
		done:    make(chan struct{}),
	}
	s.pacer = newPacer(s.format.SampleRate, s.done)
	return s, nil
}

func (s *MP3Source) Read(p []byte) (int, error) {
	if s.closed() {
		return 0, io.EOF
	}

	want := s.format.Frames(len(p)) * s.format.BytesPerFrame()
	n, err := io.ReadFull(s.decoder, p[:want])
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if loopErr := s.rewind(); loopErr != nil {
			return 0, loopErr
		}
		err = nil
	}
	if err != nil {
		if s.closed() {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("mp3 read: %w", err)
	}

	n -= n % s.format.BytesPerFrame()
	if !s.pacer.wait(s.format.Frames(n)) {
		return 0, io.EOF
	}
	return n, nil
}

// rewind seeks back to the start so playback loops
func (s *MP3Source) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new decoder: %w", err)
	}
	s.decoder = decoder
	return nil
}

func (s *MP3Source) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *MP3Source) Format() audio.Format { return s.format }

// Title returns the file name without extension
func (s *MP3Source) Title() string { return s.title }

func (s *MP3Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.file.Close()
	})
	return err
}
