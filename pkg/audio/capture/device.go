// ABOUTME: Capture device source using malgo
// ABOUTME: Buffers miniaudio capture callbacks for blocking reads
package capture

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/vbancast/vbancast-go/pkg/audio"
)

// deviceQueueDepth is the number of callback periods buffered before
// the oldest captured audio is dropped
const deviceQueueDepth = 32

// Device captures from the default input device
type Device struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format

	blocks  chan []byte
	pending []byte
	dropped atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// OpenDevice initializes and starts the default capture device. Errors here
// are device failures and are returned to the caller of Start.
func OpenDevice(format audio.Format) (*Device, error) {
	malgoFormat, err := malgoFormat(format.BitDepth)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	d := &Device{
		malgoCtx: ctx,
		format:   format,
		blocks:   make(chan []byte, deviceQueueDepth),
		done:     make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgoFormat
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			d.onData(pInput, frameCount)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		d.freeContext()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		d.freeContext()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	d.device = device

	log.Printf("Capture device initialized: %s (malgo/%s)", format, formatName(malgoFormat))
	return d, nil
}

// malgoFormat maps a bit depth to a signed miniaudio sample format
func malgoFormat(bitDepth int) (malgo.FormatType, error) {
	switch bitDepth {
	case 16:
		return malgo.FormatS16, nil
	case 24:
		return malgo.FormatS24, nil
	case 32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("unsupported capture bit depth: %d (supported: 16, 24, 32)", bitDepth)
}

func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}

// onData runs on the audio thread and must not block
func (d *Device) onData(input []byte, frameCount uint32) {
	n := int(frameCount) * d.format.BytesPerFrame()
	if n > len(input) {
		n = len(input)
	}
	block := make([]byte, n)
	copy(block, input)

	for {
		select {
		case d.blocks <- block:
			return
		default:
		}
		// Full: drop the oldest block and retry
		select {
		case <-d.blocks:
			d.dropped.Add(1)
		default:
		}
	}
}

func (d *Device) Read(p []byte) (int, error) {
	want := d.format.Frames(len(p)) * d.format.BytesPerFrame()
	if want == 0 {
		return 0, nil
	}

	for len(d.pending) == 0 {
		select {
		case block := <-d.blocks:
			d.pending = block
		case <-d.done:
			return 0, io.EOF
		}
	}

	n := copy(p[:want], d.pending)
	n -= n % d.format.BytesPerFrame()
	d.pending = d.pending[n:]
	return n, nil
}

func (d *Device) Format() audio.Format { return d.format }

// Dropped returns the number of callback blocks discarded because the
// reader fell behind
func (d *Device) Dropped() uint64 { return d.dropped.Load() }

func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		if d.device != nil {
			if err := d.device.Stop(); err != nil {
				log.Printf("Warning: capture device stop error: %v", err)
			}
			d.device.Uninit()
		}
		d.freeContext()
	})
	return nil
}

func (d *Device) freeContext() {
	if d.malgoCtx == nil {
		return
	}
	if err := d.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	d.malgoCtx.Free()
	d.malgoCtx = nil
}
