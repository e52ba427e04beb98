// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a ring buffer feeding the device callback
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// ringMillis is the ring buffer capacity in milliseconds
const ringMillis = 500

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	ready      atomic.Bool
	overflow   atomic.Uint64

	ringBuffer *RingBuffer
	scratch    []int16
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Start initializes the playback device
func (m *Malgo) Start(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}
	if m.device != nil {
		log.Printf("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.ringBuffer = NewRingBuffer(sampleRate * channels * ringMillis / 1000)
	m.sampleRate = sampleRate
	m.channels = channels

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.ready.Store(true)

	log.Printf("Audio output initialized: %dHz, %d channels (malgo/S16)", sampleRate, channels)
	return nil
}

// Write queues audio for playback. Audio that does not fit in the ring
// buffer is dropped rather than blocking the caller.
func (m *Malgo) Write(pcm []byte) error {
	if !m.ready.Load() {
		return fmt.Errorf("output not started")
	}
	if n := m.ringBuffer.WriteBytes(pcm); n < len(pcm)/2 {
		m.overflow.Add(uint64(len(pcm)/2 - n))
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.channels
	if cap(m.scratch) < total {
		m.scratch = make([]int16, total)
	}
	samples := m.scratch[:total]

	m.ringBuffer.Read(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pOutput[i*2:], uint16(s))
	}
}

// Overflow returns the number of samples dropped because the device fell behind
func (m *Malgo) Overflow() uint64 { return m.overflow.Load() }

// Stop releases the device and context
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	m.ready.Store(false)
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
}

func (m *Malgo) IsStarted() bool { return m.ready.Load() }
