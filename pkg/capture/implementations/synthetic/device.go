// Package synthetic provides a scripted capture device which produces
// voiced or silent buffers on demand. It is used by tests and by the
// "synthetic" source of cmd/voicerec.
package synthetic

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/capture"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultBufferDuration = 100 * time.Millisecond
	DefaultAmplitude      = int16(8000)
)

type Device struct {
	// BufferDuration defines the size of each buffer, and how much
	// the Clock is advanced on each read.
	BufferDuration time.Duration

	// Script defines which buffers are voiced. When the script is over
	// Read blocks until the context is cancelled or the handle is closed,
	// unless Repeat is set.
	Script []bool
	Repeat bool

	// Amplitude is the sample magnitude of voiced buffers; silent buffers
	// are all zeros.
	Amplitude int16

	// Clock (if set) is advanced by BufferDuration on each read.
	Clock *Clock

	// Realtime makes each read wait BufferDuration, to emulate a real device.
	Realtime bool

	// FailReadAt makes the n-th read (1-based, counting across handles) fail.
	FailReadAt uint64

	UnsupportedRates   []audio.SampleRate
	UninitializedRates []audio.SampleRate

	locker    xsync.Mutex
	handles   []*Handle
	readCount atomic.Uint64
	drained   chan struct{}
	initOnce  sync.Once
	drainOnce sync.Once
}

var _ capture.Device = (*Device)(nil)

func New(script ...bool) *Device {
	return &Device{
		BufferDuration: DefaultBufferDuration,
		Script:         script,
		Amplitude:      DefaultAmplitude,
	}
}

// Voiced returns a script of n voiced buffers.
func Voiced(n int) []bool {
	return repeatBool(true, n)
}

// Silent returns a script of n silent buffers.
func Silent(n int) []bool {
	return repeatBool(false, n)
}

func repeatBool(v bool, n int) []bool {
	s := make([]bool, n)
	for idx := range s {
		s[idx] = v
	}
	return s
}

func (d *Device) MinBufferSize(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (int, error) {
	if slices.Contains(d.UnsupportedRates, sampleRate) {
		return 0, fmt.Errorf("%d Hz: %w", sampleRate, capture.ErrUnsupported)
	}
	if format != audio.PCMFormatS16LE {
		return 0, fmt.Errorf("format %v: %w", format, capture.ErrUnsupported)
	}
	enc := audio.EncodingPCM{
		PCMFormat:  format,
		SampleRate: sampleRate,
	}
	return int(enc.BytesForDuration(d.BufferDuration) * uint64(channels)), nil
}

func (d *Device) Open(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	bufferSize int,
) (capture.Handle, error) {
	h := &Handle{
		device:     d,
		sampleRate: sampleRate,
		channels:   channels,
		bufferSize: bufferSize,
		state:      capture.StateInitialized,
		closed:     make(chan struct{}),
	}
	if slices.Contains(d.UninitializedRates, sampleRate) {
		h.state = capture.StateUninitialized
	}
	d.locker.Do(ctx, func() {
		d.handles = append(d.handles, h)
	})
	logger.Debugf(ctx, "opened a synthetic handle at %d Hz in state '%s'", sampleRate, h.state)
	return h, nil
}

// Handles returns all the handles ever opened on the device.
func (d *Device) Handles() []*Handle {
	ctx := xsync.WithNoLogging(context.Background(), true)
	return xsync.DoR1(ctx, &d.locker, func() []*Handle {
		return slices.Clone(d.handles)
	})
}

// ReadCount returns the amount of buffers produced so far.
func (d *Device) ReadCount() uint64 {
	return d.readCount.Load()
}

// Drained is closed when the script is over (never closed if Repeat is set).
func (d *Device) Drained() <-chan struct{} {
	return d.drainedChan()
}

func (d *Device) drainedChan() chan struct{} {
	d.initOnce.Do(func() {
		d.drained = make(chan struct{})
	})
	return d.drained
}

func (d *Device) fill(buf []byte, voiced bool) {
	clear(buf)
	if !voiced {
		return
	}
	for idx := 0; idx+1 < len(buf); idx += 2 {
		sample := d.Amplitude
		if (idx/2)%2 == 1 {
			sample = -sample
		}
		binary.LittleEndian.PutUint16(buf[idx:], uint16(sample))
	}
}

type Handle struct {
	device     *Device
	sampleRate audio.SampleRate
	channels   audio.Channel
	bufferSize int
	state      capture.State

	isStarted atomic.Bool
	isClosed  atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
}

var _ capture.Handle = (*Handle)(nil)

func (h *Handle) State() capture.State {
	return h.state
}

func (h *Handle) SampleRate() audio.SampleRate {
	return h.sampleRate
}

func (h *Handle) Start(context.Context) error {
	if h.isClosed.Load() {
		return capture.ErrHandleClosed
	}
	if h.state != capture.StateInitialized {
		return fmt.Errorf("the handle is not initialized")
	}
	h.isStarted.Store(true)
	return nil
}

func (h *Handle) Stop(context.Context) error {
	h.isStarted.Store(false)
	return nil
}

func (h *Handle) IsStarted() bool {
	return h.isStarted.Load()
}

func (h *Handle) IsClosed() bool {
	return h.isClosed.Load()
}

func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.isClosed.Store(true)
		close(h.closed)
	})
	return nil
}

func (h *Handle) Read(
	ctx context.Context,
	buf []byte,
) (int, error) {
	if h.isClosed.Load() {
		return 0, capture.ErrHandleClosed
	}
	if !h.isStarted.Load() {
		return 0, fmt.Errorf("the handle is not started")
	}

	d := h.device
	idx := d.readCount.Load()
	if !d.Repeat && idx >= uint64(len(d.Script)) {
		d.drainOnce.Do(func() { close(d.drainedChan()) })
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-h.closed:
			return 0, capture.ErrHandleClosed
		}
	}
	idx = d.readCount.Add(1)
	if d.FailReadAt != 0 && idx == d.FailReadAt {
		return 0, fmt.Errorf("synthetic read failure at buffer #%d", idx)
	}

	if d.Realtime {
		t := time.NewTimer(d.BufferDuration)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-h.closed:
			t.Stop()
			return 0, capture.ErrHandleClosed
		case <-t.C:
		}
	}

	voiced := false
	if len(d.Script) > 0 {
		voiced = d.Script[(idx-1)%uint64(len(d.Script))]
	}
	n := min(len(buf), h.bufferSize)
	d.fill(buf[:n], voiced)
	if d.Clock != nil {
		d.Clock.Advance(d.BufferDuration)
	}
	return n, nil
}
