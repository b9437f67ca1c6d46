// Package portaudio implements a capture device on top of PortAudio
// (the default input device), with real format-support probing.
package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/capture"
)

const DefaultBufferDuration = 100 * time.Millisecond

type Device struct {
	BufferDuration time.Duration
}

var _ capture.Device = (*Device)(nil)

func New() *Device {
	return &Device{
		BufferDuration: DefaultBufferDuration,
	}
}

func (d *Device) framesPerBuffer(sampleRate audio.SampleRate) int {
	return int(time.Duration(sampleRate) * d.BufferDuration / time.Second)
}

func (d *Device) streamParameters(
	sampleRate audio.SampleRate,
	channels audio.Channel,
) (portaudio.StreamParameters, error) {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return portaudio.StreamParameters{}, fmt.Errorf("unable to get the default input device: %w", err)
	}
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = int(channels)
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = d.framesPerBuffer(sampleRate)
	return params, nil
}

func (d *Device) MinBufferSize(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (_ret int, _err error) {
	logger.Tracef(ctx, "MinBufferSize(ctx, %d, %d, %v)", sampleRate, channels, format)
	defer func() { logger.Tracef(ctx, "/MinBufferSize(ctx, %d, %d, %v): %d %v", sampleRate, channels, format, _ret, _err) }()

	if format != audio.PCMFormatS16LE {
		return 0, fmt.Errorf("format %v: %w", format, capture.ErrUnsupported)
	}
	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("unable to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	params, err := d.streamParameters(sampleRate, channels)
	if err != nil {
		return 0, err
	}
	samples := make([]int16, params.FramesPerBuffer*int(channels))
	if err := portaudio.IsFormatSupported(params, samples); err != nil {
		return 0, fmt.Errorf("%d Hz: %v: %w", sampleRate, err, capture.ErrUnsupported)
	}
	return len(samples) * 2, nil
}

// Open opens a blocking input stream; if PortAudio refuses to open it,
// the returned handle is uninitialized.
func (d *Device) Open(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	bufferSize int,
) (capture.Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize PortAudio: %w", err)
	}
	h := &Handle{
		sampleRate: sampleRate,
		samples:    make([]int16, bufferSize/2),
	}

	params, err := d.streamParameters(sampleRate, channels)
	if err != nil {
		logger.Debugf(ctx, "%v", err)
		return h, nil
	}
	params.FramesPerBuffer = len(h.samples) / int(channels)
	stream, err := portaudio.OpenStream(params, h.samples)
	if err != nil {
		logger.Debugf(ctx, "unable to open a PortAudio stream at %d Hz: %v", sampleRate, err)
		return h, nil
	}
	h.stream = stream
	return h, nil
}

type Handle struct {
	sampleRate audio.SampleRate
	stream     *portaudio.Stream
	samples    []int16

	locker    sync.Mutex
	isStarted bool
	isClosed  bool
}

var _ capture.Handle = (*Handle)(nil)

func (h *Handle) State() capture.State {
	if h.stream == nil {
		return capture.StateUninitialized
	}
	return capture.StateInitialized
}

func (h *Handle) SampleRate() audio.SampleRate {
	return h.sampleRate
}

func (h *Handle) Start(ctx context.Context) error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.isClosed {
		return capture.ErrHandleClosed
	}
	if h.stream == nil {
		return fmt.Errorf("the stream is not initialized")
	}
	if err := h.stream.Start(); err != nil {
		return err
	}
	h.isStarted = true
	return nil
}

// Read blocks until a whole buffer is captured. The context is not
// checked: PortAudio's blocking read cannot be interrupted, but it
// returns after one buffer duration.
func (h *Handle) Read(
	ctx context.Context,
	buf []byte,
) (int, error) {
	if h.stream == nil {
		return 0, capture.ErrHandleClosed
	}
	if err := h.stream.Read(); err != nil {
		return 0, err
	}
	n := min(len(buf)/2, len(h.samples))
	for idx, sample := range h.samples[:n] {
		binary.LittleEndian.PutUint16(buf[idx*2:], uint16(sample))
	}
	return n * 2, nil
}

func (h *Handle) Stop(ctx context.Context) error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if !h.isStarted {
		return nil
	}
	h.isStarted = false
	return h.stream.Stop()
}

func (h *Handle) Close() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.isClosed {
		return nil
	}
	h.isClosed = true

	var mErr *multierror.Error
	if h.stream != nil {
		if err := h.stream.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the stream: %w", err))
		}
	}
	if err := portaudio.Terminate(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to terminate PortAudio: %w", err))
	}
	return mErr.ErrorOrNil()
}
