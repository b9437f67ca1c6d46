// Package recorder implements a capture device on top of the automatically
// selected recording backend of github.com/xaionaro-go/audio (PulseAudio etc).
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
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

func (d *Device) MinBufferSize(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (int, error) {
	enc := audio.EncodingPCM{
		PCMFormat:  format,
		SampleRate: sampleRate,
	}
	size := int(enc.BytesForDuration(d.BufferDuration) * uint64(channels))
	if size <= 0 {
		return 0, fmt.Errorf("%d Hz, %d channels, %v: %w", sampleRate, channels, format, capture.ErrUnsupported)
	}
	return size, nil
}

// Open starts the recording right away (the recorded audio is not
// buffered until the handle is read); if the backend refuses the format,
// the returned handle is uninitialized.
func (d *Device) Open(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	bufferSize int,
) (capture.Handle, error) {
	r, w := io.Pipe()
	h := &Handle{
		sampleRate: sampleRate,
		reader:     r,
		writer:     w,
	}

	rec := audio.NewRecorderAuto(ctx)
	logger.Debugf(ctx, "using %T as the audio input", rec.RecorderPCM)
	stream, err := rec.RecordPCM(sampleRate, channels, format, w)
	if err != nil {
		logger.Debugf(ctx, "unable to record at %d Hz: %v", sampleRate, err)
		return h, nil
	}
	h.stream = stream
	h.state = capture.StateInitialized
	return h, nil
}

type Handle struct {
	sampleRate audio.SampleRate
	state      capture.State
	reader     *io.PipeReader
	writer     *io.PipeWriter
	stream     io.Closer

	closeOnce sync.Once
	closeErr  error
}

var _ capture.Handle = (*Handle)(nil)

func (h *Handle) State() capture.State {
	return h.state
}

func (h *Handle) SampleRate() audio.SampleRate {
	return h.sampleRate
}

func (h *Handle) Start(context.Context) error {
	if h.state != capture.StateInitialized {
		return fmt.Errorf("the recorder is not initialized")
	}
	return nil
}

// Read fills buf entirely. Cancelling ctx interrupts the read and makes
// the handle unusable.
func (h *Handle) Read(
	ctx context.Context,
	buf []byte,
) (int, error) {
	stopWatching := context.AfterFunc(ctx, func() {
		h.reader.CloseWithError(ctx.Err())
	})
	defer stopWatching()

	n, err := io.ReadFull(h.reader, buf)
	if errors.Is(err, io.ErrClosedPipe) {
		return 0, capture.ErrHandleClosed
	}
	return n, err
}

func (h *Handle) Stop(context.Context) error {
	return nil
}

func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		var mErr *multierror.Error
		if h.stream != nil {
			if err := h.stream.Close(); err != nil {
				mErr = multierror.Append(mErr, fmt.Errorf("unable to close the recording stream: %w", err))
			}
		}
		h.writer.Close()
		h.reader.Close()
		h.closeErr = mErr.ErrorOrNil()
	})
	return h.closeErr
}
