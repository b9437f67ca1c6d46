// Package media implements a capture device which decodes a media file
// (or a stream URL) instead of recording from a microphone. The decoded
// audio is converted to the negotiated sample rate, so every rate is
// supported.
package media

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
	"github.com/xaionaro-go/audio/pkg/audio/resampler"
	"github.com/xaionaro-go/endpointer/pkg/capture"
	"github.com/xaionaro-go/player/pkg/player/builtin"
	"github.com/xaionaro-go/xcontext"
)

const DefaultBufferDuration = 100 * time.Millisecond

type Device struct {
	URL            string
	BufferDuration time.Duration
}

var _ capture.Device = (*Device)(nil)

func New(url string) *Device {
	return &Device{
		URL:            url,
		BufferDuration: DefaultBufferDuration,
	}
}

func (d *Device) MinBufferSize(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (int, error) {
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
	return &Handle{
		url:        d.URL,
		sampleRate: sampleRate,
		format: resampler.Format{
			Channels:   channels,
			SampleRate: sampleRate,
			PCMFormat:  format,
		},
	}, nil
}

// Handle decodes the media on Start. The decoding is lazy, so the
// handle is always reported as initialized; opening errors are
// reported by Start.
type Handle struct {
	url        string
	sampleRate audio.SampleRate
	format     resampler.Format

	locker   sync.Mutex
	ctx      context.Context
	player   closer
	renderer *pcmRenderer
	isClosed bool
}

// closer is the part of *builtin.Player the handle depends on.
type closer interface {
	Close(ctx context.Context) error
}

var _ capture.Handle = (*Handle)(nil)

func (h *Handle) State() capture.State {
	return capture.StateInitialized
}

func (h *Handle) SampleRate() audio.SampleRate {
	return h.sampleRate
}

func (h *Handle) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start(): %s", h.url)
	defer func() { logger.Debugf(ctx, "/Start(): %s: %v", h.url, _err) }()

	h.locker.Lock()
	defer h.locker.Unlock()
	if h.isClosed {
		return capture.ErrHandleClosed
	}
	if h.renderer != nil {
		return nil
	}

	ctx = xcontext.DetachDone(ctx)
	renderer := newPCMRenderer(ctx, h.format)
	mediaPlayer := builtin.New(ctx, nil, renderer)
	if err := mediaPlayer.OpenURL(ctx, h.url); err != nil {
		var mErr *multierror.Error
		mErr = multierror.Append(mErr, fmt.Errorf("unable to open '%s': %w", h.url, err))
		if err := closeMedia(ctx, mediaPlayer, renderer); err != nil {
			mErr = multierror.Append(mErr, err)
		}
		return mErr.ErrorOrNil()
	}
	h.ctx = ctx
	h.player = mediaPlayer
	h.renderer = renderer
	return nil
}

// closeMedia closes the renderer first, to unblock the player's decoder
// if it waits for the renderer to consume the audio.
func closeMedia(
	ctx context.Context,
	mediaPlayer closer,
	renderer *pcmRenderer,
) error {
	var mErr *multierror.Error
	if renderer != nil {
		if err := renderer.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the renderer: %w", err))
		}
	}
	if mediaPlayer != nil {
		if err := mediaPlayer.Close(ctx); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the player: %w", err))
		}
	}
	return mErr.ErrorOrNil()
}

func (h *Handle) getRenderer() (*pcmRenderer, error) {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.isClosed {
		return nil, capture.ErrHandleClosed
	}
	if h.renderer == nil {
		return nil, fmt.Errorf("the handle is not started")
	}
	return h.renderer, nil
}

// Read fills buf entirely; io.EOF is returned when the media is over
// (a trailing partial buffer is dropped). Cancelling ctx interrupts the
// read and makes the handle unusable.
func (h *Handle) Read(
	ctx context.Context,
	buf []byte,
) (int, error) {
	renderer, err := h.getRenderer()
	if err != nil {
		return 0, err
	}
	stopWatching := context.AfterFunc(ctx, func() {
		renderer.PipeReader.CloseWithError(ctx.Err())
	})
	defer stopWatching()

	n, err := io.ReadFull(renderer, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return 0, capture.ErrHandleClosed
		}
		return 0, err
	}
	return n, nil
}

func (h *Handle) Stop(ctx context.Context) error {
	return h.Close()
}

func (h *Handle) Close() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.isClosed {
		return nil
	}
	h.isClosed = true
	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Debugf(ctx, "Close(): %s", h.url)
	return closeMedia(ctx, h.player, h.renderer)
}
