package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xaionaro-go/audio/pkg/audio"
)

// Binding is a capture handle which was successfully negotiated at
// a specific sample rate, together with the scratch buffer for reading it.
//
// The length of Buffer never changes. Binding is not safe for concurrent use.
type Binding struct {
	Handle     Handle
	SampleRate audio.SampleRate
	Channels   audio.Channel
	PCMFormat  audio.PCMFormat
	Buffer     []byte

	isStarted  bool
	isReleased bool
}

func (b *Binding) Start(ctx context.Context) error {
	if b.isReleased {
		return ErrHandleClosed
	}
	if err := b.Handle.Start(ctx); err != nil {
		return fmt.Errorf("unable to start capturing at %d Hz: %w", b.SampleRate, err)
	}
	b.isStarted = true
	return nil
}

// Read reads the next buffer. The returned slice aliases Buffer and is
// valid only until the next call.
func (b *Binding) Read(ctx context.Context) ([]byte, error) {
	if b.isReleased {
		return nil, ErrHandleClosed
	}
	n, err := b.Handle.Read(ctx, b.Buffer)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > len(b.Buffer) {
		return nil, fmt.Errorf("the device reported an invalid amount of read bytes: %d (buffer size: %d)", n, len(b.Buffer))
	}
	return b.Buffer[:n], nil
}

func (b *Binding) IsReleased() bool {
	return b.isReleased
}

// Release stops the capture (if started) and closes the handle.
// Calling it more than once is a no-op.
func (b *Binding) Release(ctx context.Context) (_err error) {
	if b.isReleased {
		return nil
	}
	logger.Debugf(ctx, "Release(): %d Hz", b.SampleRate)
	defer func() { logger.Debugf(ctx, "/Release(): %d Hz: %v", b.SampleRate, _err) }()
	b.isReleased = true

	var mErr *multierror.Error
	if b.isStarted {
		if err := b.Handle.Stop(ctx); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to stop the capture: %w", err))
		}
		b.isStarted = false
	}
	if err := b.Handle.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the capture handle: %w", err))
	}
	return mErr.ErrorOrNil()
}

type probeKey struct {
	SampleRate audio.SampleRate
	Channels   audio.Channel
	PCMFormat  audio.PCMFormat
}

// Binder negotiates a Binding with a Device.
type Binder struct {
	Device Device

	// ProbeCache remembers the buffer sizes of the supported combinations.
	// Refusals are never cached, and the cache is purged when no rate
	// could be bound at all.
	ProbeCache *lru.Cache[probeKey, int]
}

// AcceptFunc is called for a freshly opened Binding; a non-nil error
// makes the Binder release it and try the next sample rate.
type AcceptFunc func(ctx context.Context, binding *Binding) error

// NewBinder returns a Binder; if probeCacheSize is non-zero the buffer sizes
// reported by MinBufferSize are remembered between calls of Bind.
func NewBinder(
	device Device,
	probeCacheSize uint,
) *Binder {
	b := &Binder{
		Device: device,
	}
	if probeCacheSize > 0 {
		cache, err := lru.New[probeKey, int](int(probeCacheSize))
		if err != nil {
			panic(err)
		}
		b.ProbeCache = cache
	}
	return b
}

// Bind tries the sample rates in the given order and returns the first
// binding which reaches StateInitialized. Handles of failed attempts are
// closed before trying the next rate.
func (b *Binder) Bind(
	ctx context.Context,
	sampleRates []audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (*Binding, error) {
	return b.BindAccepted(ctx, sampleRates, channels, format, nil)
}

// BindAccepted is Bind which additionally requires accept (if not nil) to
// approve the binding. A rejected binding is released and the next rate
// is tried; if no rate is left, the last rejection is wrapped into the
// returned ErrNoSampleRateBound.
func (b *Binder) BindAccepted(
	ctx context.Context,
	sampleRates []audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	accept AcceptFunc,
) (_ret *Binding, _err error) {
	logger.Debugf(ctx, "Bind(ctx, %v, %v, %v)", sampleRates, channels, format)
	defer func() { logger.Debugf(ctx, "/Bind(ctx, %v, %v, %v): %v", sampleRates, channels, format, _err) }()

	var rejectErr error
	for _, sampleRate := range sampleRates {
		binding, err := b.tryBind(ctx, sampleRate, channels, format)
		if err != nil {
			logger.Debugf(ctx, "unable to bind at %d Hz: %v", sampleRate, err)
			continue
		}
		if accept != nil {
			if err := accept(ctx, binding); err != nil {
				logger.Debugf(ctx, "the binding at %d Hz was rejected: %v", binding.SampleRate, err)
				if releaseErr := binding.Release(ctx); releaseErr != nil {
					logger.Errorf(ctx, "unable to release a rejected binding at %d Hz: %v", binding.SampleRate, releaseErr)
				}
				rejectErr = err
				continue
			}
		}
		logger.Infof(ctx, "bound the capture device at %d Hz with a buffer of %d bytes", binding.SampleRate, len(binding.Buffer))
		return binding, nil
	}

	if b.ProbeCache != nil {
		b.ProbeCache.Purge()
	}
	return nil, ErrNoSampleRateBound{
		SampleRates: sampleRates,
		Err:         rejectErr,
	}
}

func (b *Binder) tryBind(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (*Binding, error) {
	bufSize, err := b.minBufferSize(ctx, sampleRate, channels, format)
	if err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "buffer size for %d Hz: %d", sampleRate, bufSize)

	handle, err := b.Device.Open(ctx, sampleRate, channels, format, bufSize)
	if err != nil {
		if handle != nil {
			if closeErr := handle.Close(); closeErr != nil {
				logger.Errorf(ctx, "unable to close a failed handle at %d Hz: %v", sampleRate, closeErr)
			}
		}
		return nil, fmt.Errorf("unable to open the device: %w", err)
	}

	if state := handle.State(); state != StateInitialized {
		if err := handle.Close(); err != nil {
			logger.Errorf(ctx, "unable to close an uninitialized handle at %d Hz: %v", sampleRate, err)
		}
		return nil, fmt.Errorf("the handle is in state '%s'", state)
	}

	boundRate := handle.SampleRate()
	if boundRate == 0 {
		boundRate = sampleRate
	}

	return &Binding{
		Handle:     handle,
		SampleRate: boundRate,
		Channels:   channels,
		PCMFormat:  format,
		Buffer:     make([]byte, bufSize),
	}, nil
}

func (b *Binder) minBufferSize(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) (int, error) {
	key := probeKey{
		SampleRate: sampleRate,
		Channels:   channels,
		PCMFormat:  format,
	}
	if b.ProbeCache != nil {
		if bufSize, ok := b.ProbeCache.Get(key); ok {
			logger.Tracef(ctx, "probe cache hit for %#+v: %d", key, bufSize)
			return bufSize, nil
		}
	}

	bufSize, err := b.Device.MinBufferSize(ctx, sampleRate, channels, format)
	switch {
	case errors.Is(err, ErrUnsupported):
		return 0, err
	case err != nil:
		return 0, fmt.Errorf("unable to query the minimal buffer size: %w", err)
	case bufSize <= 0:
		return 0, fmt.Errorf("the device reported an invalid buffer size: %d", bufSize)
	}

	if b.ProbeCache != nil {
		b.ProbeCache.Add(key, bufSize)
	}
	return bufSize, nil
}
