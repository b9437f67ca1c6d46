// Package endpointer implements a streaming voice-activity segmentation
// engine: it captures mono PCM audio, classifies each buffer as voiced or
// not and reports utterances (start, samples, end) to a Listener.
package endpointer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/capture"
	"github.com/xaionaro-go/endpointer/pkg/vad"
	"github.com/xaionaro-go/endpointer/pkg/vad/implementations/amplitude"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Engine runs the segmentation loop over a capture device.
//
// The device is read outside of the engine's lock; only the
// classification and the Listener callbacks of a buffer are serialized
// with Dismiss and Stop. A buffer read after Stop was requested is
// dropped, and the binding is released only after the loop has exited,
// so a released handle is never read.
type Engine struct {
	Device   capture.Device
	Listener Listener

	config config
	binder *capture.Binder

	// lifecycleLocker serializes Start and Stop.
	lifecycleLocker xsync.Mutex

	// locker guards the segmenter and the release of the current session;
	// listener callbacks are called while it is held. The binding is read
	// only by the loop, and released only after the loop has exited (or
	// by the loop itself).
	locker xsync.Mutex

	session atomic.Pointer[session]

	// pendingRelease is closed when a session which Stop gave up waiting
	// for is finally released; guarded by lifecycleLocker.
	pendingRelease chan struct{}
}

type session struct {
	binding    *capture.Binding
	classifier vad.Classifier
	segmenter  *Segmenter
	cancelFunc context.CancelFunc
	done       chan struct{}

	// guarded by Engine.locker:
	isClassifierClosed bool
	err                error
}

func (s *session) release(ctx context.Context) error {
	var mErr *multierror.Error
	if err := s.binding.Release(ctx); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if closer, ok := s.classifier.(io.Closer); ok && !s.isClassifierClosed {
		s.isClassifierClosed = true
		if err := closer.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the voice classifier: %w", err))
		}
	}
	return mErr.ErrorOrNil()
}

func (s *session) isLoopFinished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func New(
	device capture.Device,
	listener Listener,
	opts ...Option,
) (*Engine, error) {
	if device == nil {
		return nil, ErrInvalidConfig{Reason: "nil capture device"}
	}
	if listener == nil {
		return nil, ErrInvalidConfig{Reason: "nil listener"}
	}
	cfg := Options(opts).config()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ClassifierFactory == nil {
		cfg.ClassifierFactory = amplitude.Factory(cfg.AmplitudeThreshold)
	}
	return &Engine{
		Device:   device,
		Listener: listener,
		config:   cfg,
		binder:   capture.NewBinder(device, cfg.ProbeCacheSize),
	}, nil
}

// Start binds the capture device and launches the segmentation loop.
// A running session is stopped first.
func (e *Engine) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start()")
	defer func() { logger.Debugf(ctx, "/Start(): %v", _err) }()
	return xsync.DoR1(ctx, &e.lifecycleLocker, func() error {
		return e.startNoLock(ctx)
	})
}

func (e *Engine) startNoLock(ctx context.Context) error {
	if err := e.stopNoLock(ctx); err != nil {
		if errors.Is(err, ErrSessionNotReleased) {
			return err
		}
		logger.Warnf(ctx, "the previous session finished with an error: %v", err)
	}

	var classifier vad.Classifier
	binding, err := e.binder.BindAccepted(
		ctx,
		e.config.SampleRates, e.config.Channels, e.config.PCMFormat,
		func(ctx context.Context, binding *capture.Binding) error {
			c, err := e.config.ClassifierFactory(ctx, binding.SampleRate)
			if err != nil {
				return ErrInitClassifier{Err: err}
			}
			classifier = c
			return nil
		},
	)
	if err != nil {
		return err
	}

	s := &session{
		binding:    binding,
		classifier: classifier,
		segmenter:  NewSegmenter(e.Listener, e.config.SilenceTimeout, e.config.MaxUtteranceDuration),
		done:       make(chan struct{}),
	}

	if err := binding.Start(ctx); err != nil {
		if releaseErr := s.release(ctx); releaseErr != nil {
			logger.Errorf(ctx, "unable to release the capture binding: %v", releaseErr)
		}
		return ErrCaptureStart{Err: err}
	}

	loopCtx, cancelFn := context.WithCancel(xcontext.DetachDone(ctx))
	s.cancelFunc = cancelFn
	e.session.Store(s)
	observability.Go(loopCtx, func() {
		defer close(s.done)
		e.loop(loopCtx, s)
	})
	return nil
}

func (e *Engine) loop(
	ctx context.Context,
	s *session,
) {
	logger.Debugf(ctx, "loop()")
	defer func() { logger.Debugf(ctx, "/loop()") }()

	lockCtx := xsync.WithNoLogging(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		samples, err := s.binding.Read(ctx)
		if ctx.Err() != nil {
			logger.Debugf(ctx, "the loop is cancelled; dropping the read result (err: %v)", err)
			return
		}
		if err != nil {
			e.onReadFailure(ctx, s, err)
			return
		}
		now := e.config.Clock.Now()

		e.locker.Do(lockCtx, func() {
			isVoiced := s.classifier.IsVoiced(samples)
			logger.Tracef(ctx, "read %d bytes; voiced: %t", len(samples), isVoiced)
			s.segmenter.Process(ctx, samples, isVoiced, now)
		})
	}
}

func (e *Engine) onReadFailure(
	ctx context.Context,
	s *session,
	readErr error,
) {
	var err error
	e.locker.Do(ctx, func() {
		s.segmenter.Dismiss(ctx, EndReasonCaptureFailed)
		s.err = ErrCaptureRead{
			Err:        readErr,
			ReleaseErr: s.release(ctx),
		}
		err = s.err
	})
	logger.Errorf(ctx, "the capture loop failed: %v", err)
	if e.config.OnError != nil {
		e.config.OnError(ctx, err)
	}
}

// Stop ends the loop, closes the open utterance (if any) and releases the
// capture device. It returns the error the loop finished with (if any).
// Calling it on a stopped engine is a no-op.
//
// If ctx is done before the loop exits, the resources are released in
// background once it does, and an error wrapping ErrSessionNotReleased
// and ctx's error is returned. Until that release happens, Start and Stop
// wait for it (or fail with ErrSessionNotReleased when their ctx is done).
func (e *Engine) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Stop()")
	defer func() { logger.Debugf(ctx, "/Stop(): %v", _err) }()
	return xsync.DoR1(ctx, &e.lifecycleLocker, func() error {
		return e.stopNoLock(ctx)
	})
}

func (e *Engine) stopNoLock(ctx context.Context) error {
	if err := e.waitPendingReleaseNoLock(ctx); err != nil {
		return err
	}

	s := e.session.Swap(nil)
	if s == nil {
		return nil
	}
	s.cancelFunc()

	select {
	case <-s.done:
	case <-ctx.Done():
		logger.Warnf(ctx, "timed out waiting for the capture loop to finish; will release in background")
		released := make(chan struct{})
		e.pendingRelease = released
		bgCtx := xcontext.DetachDone(ctx)
		observability.Go(bgCtx, func() {
			defer close(released)
			<-s.done
			if err := e.finishSession(bgCtx, s); err != nil {
				logger.Errorf(bgCtx, "the capture session finished with an error: %v", err)
			}
		})
		return fmt.Errorf("%w: %w", ErrSessionNotReleased, ctx.Err())
	}

	return e.finishSession(ctx, s)
}

// waitPendingReleaseNoLock waits for the session abandoned by a timed out
// Stop to be released, so that at most one binding is live at a time.
func (e *Engine) waitPendingReleaseNoLock(ctx context.Context) error {
	if e.pendingRelease == nil {
		return nil
	}
	select {
	case <-e.pendingRelease:
		e.pendingRelease = nil
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSessionNotReleased, ctx.Err())
	}
}

func (e *Engine) finishSession(
	ctx context.Context,
	s *session,
) error {
	var mErr *multierror.Error
	e.locker.Do(ctx, func() {
		s.segmenter.Dismiss(ctx, EndReasonStopped)
		if s.err != nil {
			mErr = multierror.Append(mErr, s.err)
		}
		if err := s.release(ctx); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	})
	return mErr.ErrorOrNil()
}

// Dismiss ends the open utterance (if any) without stopping the capture.
// It must not be called from the Listener callbacks.
func (e *Engine) Dismiss(ctx context.Context) {
	logger.Debugf(ctx, "Dismiss()")
	defer func() { logger.Debugf(ctx, "/Dismiss()") }()
	s := e.session.Load()
	if s == nil {
		return
	}
	e.locker.Do(ctx, func() {
		s.segmenter.Dismiss(ctx, EndReasonDismissed)
	})
}

// SampleRate returns the sample rate of the running session, or zero.
// It is safe to call from the Listener callbacks.
func (e *Engine) SampleRate() audio.SampleRate {
	s := e.session.Load()
	if s == nil {
		return 0
	}
	return s.binding.SampleRate
}

// IsRunning reports whether the segmentation loop is active.
func (e *Engine) IsRunning() bool {
	s := e.session.Load()
	return s != nil && !s.isLoopFinished()
}

// Err returns the error the current session's loop failed with, if any.
func (e *Engine) Err() error {
	s := e.session.Load()
	if s == nil {
		return nil
	}
	if !s.isLoopFinished() {
		return nil
	}
	// the loop is finished, so nobody writes s.err anymore
	return s.err
}

// Done returns a channel which is closed when the loop of the current
// session exits; nil if the engine is not started.
func (e *Engine) Done() <-chan struct{} {
	s := e.session.Load()
	if s == nil {
		return nil
	}
	return s.done
}
