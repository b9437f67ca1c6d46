package endpointer

import (
	"context"
	"fmt"
)

type EndReason int

const (
	EndReasonUndefined = EndReason(iota)
	EndReasonSilenceTimeout
	EndReasonMaxDuration
	EndReasonDismissed
	EndReasonStopped
	EndReasonCaptureFailed
)

func (r EndReason) String() string {
	switch r {
	case EndReasonUndefined:
		return "undefined"
	case EndReasonSilenceTimeout:
		return "silence_timeout"
	case EndReasonMaxDuration:
		return "max_duration"
	case EndReasonDismissed:
		return "dismissed"
	case EndReasonStopped:
		return "stopped"
	case EndReasonCaptureFailed:
		return "capture_failed"
	}
	return fmt.Sprintf("unknown_%d", int(r))
}

// Listener receives the utterance lifecycle events.
//
// The methods are called synchronously from the segmentation loop (or
// from Stop/Dismiss), while the engine's lock is held: they must not call
// Start, Stop or Dismiss of the same Engine. Every OnUtteranceStart is
// followed by exactly one OnUtteranceEnd before the next OnUtteranceStart.
type Listener interface {
	OnUtteranceStart(ctx context.Context)

	// OnVoiceBuffer receives the samples of the utterance. The slice is
	// valid only during the call.
	OnVoiceBuffer(ctx context.Context, samples []byte)

	OnUtteranceEnd(ctx context.Context, reason EndReason)
}

// ListenerFuncs is a Listener with optional callbacks; nil callbacks
// are skipped.
type ListenerFuncs struct {
	UtteranceStart func(ctx context.Context)
	VoiceBuffer    func(ctx context.Context, samples []byte)
	UtteranceEnd   func(ctx context.Context, reason EndReason)
}

var _ Listener = (*ListenerFuncs)(nil)

func (l *ListenerFuncs) OnUtteranceStart(ctx context.Context) {
	if l.UtteranceStart != nil {
		l.UtteranceStart(ctx)
	}
}

func (l *ListenerFuncs) OnVoiceBuffer(ctx context.Context, samples []byte) {
	if l.VoiceBuffer != nil {
		l.VoiceBuffer(ctx, samples)
	}
}

func (l *ListenerFuncs) OnUtteranceEnd(ctx context.Context, reason EndReason) {
	if l.UtteranceEnd != nil {
		l.UtteranceEnd(ctx, reason)
	}
}

// Listeners forwards every event to each listener, in order.
type Listeners []Listener

var _ Listener = (Listeners)(nil)

func (s Listeners) OnUtteranceStart(ctx context.Context) {
	for _, l := range s {
		l.OnUtteranceStart(ctx)
	}
}

func (s Listeners) OnVoiceBuffer(ctx context.Context, samples []byte) {
	for _, l := range s {
		l.OnVoiceBuffer(ctx, samples)
	}
}

func (s Listeners) OnUtteranceEnd(ctx context.Context, reason EndReason) {
	for _, l := range s {
		l.OnUtteranceEnd(ctx, reason)
	}
}
