package endpointer

import (
	"context"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
)

type UtteranceState struct {
	IsOpen      bool
	StartedAt   time.Time
	LastVoiceAt time.Time
}

// Segmenter is the utterance state machine: it turns a stream of classified
// buffers into utterance events. It is not safe for concurrent use.
type Segmenter struct {
	Listener             Listener
	SilenceTimeout       time.Duration
	MaxUtteranceDuration time.Duration

	state UtteranceState
}

func NewSegmenter(
	listener Listener,
	silenceTimeout time.Duration,
	maxUtteranceDuration time.Duration,
) *Segmenter {
	return &Segmenter{
		Listener:             listener,
		SilenceTimeout:       silenceTimeout,
		MaxUtteranceDuration: maxUtteranceDuration,
	}
}

func (s *Segmenter) State() UtteranceState {
	return s.state
}

// Process handles one captured buffer observed at the time "now".
//
// A voiced buffer opens an utterance (if none is open) and is forwarded;
// an utterance longer than MaxUtteranceDuration is then ended. An unvoiced
// buffer is forwarded only while an utterance is open, and ends it once
// the time since the last voiced buffer exceeds SilenceTimeout.
func (s *Segmenter) Process(
	ctx context.Context,
	samples []byte,
	isVoiced bool,
	now time.Time,
) {
	if isVoiced {
		if !s.state.IsOpen {
			logger.Debugf(ctx, "utterance started")
			s.state = UtteranceState{
				IsOpen:    true,
				StartedAt: now,
			}
			s.Listener.OnUtteranceStart(ctx)
		}
		s.Listener.OnVoiceBuffer(ctx, samples)
		s.state.LastVoiceAt = now
		if now.Sub(s.state.StartedAt) > s.MaxUtteranceDuration {
			s.end(ctx, EndReasonMaxDuration)
		}
		return
	}

	if !s.state.IsOpen {
		return
	}
	s.Listener.OnVoiceBuffer(ctx, samples)
	if now.Sub(s.state.LastVoiceAt) > s.SilenceTimeout {
		s.end(ctx, EndReasonSilenceTimeout)
	}
}

// Dismiss ends the open utterance (if any) with the given reason and
// reports whether there was one.
func (s *Segmenter) Dismiss(
	ctx context.Context,
	reason EndReason,
) bool {
	if !s.state.IsOpen {
		return false
	}
	s.end(ctx, reason)
	return true
}

func (s *Segmenter) end(
	ctx context.Context,
	reason EndReason,
) {
	logger.Debugf(ctx, "utterance ended: %s", reason)
	s.state = UtteranceState{}
	s.Listener.OnUtteranceEnd(ctx, reason)
}
