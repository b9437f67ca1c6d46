// Package utterance accumulates the voice buffers of each utterance and
// hands the complete utterance over exactly once, when it ends.
package utterance

import (
	"context"
	"time"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
)

type Utterance struct {
	// Audio is PCM S16LE mono.
	Audio      []byte
	SampleRate audio.SampleRate
	StartedAt  time.Time
	EndedAt    time.Time
	Reason     endpointer.EndReason

	// IsTruncated is set if some of the audio was dropped due to the size cap.
	IsTruncated bool
}

// Duration returns the duration of the audio (not EndedAt-StartedAt).
func (u *Utterance) Duration() time.Duration {
	if u.SampleRate == 0 {
		return 0
	}
	enc := audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatS16LE,
		SampleRate: u.SampleRate,
	}
	bytesPerSecond := enc.BytesForDuration(time.Second)
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(uint64(len(u.Audio)) * uint64(time.Second) / bytesPerSecond)
}

type Sink interface {
	OnUtterance(ctx context.Context, u *Utterance)
}

type SinkFunc func(ctx context.Context, u *Utterance)

func (fn SinkFunc) OnUtterance(ctx context.Context, u *Utterance) {
	fn(ctx, u)
}

// Sinks hands every utterance to each sink, in order.
type Sinks []Sink

func (s Sinks) OnUtterance(ctx context.Context, u *Utterance) {
	for _, sink := range s {
		sink.OnUtterance(ctx, u)
	}
}
