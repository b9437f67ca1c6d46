package utterance

import (
	"context"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
)

// DefaultMaxBytes is enough for a minute of 44100 Hz audio.
const DefaultMaxBytes = 44100 * 2 * 60

// Collector is an endpointer.Listener which copies the voice buffers into
// an accumulator and passes the result to the Sink on the end of the
// utterance. Like any Listener it is expected to be called sequentially.
type Collector struct {
	Sink Sink

	// SampleRateFunc reports the sample rate of the audio, usually
	// (*endpointer.Engine).SampleRate.
	SampleRateFunc func() audio.SampleRate

	// Clock is used for the timestamps; the wall clock if nil.
	Clock endpointer.Clock

	// MaxBytes caps the accumulated audio; zero means no cap.
	MaxBytes int

	current *Utterance
}

var _ endpointer.Listener = (*Collector)(nil)

func NewCollector(
	sink Sink,
	sampleRateFunc func() audio.SampleRate,
) *Collector {
	return &Collector{
		Sink:           sink,
		SampleRateFunc: sampleRateFunc,
		MaxBytes:       DefaultMaxBytes,
	}
}

func (c *Collector) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *Collector) OnUtteranceStart(ctx context.Context) {
	if c.current != nil {
		logger.Errorf(ctx, "an utterance started before the previous one ended; dropping the previous one")
	}
	u := &Utterance{
		StartedAt: c.now(),
	}
	if c.SampleRateFunc != nil {
		u.SampleRate = c.SampleRateFunc()
	}
	c.current = u
}

func (c *Collector) OnVoiceBuffer(ctx context.Context, samples []byte) {
	u := c.current
	if u == nil {
		logger.Errorf(ctx, "received a voice buffer outside of an utterance")
		return
	}
	if c.MaxBytes > 0 && len(u.Audio)+len(samples) > c.MaxBytes {
		samples = samples[:max(0, c.MaxBytes-len(u.Audio))]
		if !u.IsTruncated {
			logger.Warnf(ctx, "the utterance exceeds %d bytes; truncating", c.MaxBytes)
		}
		u.IsTruncated = true
	}
	u.Audio = append(u.Audio, samples...)
}

func (c *Collector) OnUtteranceEnd(ctx context.Context, reason endpointer.EndReason) {
	u := c.current
	if u == nil {
		logger.Errorf(ctx, "an utterance ended without being started")
		return
	}
	c.current = nil
	u.EndedAt = c.now()
	u.Reason = reason
	logger.Debugf(ctx, "utterance of %v ended: %s", u.Duration(), reason)
	if c.Sink != nil {
		c.Sink.OnUtterance(ctx, u)
	}
}
