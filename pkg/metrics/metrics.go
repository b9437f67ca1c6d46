// Package metrics exposes OpenTelemetry instruments for the segmentation
// engine, and a Listener decorator which records them.
package metrics

import (
	"context"
	"time"

	"github.com/xaionaro-go/endpointer/pkg/endpointer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xaionaro-go/endpointer"

var durationBuckets = []float64{
	0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60,
}

type Metrics struct {
	UtterancesStarted metric.Int64Counter

	// UtterancesEnded is recorded with attribute "reason".
	UtterancesEnded metric.Int64Counter

	ActiveUtterances  metric.Int64UpDownCounter
	VoiceBytes        metric.Int64Counter
	UtteranceDuration metric.Float64Histogram
	CaptureErrors     metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.UtterancesStarted, err = m.Int64Counter("endpointer.utterances.started",
		metric.WithDescription("Total utterances started."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesEnded, err = m.Int64Counter("endpointer.utterances.ended",
		metric.WithDescription("Total utterances ended by the reason of the end."),
	); err != nil {
		return nil, err
	}
	if met.ActiveUtterances, err = m.Int64UpDownCounter("endpointer.utterances.active",
		metric.WithDescription("Whether an utterance is currently open."),
	); err != nil {
		return nil, err
	}
	if met.VoiceBytes, err = m.Int64Counter("endpointer.voice.bytes",
		metric.WithDescription("Total bytes of audio delivered within utterances."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("endpointer.utterance.duration",
		metric.WithDescription("Duration of utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("endpointer.capture.errors",
		metric.WithDescription("Total capture failures which stopped the engine."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// OnError records a capture failure; it fits endpointer.OptionOnError.
func (m *Metrics) OnError(ctx context.Context, err error) {
	m.CaptureErrors.Add(ctx, 1)
}

// Listener returns a Listener which records the metrics and forwards the
// events to next. The durations are measured with clock (the wall clock
// if nil).
func (m *Metrics) Listener(
	next endpointer.Listener,
	clock endpointer.Clock,
) endpointer.Listener {
	return &listener{
		Metrics: m,
		Next:    next,
		Clock:   clock,
	}
}

type listener struct {
	*Metrics
	Next  endpointer.Listener
	Clock endpointer.Clock

	startedAt time.Time
}

func (l *listener) now() time.Time {
	if l.Clock == nil {
		return time.Now()
	}
	return l.Clock.Now()
}

func (l *listener) OnUtteranceStart(ctx context.Context) {
	l.startedAt = l.now()
	l.UtterancesStarted.Add(ctx, 1)
	l.ActiveUtterances.Add(ctx, 1)
	if l.Next != nil {
		l.Next.OnUtteranceStart(ctx)
	}
}

func (l *listener) OnVoiceBuffer(ctx context.Context, samples []byte) {
	l.VoiceBytes.Add(ctx, int64(len(samples)))
	if l.Next != nil {
		l.Next.OnVoiceBuffer(ctx, samples)
	}
}

func (l *listener) OnUtteranceEnd(ctx context.Context, reason endpointer.EndReason) {
	l.UtterancesEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason.String())))
	l.ActiveUtterances.Add(ctx, -1)
	l.UtteranceDuration.Record(ctx, l.now().Sub(l.startedAt).Seconds())
	if l.Next != nil {
		l.Next.OnUtteranceEnd(ctx, reason)
	}
}
