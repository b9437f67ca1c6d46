package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/endpointer/pkg/capture/implementations/synthetic"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestListener(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t)
	clock := synthetic.NewClock(time.Unix(1000, 0))

	var ended []endpointer.EndReason
	l := m.Listener(&endpointer.ListenerFuncs{
		UtteranceEnd: func(_ context.Context, reason endpointer.EndReason) {
			ended = append(ended, reason)
		},
	}, clock)

	l.OnUtteranceStart(ctx)
	l.OnVoiceBuffer(ctx, make([]byte, 100))
	l.OnVoiceBuffer(ctx, make([]byte, 50))
	clock.Advance(1500 * time.Millisecond)
	l.OnUtteranceEnd(ctx, endpointer.EndReasonSilenceTimeout)

	l.OnUtteranceStart(ctx)
	rm := collect(t, reader)
	require.EqualValues(t, 2, sumInt64(t, rm, "endpointer.utterances.started"))
	require.EqualValues(t, 1, sumInt64(t, rm, "endpointer.utterances.ended"))
	require.EqualValues(t, 1, sumInt64(t, rm, "endpointer.utterances.active"))
	require.EqualValues(t, 150, sumInt64(t, rm, "endpointer.voice.bytes"))
	require.Equal(t, []endpointer.EndReason{endpointer.EndReasonSilenceTimeout}, ended)

	endedMetric := findMetric(rm, "endpointer.utterances.ended")
	dp := endedMetric.Data.(metricdata.Sum[int64]).DataPoints[0]
	reason, ok := dp.Attributes.Value(attribute.Key("reason"))
	require.True(t, ok)
	require.Equal(t, "silence_timeout", reason.AsString())

	hist, ok := findMetric(rm, "endpointer.utterance.duration").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	require.EqualValues(t, 1, hist.DataPoints[0].Count)
	require.InDelta(t, 1.5, hist.DataPoints[0].Sum, 1e-9)
}

func TestOnError(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.OnError(context.Background(), endpointer.ErrCaptureReadFailed)
	require.EqualValues(t, 1, sumInt64(t, collect(t, reader), "endpointer.capture.errors"))
}
