package endpointer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	locker sync.Mutex
	events []string
	bytes  int
}

func (l *recordingListener) OnUtteranceStart(context.Context) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.events = append(l.events, "start")
}

func (l *recordingListener) OnVoiceBuffer(_ context.Context, samples []byte) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.events = append(l.events, "voice")
	l.bytes += len(samples)
}

func (l *recordingListener) OnUtteranceEnd(_ context.Context, reason EndReason) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.events = append(l.events, "end:"+reason.String())
}

func (l *recordingListener) Events() []string {
	l.locker.Lock()
	defer l.locker.Unlock()
	return append([]string(nil), l.events...)
}

// compact squashes consecutive "voice" events into "voice*N".
func compact(events []string) []string {
	var result []string
	count := 0
	flush := func() {
		if count > 0 {
			result = append(result, fmt.Sprintf("voice*%d", count))
			count = 0
		}
	}
	for _, ev := range events {
		if ev == "voice" {
			count++
			continue
		}
		flush()
		result = append(result, ev)
	}
	flush()
	return result
}

func TestListeners(t *testing.T) {
	ctx := context.Background()
	var calls []string
	funcs := &ListenerFuncs{
		UtteranceEnd: func(_ context.Context, reason EndReason) {
			calls = append(calls, "funcs:"+reason.String())
		},
	}
	rec := &recordingListener{}
	l := Listeners{rec, funcs}

	l.OnUtteranceStart(ctx)
	l.OnVoiceBuffer(ctx, []byte{1, 2})
	l.OnUtteranceEnd(ctx, EndReasonDismissed)

	require.Equal(t, []string{"start", "voice", "end:dismissed"}, rec.Events())
	require.Equal(t, 2, rec.bytes)
	require.Equal(t, []string{"funcs:dismissed"}, calls)
}

func TestEndReasonString(t *testing.T) {
	require.Equal(t, "silence_timeout", EndReasonSilenceTimeout.String())
	require.Equal(t, "max_duration", EndReasonMaxDuration.String())
	require.Equal(t, "capture_failed", EndReasonCaptureFailed.String())
	require.Equal(t, "unknown_42", EndReason(42).String())
}
