package endpointer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSegmenterSilenceTimeout(t *testing.T) {
	ctx := context.Background()
	l := &recordingListener{}
	s := NewSegmenter(l, 2*time.Second, 30*time.Second)
	t0 := time.Unix(1000, 0)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	s.Process(ctx, []byte{0}, false, at(0))
	require.Empty(t, l.Events(), "silence while idle must be ignored")

	s.Process(ctx, []byte{0}, true, at(100))
	require.True(t, s.State().IsOpen)
	require.Equal(t, at(100), s.State().StartedAt)

	s.Process(ctx, []byte{0}, false, at(2100))
	require.True(t, s.State().IsOpen, "exactly the timeout is not enough")

	s.Process(ctx, []byte{0}, false, at(2101))
	require.False(t, s.State().IsOpen)

	require.Equal(t, []string{"start", "voice", "voice", "voice", "end:silence_timeout"}, l.Events())
}

func TestSegmenterVoiceResetsSilence(t *testing.T) {
	ctx := context.Background()
	l := &recordingListener{}
	s := NewSegmenter(l, time.Second, time.Minute)
	t0 := time.Unix(1000, 0)

	s.Process(ctx, nil, true, t0)
	s.Process(ctx, nil, false, t0.Add(900*time.Millisecond))
	s.Process(ctx, nil, true, t0.Add(1800*time.Millisecond))
	s.Process(ctx, nil, false, t0.Add(2700*time.Millisecond))
	require.True(t, s.State().IsOpen)
	require.Equal(t, t0.Add(1800*time.Millisecond), s.State().LastVoiceAt)

	s.Process(ctx, nil, false, t0.Add(2900*time.Millisecond))
	require.Equal(t, []string{"start", "voice*5", "end:silence_timeout"}, compact(l.Events()))
}

func TestSegmenterMaxDuration(t *testing.T) {
	ctx := context.Background()
	l := &recordingListener{}
	s := NewSegmenter(l, time.Second, 500*time.Millisecond)
	t0 := time.Unix(1000, 0)

	for idx := 0; idx <= 6; idx++ {
		s.Process(ctx, nil, true, t0.Add(time.Duration(idx)*100*time.Millisecond))
	}
	// the 7th buffer (600ms after the start) exceeds the cap and is
	// delivered before the end
	require.Equal(t, []string{"start", "voice*7", "end:max_duration"}, compact(l.Events()))

	s.Process(ctx, nil, true, t0.Add(700*time.Millisecond))
	require.Equal(t, []string{"start", "voice*7", "end:max_duration", "start", "voice*1"}, compact(l.Events()))
}

func TestSegmenterDismiss(t *testing.T) {
	ctx := context.Background()
	l := &recordingListener{}
	s := NewSegmenter(l, time.Second, time.Minute)

	require.False(t, s.Dismiss(ctx, EndReasonDismissed))
	require.Empty(t, l.Events())

	s.Process(ctx, []byte{1, 2}, true, time.Unix(1000, 0))
	require.True(t, s.Dismiss(ctx, EndReasonDismissed))
	require.False(t, s.Dismiss(ctx, EndReasonDismissed))
	require.Equal(t, []string{"start", "voice", "end:dismissed"}, l.Events())
}
