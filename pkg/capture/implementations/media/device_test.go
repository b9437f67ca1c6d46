package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/audio/pkg/audio/resampler"
	"github.com/xaionaro-go/endpointer/pkg/capture"
)

func newStartedHandle(ctx context.Context, payload []byte) (*Handle, *pcmCopier) {
	format := resampler.Format{
		Channels:   1,
		SampleRate: 16000,
		PCMFormat:  audio.PCMFormatS16LE,
	}
	renderer := newPCMRenderer(ctx, format)
	copier := newPCMCopier(ctx, bytes.NewReader(payload), renderer.writer)
	renderer.streams = append(renderer.streams, copier)
	return &Handle{
		url:        "test",
		sampleRate: 16000,
		format:     format,
		renderer:   renderer,
	}, copier
}

func TestMinBufferSize(t *testing.T) {
	ctx := context.Background()
	dev := New("file.mp3")

	size, err := dev.MinBufferSize(ctx, 16000, 1, audio.PCMFormatS16LE)
	require.NoError(t, err)
	require.Equal(t, 3200, size)

	_, err = dev.MinBufferSize(ctx, 16000, 1, audio.PCMFormatFloat32LE)
	require.ErrorIs(t, err, capture.ErrUnsupported)
}

func TestHandleReadUntilEOF(t *testing.T) {
	ctx := context.Background()
	payload := make([]byte, 10)
	for idx := range payload {
		payload[idx] = byte(idx)
	}
	h, copier := newStartedHandle(ctx, payload)

	buf := make([]byte, 4)
	n, err := h.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0, 1, 2, 3}, buf)

	n, err = h.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{4, 5, 6, 7}, buf)

	// the last two bytes are not enough for a buffer
	_, err = h.Read(ctx, buf)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, copier.Drain())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err = h.Read(ctx, buf)
	require.ErrorIs(t, err, capture.ErrHandleClosed)
}

func TestHandleReadCancel(t *testing.T) {
	ctx := context.Background()
	renderer := newPCMRenderer(ctx, resampler.Format{
		Channels:   1,
		SampleRate: 16000,
		PCMFormat:  audio.PCMFormatS16LE,
	})
	defer renderer.Close()
	h := &Handle{
		url:        "test",
		sampleRate: 16000,
		renderer:   renderer,
	}

	ctx, cancelFn := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelFn()
	_, err := h.Read(ctx, make([]byte, 4))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleNotStarted(t *testing.T) {
	ctx := context.Background()
	h, err := New("file.mp3").Open(ctx, 16000, 1, audio.PCMFormatS16LE, 3200)
	require.NoError(t, err)
	require.Equal(t, capture.StateInitialized, h.State())
	require.Equal(t, audio.SampleRate(16000), h.SampleRate())

	_, err = h.Read(ctx, make([]byte, 3200))
	require.Error(t, err)
	require.NoError(t, h.Close())
	require.ErrorIs(t, h.Start(ctx), capture.ErrHandleClosed)
}

type fakePlayer struct {
	closeCount int
	err        error
}

func (p *fakePlayer) Close(context.Context) error {
	p.closeCount++
	return p.err
}

func TestHandleCloseClosesPlayer(t *testing.T) {
	ctx := context.Background()
	h, copier := newStartedHandle(ctx, make([]byte, 1024))
	player := &fakePlayer{err: errors.New("decoder is stuck")}
	h.player = player
	h.ctx = ctx

	err := h.Close()
	require.ErrorIs(t, err, player.err)
	require.Equal(t, 1, player.closeCount)
	require.NoError(t, copier.Drain())

	require.NoError(t, h.Close())
	require.Equal(t, 1, player.closeCount)

	_, err = h.renderer.Read(make([]byte, 4))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
