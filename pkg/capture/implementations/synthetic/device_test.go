package synthetic

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/capture"
)

func TestDeviceScript(t *testing.T) {
	ctx := context.Background()
	clock := NewClock(time.Unix(0, 0))
	dev := New(true, false)
	dev.Clock = clock

	size, err := dev.MinBufferSize(ctx, 8000, 1, audio.PCMFormatS16LE)
	require.NoError(t, err)
	require.Equal(t, 1600, size)

	h, err := dev.Open(ctx, 8000, 1, audio.PCMFormatS16LE, size)
	require.NoError(t, err)
	require.Equal(t, capture.StateInitialized, h.State())
	require.NoError(t, h.Start(ctx))

	buf := make([]byte, size)
	n, err := h.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, size, n)
	require.Equal(t, DefaultAmplitude, int16(binary.LittleEndian.Uint16(buf[0:])))
	require.Equal(t, -DefaultAmplitude, int16(binary.LittleEndian.Uint16(buf[2:])))
	require.Equal(t, time.Unix(0, 0).Add(DefaultBufferDuration), clock.Now())

	n, err = h.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, make([]byte, n), buf[:n])
	require.EqualValues(t, 2, dev.ReadCount())

	select {
	case <-dev.Drained():
		t.Fatal("drained too early")
	default:
	}

	ctx, cancelFn := context.WithCancel(ctx)
	cancelFn()
	_, err = h.Read(ctx, buf)
	require.ErrorIs(t, err, context.Canceled)
	<-dev.Drained()
}

func TestDeviceReadUnblocksOnClose(t *testing.T) {
	ctx := context.Background()
	dev := New()
	h, err := dev.Open(ctx, 16000, 1, audio.PCMFormatS16LE, 3200)
	require.NoError(t, err)
	require.NoError(t, h.Start(ctx))

	errCh := make(chan error, 1)
	go func() {
		_, err := h.Read(ctx, make([]byte, 3200))
		errCh <- err
	}()
	<-dev.Drained()
	require.NoError(t, h.Close())
	require.ErrorIs(t, <-errCh, capture.ErrHandleClosed)
}

func TestDeviceUnsupported(t *testing.T) {
	ctx := context.Background()
	dev := New()
	dev.UnsupportedRates = []audio.SampleRate{44100}

	_, err := dev.MinBufferSize(ctx, 44100, 1, audio.PCMFormatS16LE)
	require.ErrorIs(t, err, capture.ErrUnsupported)
	_, err = dev.MinBufferSize(ctx, 16000, 1, audio.PCMFormatFloat32LE)
	require.ErrorIs(t, err, capture.ErrUnsupported)
}

func TestDeviceFailRead(t *testing.T) {
	ctx := context.Background()
	dev := New(Voiced(3)...)
	dev.FailReadAt = 2
	h, err := dev.Open(ctx, 16000, 1, audio.PCMFormatS16LE, 3200)
	require.NoError(t, err)
	require.NoError(t, h.Start(ctx))

	buf := make([]byte, 3200)
	_, err = h.Read(ctx, buf)
	require.NoError(t, err)
	_, err = h.Read(ctx, buf)
	require.Error(t, err)
	_, err = h.Read(ctx, buf)
	require.NoError(t, err)
}
