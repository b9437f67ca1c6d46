package libfvad

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/capture/implementations/synthetic"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
)

func TestDecodeS16LE(t *testing.T) {
	b := make([]byte, 7)
	binary.LittleEndian.PutUint16(b[0:], uint16(1))
	binary.LittleEndian.PutUint16(b[2:], 0xffff)
	binary.LittleEndian.PutUint16(b[4:], 0x8000)

	samples := decodeS16LE(nil, b)
	require.Len(t, samples, 3)
	assert.Equal(t, []int16{1, -1, math.MinInt16}, samples)

	reused := decodeS16LE(samples, b[:2])
	assert.Equal(t, []int16{1}, reused)
}

func TestSilenceIsNotVoiced(t *testing.T) {
	c, err := New(16000, DefaultMode)
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.IsVoiced(make([]byte, 2*1600)))
	assert.False(t, c.IsVoiced(make([]byte, 10)))
}

func TestUnsupportedSampleRate(t *testing.T) {
	_, err := New(11025, DefaultMode)
	require.Error(t, err)
}

func TestEngineSkipsSampleRatesUnsupportedByLibfvad(t *testing.T) {
	ctx := context.Background()
	dev := synthetic.New(synthetic.Silent(1)...)
	dev.UnsupportedRates = []audio.SampleRate{16000}

	e, err := endpointer.New(dev, &endpointer.ListenerFuncs{}, endpointer.OptionClassifierFactory(Factory(DefaultMode)))
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer e.Stop(ctx)

	// 11025, 22050 and 44100 Hz are bound, but rejected by libfvad
	require.Equal(t, audio.SampleRate(8000), e.SampleRate())
	handles := dev.Handles()
	require.Len(t, handles, 4)
	for _, h := range handles[:3] {
		require.True(t, h.IsClosed())
	}
}
