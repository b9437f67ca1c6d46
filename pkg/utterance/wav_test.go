package utterance

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
)

func TestWriteWAV(t *testing.T) {
	u := &Utterance{
		Audio:      []byte{1, 0, 2, 0, 3, 0},
		SampleRate: 16000,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, u))

	b := buf.Bytes()
	require.Len(t, b, 44+6)
	require.Equal(t, "RIFF", string(b[0:4]))
	require.EqualValues(t, 36+6, binary.LittleEndian.Uint32(b[4:]))
	require.Equal(t, "WAVEfmt ", string(b[8:16]))
	require.EqualValues(t, 1, binary.LittleEndian.Uint16(b[20:]))
	require.EqualValues(t, 1, binary.LittleEndian.Uint16(b[22:]))
	require.EqualValues(t, 16000, binary.LittleEndian.Uint32(b[24:]))
	require.EqualValues(t, 32000, binary.LittleEndian.Uint32(b[28:]))
	require.EqualValues(t, 2, binary.LittleEndian.Uint16(b[32:]))
	require.EqualValues(t, 16, binary.LittleEndian.Uint16(b[34:]))
	require.Equal(t, "data", string(b[36:40]))
	require.EqualValues(t, 6, binary.LittleEndian.Uint32(b[40:]))
	require.Equal(t, u.Audio, b[44:])
}

func TestWriteWAVNoSampleRate(t *testing.T) {
	require.Error(t, WriteWAV(&bytes.Buffer{}, &Utterance{Audio: []byte{0, 0}}))
}

func TestWAVDirSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewWAVDirSink(dir)
	require.NoError(t, err)

	u := &Utterance{
		Audio:      make([]byte, 3200),
		SampleRate: 16000,
		StartedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Reason:     endpointer.EndReasonSilenceTimeout,
	}
	path, err := sink.Save(u)
	require.NoError(t, err)
	require.Contains(t, path, "utterance-20240102-030405-0001.wav")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, b, 44+3200)
}
