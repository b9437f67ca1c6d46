package utterance

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// WriteWAV writes the utterance as a RIFF/WAVE file (PCM S16LE, mono).
func WriteWAV(w io.Writer, u *Utterance) error {
	if u.SampleRate == 0 {
		return fmt.Errorf("the sample rate is not set")
	}
	if uint64(len(u.Audio)) > math.MaxUint32-(wavHeaderSize-8) {
		return fmt.Errorf("the audio is too long for WAV: %d bytes", len(u.Audio))
	}

	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	dataSize := uint32(len(u.Audio))
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     wavHeaderSize - 8 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(u.SampleRate),
		ByteRate:      uint32(u.SampleRate) * numChannels * bitsPerSample / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("unable to write the WAV header: %w", err)
	}
	if _, err := w.Write(u.Audio); err != nil {
		return fmt.Errorf("unable to write the audio data: %w", err)
	}
	return nil
}
