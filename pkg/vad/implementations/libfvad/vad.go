// Package libfvad implements a voice classifier on top of the WebRTC VAD
// (libfvad).
package libfvad

import (
	"context"
	"fmt"

	"github.com/josharian/fvad"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/vad"
)

const DefaultMode = 3

type Classifier struct {
	*fvad.Detector
	SampleRate audio.SampleRate

	frameBuf []int16
}

var _ vad.Classifier = (*Classifier)(nil)

func New(
	sampleRate audio.SampleRate,
	sensitivityMode int,
) (*Classifier, error) {
	detector := fvad.NewDetector()
	if err := detector.SetSampleRate(int(sampleRate)); err != nil {
		detector.Close()
		return nil, fmt.Errorf("unable to set the sample rate %d: %w", sampleRate, err)
	}
	if err := detector.SetMode(sensitivityMode); err != nil {
		detector.Close()
		return nil, fmt.Errorf("unable to set the sensitivity mode %d: %w", sensitivityMode, err)
	}
	return &Classifier{
		SampleRate: sampleRate,
		Detector:   detector,
	}, nil
}

func Factory(sensitivityMode int) vad.Factory {
	return func(_ context.Context, sampleRate audio.SampleRate) (vad.Classifier, error) {
		return New(sampleRate, sensitivityMode)
	}
}

func (v *Classifier) Close() error {
	v.Detector.Close()
	return nil
}

// IsVoiced splits the buffer into 30ms frames (the tail into 20ms and
// 10ms frames) and reports whether any of them is voiced. A tail shorter
// than 10ms is ignored.
func (v *Classifier) IsVoiced(samples []byte) bool {
	// see the description of (*fvad.Detector).Process
	minPortion := v.pieceSize10Ms()
	midPortion := minPortion * 2
	maxPortion := minPortion * 3
	for {
		var frame []byte
		switch {
		case len(samples) >= maxPortion:
			frame = samples[:maxPortion]
		case len(samples) >= midPortion:
			frame = samples[:midPortion]
		case len(samples) >= minPortion:
			frame = samples[:minPortion]
		default:
			return false
		}
		samples = samples[len(frame):]
		v.frameBuf = decodeS16LE(v.frameBuf, frame)
		isVoiced, err := v.Detector.Process(v.frameBuf)
		if err != nil {
			continue
		}
		if isVoiced {
			return true
		}
	}
}

func (v *Classifier) pieceSize10Ms() int {
	return int(2 * 80 * uint64(v.SampleRate) / 8000)
}
