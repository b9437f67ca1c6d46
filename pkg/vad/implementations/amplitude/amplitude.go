// Package amplitude implements a voice classifier which triggers when any
// sample of a buffer exceeds a fixed amplitude threshold.
package amplitude

import (
	"context"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/vad"
)

const DefaultThreshold = 1500

type Classifier struct {
	Threshold int
}

var _ vad.Classifier = (*Classifier)(nil)

func New(threshold int) *Classifier {
	return &Classifier{
		Threshold: threshold,
	}
}

// Factory returns a vad.Factory producing classifiers with the given
// threshold; the classifier does not depend on the sample rate.
func Factory(threshold int) vad.Factory {
	return func(context.Context, audio.SampleRate) (vad.Classifier, error) {
		return New(threshold), nil
	}
}

// IsVoiced reports whether the amplitude estimate of any sample is strictly
// above the threshold. A trailing odd byte is ignored.
func (c *Classifier) IsVoiced(samples []byte) bool {
	for idx := 0; idx+1 < len(samples); idx += 2 {
		if Estimate(samples[idx], samples[idx+1]) > c.Threshold {
			return true
		}
	}
	return false
}

// Estimate approximates the magnitude of a S16LE sample as
// |hi| << 8 + |lo|, where both bytes are taken as signed.
//
// This is not the real magnitude of the sample (e.g. -1 is estimated
// as 257), but the approximation is kept as is to keep the triggering
// behavior of existing deployments.
func Estimate(lo, hi byte) int {
	return absInt8(hi)<<8 + absInt8(lo)
}

func absInt8(b byte) int {
	v := int(int8(b))
	if v < 0 {
		return -v
	}
	return v
}
