package vad

import (
	"context"

	"github.com/xaionaro-go/audio/pkg/audio"
)

// Classifier decides whether a buffer of PCM S16LE mono samples contains voice.
//
// Implementations are not required to be safe for concurrent use. If
// a Classifier also implements io.Closer, it is closed together with
// the capture binding it was created for.
type Classifier interface {
	IsVoiced(samples []byte) bool
}

// Factory creates a Classifier for the sample rate negotiated with the
// capture device.
type Factory func(ctx context.Context, sampleRate audio.SampleRate) (Classifier, error)
