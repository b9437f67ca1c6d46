package main

import (
	"fmt"

	"github.com/xaionaro-go/endpointer/pkg/config"
	"github.com/xaionaro-go/endpointer/pkg/vad"
	"github.com/xaionaro-go/endpointer/pkg/vad/implementations/amplitude"
)

func newClassifierFactory(cfg *config.Config) (vad.Factory, error) {
	switch cfg.Classifier {
	case config.ClassifierAmplitude:
		return amplitude.Factory(cfg.AmplitudeThreshold), nil
	case config.ClassifierLibfvad:
		return newLibfvadFactory(cfg)
	}
	return nil, fmt.Errorf("unknown classifier '%s'", cfg.Classifier)
}
