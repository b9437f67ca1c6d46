//go:build !no_portaudio

package main

import (
	"github.com/xaionaro-go/endpointer/pkg/capture"
	"github.com/xaionaro-go/endpointer/pkg/capture/implementations/portaudio"
	"github.com/xaionaro-go/endpointer/pkg/config"
)

func newPortAudioDevice(cfg *config.Config) (capture.Device, error) {
	d := portaudio.New()
	d.BufferDuration = cfg.BufferDuration
	return d, nil
}
