//go:build no_portaudio

package main

import (
	"fmt"

	"github.com/xaionaro-go/endpointer/pkg/capture"
	"github.com/xaionaro-go/endpointer/pkg/config"
)

func newPortAudioDevice(*config.Config) (capture.Device, error) {
	return nil, fmt.Errorf("built without PortAudio support (tag 'no_portaudio')")
}
