package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/endpointer/pkg/capture"
	"github.com/xaionaro-go/endpointer/pkg/capture/implementations/media"
	"github.com/xaionaro-go/endpointer/pkg/capture/implementations/recorder"
	"github.com/xaionaro-go/endpointer/pkg/capture/implementations/synthetic"
	"github.com/xaionaro-go/endpointer/pkg/config"
)

func newDevice(
	ctx context.Context,
	cfg *config.Config,
) (capture.Device, error) {
	logger.Debugf(ctx, "newDevice(ctx, '%s')", cfg.Source)
	switch cfg.Source {
	case config.SourceRecorder:
		d := recorder.New()
		d.BufferDuration = cfg.BufferDuration
		return d, nil
	case config.SourcePortAudio:
		return newPortAudioDevice(cfg)
	case config.SourceMedia:
		d := media.New(cfg.MediaURL)
		d.BufferDuration = cfg.BufferDuration
		return d, nil
	case config.SourceSynthetic:
		d := synthetic.New(demoScript()...)
		d.BufferDuration = cfg.BufferDuration
		d.Repeat = true
		d.Realtime = true
		return d, nil
	}
	return nil, fmt.Errorf("unknown source '%s'", cfg.Source)
}

// demoScript alternates random bursts of "speech" and silence.
func demoScript() []bool {
	var script []bool
	for range 10 {
		script = append(script, synthetic.Voiced(5+rand.IntN(30))...)
		script = append(script, synthetic.Silent(10+rand.IntN(40))...)
	}
	return script
}
