package main

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/utterance"
	"github.com/xaionaro-go/observability"
)

const loopbackQueueSize = 4

// loopbackSink plays the utterances back, one by one. The playback is
// done asynchronously to not block the capture; utterances arriving while
// the queue is full are skipped.
type loopbackSink struct {
	queue     chan *utterance.Utterance
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ utterance.Sink = (*loopbackSink)(nil)

func newLoopbackSink(ctx context.Context) *loopbackSink {
	s := &loopbackSink{
		queue: make(chan *utterance.Utterance, loopbackQueueSize),
	}
	s.wg.Add(1)
	observability.Go(ctx, func() {
		defer s.wg.Done()
		player := audio.NewPlayerAuto(ctx)
		logger.Infof(ctx, "using %T as the audio output", player.PlayerPCM)
		for u := range s.queue {
			stream, err := player.PlayPCM(u.SampleRate, 1, audio.PCMFormatS16LE, 100*time.Millisecond, bytes.NewReader(u.Audio))
			if err != nil {
				logger.Errorf(ctx, "unable to play the utterance back: %v", err)
				continue
			}
			if err := stream.Drain(); err != nil {
				logger.Errorf(ctx, "unable to drain the playback: %v", err)
			}
			if err := stream.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the playback: %v", err)
			}
		}
	})
	return s
}

func (s *loopbackSink) OnUtterance(ctx context.Context, u *utterance.Utterance) {
	select {
	case s.queue <- u:
	default:
		logger.Warnf(ctx, "the playback queue is full; skipping an utterance")
	}
}

func (s *loopbackSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
	return nil
}
