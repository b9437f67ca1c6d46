package media

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/audio/pkg/audio/resampler"
	"github.com/xaionaro-go/player/pkg/player/builtin"
)

// pcmRenderer pretends to be an audio output for the media player, but
// instead of playing the decoded audio it converts it to the requested
// format and makes it available through the embedded pipe reader.
type pcmRenderer struct {
	*io.PipeReader
	ctx          context.Context
	writer       *io.PipeWriter
	outputFormat resampler.Format

	locker  sync.Mutex
	streams []*pcmCopier
}

var _ io.Reader = (*pcmRenderer)(nil)
var _ builtin.AudioRenderer = (*pcmRenderer)(nil)

func newPCMRenderer(
	ctx context.Context,
	outputFormat resampler.Format,
) *pcmRenderer {
	r, w := io.Pipe()
	return &pcmRenderer{
		PipeReader:   r,
		ctx:          ctx,
		writer:       w,
		outputFormat: outputFormat,
	}
}

func (r *pcmRenderer) PlayPCM(
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (audio.PlayStream, error) {
	ctx := r.ctx
	logger.Debugf(ctx, "PlayPCM(%v, %v, %v, %v, reader)", sampleRate, channels, format, bufferSize)

	inputFormat := resampler.Format{
		Channels:   channels,
		SampleRate: sampleRate,
		PCMFormat:  format,
	}
	resampledReader, err := resampler.NewResampler(inputFormat, reader, r.outputFormat)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inputFormat, r.outputFormat, err)
	}

	s := newPCMCopier(ctx, resampledReader, r.writer)
	r.locker.Lock()
	r.streams = append(r.streams, s)
	r.locker.Unlock()
	return s, nil
}

func (r *pcmRenderer) Close() error {
	r.locker.Lock()
	streams := r.streams
	r.streams = nil
	r.locker.Unlock()
	for _, s := range streams {
		s.Close()
	}
	r.PipeReader.Close()
	r.writer.Close()
	return nil
}
