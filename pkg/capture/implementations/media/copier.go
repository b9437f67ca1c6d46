package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/observability"
)

const copyBufferSize = 64 * 1024

// pcmCopier moves the converted audio of one played stream into the pipe.
// When the stream is over, the pipe is closed with io.EOF, so that the
// reading side sees the end of the media.
type pcmCopier struct {
	cancelFunc context.CancelFunc
	reader     io.Reader
	writer     *io.PipeWriter
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var _ audio.PlayStream = (*pcmCopier)(nil)

func newPCMCopier(
	ctx context.Context,
	reader io.Reader,
	writer *io.PipeWriter,
) *pcmCopier {
	ctx, cancelFunc := context.WithCancel(ctx)
	s := &pcmCopier{
		cancelFunc: cancelFunc,
		reader:     reader,
		writer:     writer,
	}
	s.wg.Add(1)
	observability.Go(ctx, func() {
		defer s.wg.Done()
		err := s.loop(ctx)
		switch {
		case err == nil, errors.Is(err, io.EOF):
			s.writer.CloseWithError(io.EOF)
		case ctx.Err() != nil:
		default:
			logger.Errorf(ctx, "copy loop returned error: %v", err)
			s.writer.CloseWithError(err)
		}
	})
	return s
}

func (s *pcmCopier) loop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "loop()")
	defer func() { logger.Debugf(ctx, "/loop(): %v", _err) }()

	buf := make([]byte, copyBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.reader.Read(buf)
		logger.Tracef(ctx, "Read(): %v %v", n, err)
		if n > 0 {
			if _, writeErr := s.writer.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("unable to write the audio: %w", writeErr)
			}
		}
		if err != nil {
			return fmt.Errorf("unable to read the audio: %w", err)
		}
	}
}

func (s *pcmCopier) Drain() error {
	s.wg.Wait()
	return nil
}

func (s *pcmCopier) Close() error {
	s.closeOnce.Do(func() {
		logger.Debugf(context.TODO(), "Close")
		s.cancelFunc()
	})
	return nil
}
