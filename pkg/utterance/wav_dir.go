package utterance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// WAVDirSink saves each utterance as a separate WAV file in Dir.
type WAVDirSink struct {
	Dir string

	counter atomic.Uint64
}

var _ Sink = (*WAVDirSink)(nil)

func NewWAVDirSink(dir string) (*WAVDirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create directory '%s': %w", dir, err)
	}
	return &WAVDirSink{Dir: dir}, nil
}

func (s *WAVDirSink) OnUtterance(ctx context.Context, u *Utterance) {
	path, err := s.Save(u)
	if err != nil {
		logger.Errorf(ctx, "unable to save the utterance: %v", err)
		return
	}
	logger.Infof(ctx, "saved an utterance of %v (%s) to '%s'", u.Duration(), u.Reason, path)
}

func (s *WAVDirSink) Save(u *Utterance) (_ string, _err error) {
	idx := s.counter.Add(1)
	path := filepath.Join(s.Dir, fmt.Sprintf("utterance-%s-%04d.wav", u.StartedAt.Format("20060102-150405"), idx))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()
	if err := WriteWAV(f, u); err != nil {
		return "", fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return path, nil
}
