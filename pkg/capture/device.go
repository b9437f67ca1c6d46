package capture

import (
	"context"
	"io"

	"github.com/xaionaro-go/audio/pkg/audio"
)

type State int

const (
	StateUninitialized = State(iota)
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	}
	return "unknown"
}

// Device is an audio input capable of opening capture handles.
type Device interface {
	// MinBufferSize returns the minimal read buffer size (in bytes) the device
	// requires for the given combination. If the combination is not supported
	// the returned error wraps ErrUnsupported.
	MinBufferSize(
		ctx context.Context,
		sampleRate audio.SampleRate,
		channels audio.Channel,
		format audio.PCMFormat,
	) (int, error)

	// Open creates a capture handle. The handle might be returned in
	// StateUninitialized, in which case it must be closed by the caller.
	Open(
		ctx context.Context,
		sampleRate audio.SampleRate,
		channels audio.Channel,
		format audio.PCMFormat,
		bufferSize int,
	) (Handle, error)
}

// Handle is an opened capture stream.
type Handle interface {
	io.Closer

	State() State
	SampleRate() audio.SampleRate
	Start(context.Context) error

	// Read blocks until buf is filled (or the stream fails) and returns the
	// amount of bytes read.
	Read(ctx context.Context, buf []byte) (int, error)

	Stop(context.Context) error
}
