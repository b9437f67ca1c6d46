package endpointer

import (
	"errors"
	"fmt"

	"github.com/xaionaro-go/endpointer/pkg/capture"
)

var (
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrNoCaptureDeviceAvailable = capture.ErrNoCaptureDeviceAvailable
	ErrCaptureStartFailed       = errors.New("unable to start capturing")
	ErrCaptureReadFailed        = errors.New("unable to read from the capture device")
	ErrSessionNotReleased       = errors.New("the previous capture session is not released yet")
)

type ErrInvalidConfig struct {
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (ErrInvalidConfig) Unwrap() error {
	return ErrInvalidConfiguration
}

type ErrInitClassifier struct {
	Err error
}

func (e ErrInitClassifier) Error() string {
	return fmt.Sprintf("unable to initialize the voice classifier: %v", e.Err)
}

func (e ErrInitClassifier) Unwrap() error {
	return e.Err
}

type ErrCaptureStart struct {
	Err error
}

func (e ErrCaptureStart) Error() string {
	return fmt.Sprintf("unable to start capturing: %v", e.Err)
}

func (e ErrCaptureStart) Unwrap() []error {
	return []error{ErrCaptureStartFailed, e.Err}
}

type ErrCaptureRead struct {
	Err        error
	ReleaseErr error
}

func (e ErrCaptureRead) Error() string {
	if e.ReleaseErr != nil {
		return fmt.Sprintf("unable to read from the capture device: %v (and unable to release it: %v)", e.Err, e.ReleaseErr)
	}
	return fmt.Sprintf("unable to read from the capture device: %v", e.Err)
}

func (e ErrCaptureRead) Unwrap() []error {
	return []error{ErrCaptureReadFailed, e.Err}
}
