package capture

import (
	"errors"
	"fmt"

	"github.com/xaionaro-go/audio/pkg/audio"
)

var (
	ErrUnsupported              = errors.New("the format is not supported by the device")
	ErrNoCaptureDeviceAvailable = errors.New("no capture device available")
	ErrHandleClosed             = errors.New("the capture handle is closed")
)

type ErrNoSampleRateBound struct {
	SampleRates []audio.SampleRate

	// Err is the last rejection of an opened binding, if any.
	Err error
}

func (e ErrNoSampleRateBound) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to bind the device with any of sample rates %v: %v", e.SampleRates, e.Err)
	}
	return fmt.Sprintf("unable to bind the device with any of sample rates %v", e.SampleRates)
}

func (e ErrNoSampleRateBound) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoCaptureDeviceAvailable}
	}
	return []error{ErrNoCaptureDeviceAvailable, e.Err}
}
