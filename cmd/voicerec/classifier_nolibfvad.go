//go:build no_libfvad

package main

import (
	"fmt"

	"github.com/xaionaro-go/endpointer/pkg/config"
	"github.com/xaionaro-go/endpointer/pkg/vad"
)

func newLibfvadFactory(*config.Config) (vad.Factory, error) {
	return nil, fmt.Errorf("built without libfvad support (tag 'no_libfvad')")
}
