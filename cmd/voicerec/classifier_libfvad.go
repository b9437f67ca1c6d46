//go:build !no_libfvad

package main

import (
	"github.com/xaionaro-go/endpointer/pkg/config"
	"github.com/xaionaro-go/endpointer/pkg/vad"
	"github.com/xaionaro-go/endpointer/pkg/vad/implementations/libfvad"
)

func newLibfvadFactory(cfg *config.Config) (vad.Factory, error) {
	return libfvad.Factory(cfg.LibfvadMode), nil
}
