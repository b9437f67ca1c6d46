package endpointer

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/vad"
)

const (
	DefaultAmplitudeThreshold   = 1500
	DefaultSilenceTimeout       = 2000 * time.Millisecond
	DefaultMaxUtteranceDuration = 30000 * time.Millisecond
	DefaultProbeCacheSize       = 16
)

// DefaultSampleRates is the order in which sample rates are tried.
var DefaultSampleRates = []audio.SampleRate{16000, 11025, 22050, 44100, 8000}

type config struct {
	SampleRates          []audio.SampleRate
	Channels             audio.Channel
	PCMFormat            audio.PCMFormat
	AmplitudeThreshold   int
	SilenceTimeout       time.Duration
	MaxUtteranceDuration time.Duration
	ClassifierFactory    vad.Factory
	Clock                Clock
	OnError              func(ctx context.Context, err error)
	ProbeCacheSize       uint
}

func defaultConfig() config {
	return config{
		SampleRates:          DefaultSampleRates,
		Channels:             1,
		PCMFormat:            audio.PCMFormatS16LE,
		AmplitudeThreshold:   DefaultAmplitudeThreshold,
		SilenceTimeout:       DefaultSilenceTimeout,
		MaxUtteranceDuration: DefaultMaxUtteranceDuration,
		Clock:                wallClock{},
		ProbeCacheSize:       DefaultProbeCacheSize,
	}
}

func (cfg config) validate() error {
	if len(cfg.SampleRates) == 0 {
		return ErrInvalidConfig{Reason: "no sample rates given"}
	}
	for _, sampleRate := range cfg.SampleRates {
		if sampleRate == 0 {
			return ErrInvalidConfig{Reason: "zero sample rate"}
		}
	}
	if cfg.Channels != 1 {
		return ErrInvalidConfig{Reason: fmt.Sprintf("only mono capture is supported, but %d channels requested", cfg.Channels)}
	}
	if cfg.PCMFormat != audio.PCMFormatS16LE {
		return ErrInvalidConfig{Reason: fmt.Sprintf("only %v is supported, but %v requested", audio.PCMFormatS16LE, cfg.PCMFormat)}
	}
	if cfg.AmplitudeThreshold < 0 {
		return ErrInvalidConfig{Reason: fmt.Sprintf("negative amplitude threshold: %d", cfg.AmplitudeThreshold)}
	}
	if cfg.SilenceTimeout <= 0 {
		return ErrInvalidConfig{Reason: fmt.Sprintf("non-positive silence timeout: %v", cfg.SilenceTimeout)}
	}
	if cfg.MaxUtteranceDuration <= 0 {
		return ErrInvalidConfig{Reason: fmt.Sprintf("non-positive max utterance duration: %v", cfg.MaxUtteranceDuration)}
	}
	if cfg.Clock == nil {
		return ErrInvalidConfig{Reason: "nil clock"}
	}
	return nil
}

type Option interface {
	apply(*config)
}

type Options []Option

func (opts Options) apply(cfg *config) {
	for _, opt := range opts {
		opt.apply(cfg)
	}
}

func (opts Options) config() config {
	cfg := defaultConfig()
	opts.apply(&cfg)
	return cfg
}

// OptionSampleRates defines the order in which sample rates are tried.
type OptionSampleRates []audio.SampleRate

func (opt OptionSampleRates) apply(cfg *config) {
	cfg.SampleRates = opt
}

type OptionChannels audio.Channel

func (opt OptionChannels) apply(cfg *config) {
	cfg.Channels = audio.Channel(opt)
}

type OptionPCMFormat audio.PCMFormat

func (opt OptionPCMFormat) apply(cfg *config) {
	cfg.PCMFormat = audio.PCMFormat(opt)
}

// OptionAmplitudeThreshold is used only when no OptionClassifierFactory is given.
type OptionAmplitudeThreshold int

func (opt OptionAmplitudeThreshold) apply(cfg *config) {
	cfg.AmplitudeThreshold = int(opt)
}

type OptionSilenceTimeout time.Duration

func (opt OptionSilenceTimeout) apply(cfg *config) {
	cfg.SilenceTimeout = time.Duration(opt)
}

type OptionMaxUtteranceDuration time.Duration

func (opt OptionMaxUtteranceDuration) apply(cfg *config) {
	cfg.MaxUtteranceDuration = time.Duration(opt)
}

type OptionClassifierFactory vad.Factory

func (opt OptionClassifierFactory) apply(cfg *config) {
	cfg.ClassifierFactory = vad.Factory(opt)
}

type OptionClock struct {
	Clock
}

func (opt OptionClock) apply(cfg *config) {
	cfg.Clock = opt.Clock
}

// OptionOnError is called (from the segmentation loop) when capturing fails.
type OptionOnError func(ctx context.Context, err error)

func (opt OptionOnError) apply(cfg *config) {
	cfg.OnError = opt
}

// OptionProbeCacheSize sets how many MinBufferSize results are remembered
// between starts; zero disables the cache.
type OptionProbeCacheSize uint

func (opt OptionProbeCacheSize) apply(cfg *config) {
	cfg.ProbeCacheSize = uint(opt)
}
