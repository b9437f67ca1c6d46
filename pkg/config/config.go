// Package config defines the configuration file of voicerec.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
	"github.com/xaionaro-go/endpointer/pkg/utterance"
	"gopkg.in/yaml.v3"
)

const (
	SourceRecorder  = "recorder"
	SourcePortAudio = "portaudio"
	SourceMedia     = "media"
	SourceSynthetic = "synthetic"

	ClassifierAmplitude = "amplitude"
	ClassifierLibfvad   = "libfvad"
)

var (
	ValidSources     = []string{SourceRecorder, SourcePortAudio, SourceMedia, SourceSynthetic}
	ValidClassifiers = []string{ClassifierAmplitude, ClassifierLibfvad}
)

type Config struct {
	Source         string        `yaml:"source"`
	MediaURL       string        `yaml:"media_url"`
	BufferDuration time.Duration `yaml:"buffer_duration"`

	SampleRates          []audio.SampleRate `yaml:"sample_rates"`
	AmplitudeThreshold   int                `yaml:"amplitude_threshold"`
	SilenceTimeout       time.Duration      `yaml:"silence_timeout"`
	MaxUtteranceDuration time.Duration      `yaml:"max_utterance_duration"`
	Classifier           string             `yaml:"classifier"`
	LibfvadMode          int                `yaml:"libfvad_mode"`

	OutputDir         string `yaml:"output_dir"`
	MaxUtteranceBytes int    `yaml:"max_utterance_bytes"`
	Loopback          bool   `yaml:"loopback"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
	LogLevel          string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Source:               SourceRecorder,
		BufferDuration:       100 * time.Millisecond,
		SampleRates:          slices.Clone(endpointer.DefaultSampleRates),
		AmplitudeThreshold:   endpointer.DefaultAmplitudeThreshold,
		SilenceTimeout:       endpointer.DefaultSilenceTimeout,
		MaxUtteranceDuration: endpointer.DefaultMaxUtteranceDuration,
		Classifier:           ClassifierAmplitude,
		LibfvadMode:          3,
		MaxUtteranceBytes:    utterance.DefaultMaxBytes,
		LogLevel:             "info",
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to load '%s': %w", path, err)
	}
	return cfg, nil
}

func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to decode YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns all the problems of the configuration joined together.
func (cfg *Config) Validate() error {
	var errs []error
	if !slices.Contains(ValidSources, cfg.Source) {
		errs = append(errs, fmt.Errorf("source '%s' is invalid; valid values: %v", cfg.Source, ValidSources))
	}
	if cfg.Source == SourceMedia && cfg.MediaURL == "" {
		errs = append(errs, fmt.Errorf("media_url is required for source '%s'", SourceMedia))
	}
	if cfg.BufferDuration <= 0 {
		errs = append(errs, fmt.Errorf("buffer_duration must be positive, got %v", cfg.BufferDuration))
	}
	if len(cfg.SampleRates) == 0 {
		errs = append(errs, fmt.Errorf("sample_rates must not be empty"))
	}
	for _, rate := range cfg.SampleRates {
		if rate == 0 {
			errs = append(errs, fmt.Errorf("sample_rates must not contain zero"))
			break
		}
	}
	if cfg.AmplitudeThreshold < 0 {
		errs = append(errs, fmt.Errorf("amplitude_threshold must not be negative, got %d", cfg.AmplitudeThreshold))
	}
	if cfg.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("silence_timeout must be positive, got %v", cfg.SilenceTimeout))
	}
	if cfg.MaxUtteranceDuration <= 0 {
		errs = append(errs, fmt.Errorf("max_utterance_duration must be positive, got %v", cfg.MaxUtteranceDuration))
	}
	if !slices.Contains(ValidClassifiers, cfg.Classifier) {
		errs = append(errs, fmt.Errorf("classifier '%s' is invalid; valid values: %v", cfg.Classifier, ValidClassifiers))
	}
	if cfg.LibfvadMode < 0 || cfg.LibfvadMode > 3 {
		errs = append(errs, fmt.Errorf("libfvad_mode must be within [0..3], got %d", cfg.LibfvadMode))
	}
	if cfg.MaxUtteranceBytes < 0 {
		errs = append(errs, fmt.Errorf("max_utterance_bytes must not be negative, got %d", cfg.MaxUtteranceBytes))
	}
	if cfg.LogLevel != "" {
		var level logger.Level
		if err := level.Set(cfg.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level '%s' is invalid: %w", cfg.LogLevel, err))
		}
	}
	return errors.Join(errs...)
}

// EngineOptions converts the configuration to the engine options; the
// classifier is chosen by the caller.
func (cfg *Config) EngineOptions() endpointer.Options {
	return endpointer.Options{
		endpointer.OptionSampleRates(cfg.SampleRates),
		endpointer.OptionAmplitudeThreshold(cfg.AmplitudeThreshold),
		endpointer.OptionSilenceTimeout(cfg.SilenceTimeout),
		endpointer.OptionMaxUtteranceDuration(cfg.MaxUtteranceDuration),
	}
}
