package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/endpointer/pkg/config"
	"github.com/xaionaro-go/endpointer/pkg/endpointer"
	"github.com/xaionaro-go/endpointer/pkg/metrics"
	"github.com/xaionaro-go/endpointer/pkg/utterance"
	"github.com/xaionaro-go/observability"
	"go.opentelemetry.io/otel"
)

func syntaxExit(message string) {
	fmt.Fprintf(os.Stderr, "syntax error: %s\n", message)
	pflag.Usage()
	os.Exit(2)
}

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configFlag := pflag.String("config", "", "path to a YAML configuration file")
	sourceFlag := pflag.String("source", config.SourceRecorder, fmt.Sprintf("audio source, allowed values: %v", config.ValidSources))
	classifierFlag := pflag.String("classifier", config.ClassifierAmplitude, fmt.Sprintf("voice classifier, allowed values: %v", config.ValidClassifiers))
	thresholdFlag := pflag.Int("threshold", endpointer.DefaultAmplitudeThreshold, "amplitude threshold of the 'amplitude' classifier")
	silenceTimeoutFlag := pflag.Duration("silence-timeout", endpointer.DefaultSilenceTimeout, "end an utterance after this much silence")
	maxDurationFlag := pflag.Duration("max-utterance-duration", endpointer.DefaultMaxUtteranceDuration, "end an utterance after this duration")
	outputDirFlag := pflag.String("output-dir", "", "save each utterance as a WAV file into this directory")
	loopbackFlag := pflag.Bool("audio-loopback", false, "[debug] playback each utterance when it ends")
	metricsAddrFlag := pflag.String("metrics-listen-addr", "", "an address to serve Prometheus metrics on")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	durationFlag := pflag.Duration("duration", 0, "stop after this duration (0 means run until interrupted)")
	pflag.Parse()
	if pflag.NArg() > 1 {
		syntaxExit("expected zero or one argument: [media-url]")
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			syntaxExit(err.Error())
		}
		cfg = *loaded
		if !pflag.CommandLine.Changed("log-level") && cfg.LogLevel != "" {
			if err := loggerLevel.Set(cfg.LogLevel); err != nil {
				syntaxExit(err.Error())
			}
		}
	}
	overrideString(&cfg.Source, "source", *sourceFlag)
	overrideString(&cfg.Classifier, "classifier", *classifierFlag)
	overrideString(&cfg.OutputDir, "output-dir", *outputDirFlag)
	overrideString(&cfg.MetricsListenAddr, "metrics-listen-addr", *metricsAddrFlag)
	if pflag.CommandLine.Changed("threshold") {
		cfg.AmplitudeThreshold = *thresholdFlag
	}
	if pflag.CommandLine.Changed("silence-timeout") {
		cfg.SilenceTimeout = *silenceTimeoutFlag
	}
	if pflag.CommandLine.Changed("max-utterance-duration") {
		cfg.MaxUtteranceDuration = *maxDurationFlag
	}
	if pflag.CommandLine.Changed("audio-loopback") {
		cfg.Loopback = *loopbackFlag
	}
	if pflag.NArg() == 1 {
		cfg.MediaURL = pflag.Arg(0)
		if !pflag.CommandLine.Changed("source") {
			cfg.Source = config.SourceMedia
		}
	}
	if err := cfg.Validate(); err != nil {
		syntaxExit(err.Error())
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()
	if *durationFlag > 0 {
		var cancelTimeoutFn context.CancelFunc
		ctx, cancelTimeoutFn = context.WithTimeout(ctx, *durationFlag)
		defer cancelTimeoutFn()
	}

	if err := run(ctx, &cfg); err != nil {
		logger.Fatal(ctx, err)
	}
}

func overrideString(dst *string, flagName string, value string) {
	if pflag.CommandLine.Changed(flagName) {
		*dst = value
	}
}

func run(ctx context.Context, cfg *config.Config) (_err error) {
	logger.Debugf(ctx, "run(ctx, %#+v)", *cfg)
	defer func() { logger.Debugf(ctx, "/run(ctx, %#+v): %v", *cfg, _err) }()

	var m *metrics.Metrics
	if cfg.MetricsListenAddr != "" {
		mp, err := metrics.InitPrometheus()
		if err != nil {
			return fmt.Errorf("unable to initialize metrics: %w", err)
		}
		defer mp.Shutdown(context.WithoutCancel(ctx))
		m, err = metrics.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("unable to initialize metric instruments: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		observability.Go(ctx, func() {
			logger.Infof(ctx, "serving metrics at http://%s/metrics", cfg.MetricsListenAddr)
			logger.Error(ctx, http.ListenAndServe(cfg.MetricsListenAddr, mux))
		})
	}

	device, err := newDevice(ctx, cfg)
	if err != nil {
		return err
	}

	sinks := utterance.Sinks{utterance.SinkFunc(printUtterance)}
	if cfg.OutputDir != "" {
		dirSink, err := utterance.NewWAVDirSink(cfg.OutputDir)
		if err != nil {
			return err
		}
		sinks = append(sinks, dirSink)
	}
	if cfg.Loopback {
		loopback := newLoopbackSink(ctx)
		defer loopback.Close()
		sinks = append(sinks, loopback)
	}

	collector := utterance.NewCollector(sinks, nil)
	collector.MaxBytes = cfg.MaxUtteranceBytes
	var listener endpointer.Listener = collector

	opts := cfg.EngineOptions()
	classifierFactory, err := newClassifierFactory(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, endpointer.OptionClassifierFactory(classifierFactory))
	if m != nil {
		listener = m.Listener(collector, nil)
		opts = append(opts, endpointer.OptionOnError(m.OnError))
	}

	engine, err := endpointer.New(device, listener, opts...)
	if err != nil {
		return err
	}
	collector.SampleRateFunc = engine.SampleRate

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("unable to start: %w", err)
	}
	logger.Infof(ctx, "listening at %d Hz (source: %s, classifier: %s)", engine.SampleRate(), cfg.Source, cfg.Classifier)

	select {
	case <-ctx.Done():
	case <-engine.Done():
	}

	stopCtx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelFn()
	err = engine.Stop(stopCtx)
	if errors.Is(err, io.EOF) {
		logger.Infof(ctx, "the media is over")
		return nil
	}
	return err
}

func printUtterance(ctx context.Context, u *utterance.Utterance) {
	fmt.Printf(
		"%s utterance: %v of audio at %d Hz (%s)\n",
		u.StartedAt.Format(time.TimeOnly), u.Duration().Truncate(time.Millisecond), u.SampleRate, u.Reason,
	)
}
