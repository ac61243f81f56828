package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/inferfire/internal/actor"
	"github.com/torosent/inferfire/internal/config"
	"github.com/torosent/inferfire/internal/harness"
	"github.com/torosent/inferfire/internal/metrics"
	"github.com/torosent/inferfire/internal/model"
	"github.com/torosent/inferfire/internal/output"
	"github.com/torosent/inferfire/internal/procworker"
	"github.com/torosent/inferfire/internal/runner"
	"github.com/torosent/inferfire/internal/tracing"
)

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dispatch routes the hidden child modes used by the process and actor
// pools; everything else is a normal harness run.
func dispatch(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case procworker.WorkerArg:
			return runWorker()
		case actor.ActorArg:
			return runActor()
		}
	}
	return run(args)
}

// runWorker is the child side of the process pools: a serve loop over the
// stdio pipes the parent holds.
func runWorker() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return procworker.Serve(ctx, os.Stdin, os.Stdout)
}

// runActor is the child side of the distributed pool: a gRPC prediction
// server that announces its listen address on stdout.
func runActor() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	log := newLogger(os.Getenv("INFERFIRE_LOG_LEVEL"))
	return actor.Run(ctx, os.Stdout, log)
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	kind, err := runner.ParseKind(cfg.Strategy)
	if err != nil {
		return err
	}

	spec := model.Spec{Name: cfg.Model.Name, Params: cfg.Model.Params}
	factory, err := model.NewFactory(spec)
	if err != nil {
		return err
	}

	body, err := loadBody(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, cfg.Timeout)
		defer tcancel()
	}

	tracer, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	collector := metrics.NewCollector()
	h := harness.New(harness.Options{
		Runner: runner.Options{
			Kind:           kind,
			MaxConcurrency: cfg.MaxConcurrency,
			Factory:        factory,
			Spec:           spec,
			WorkerCommand:  cfg.WorkerCommand,
			ActorAddrs:     cfg.Actors,
		},
		Batches:       cfg.Batches,
		BatchSize:     cfg.BatchSize,
		Body:          body,
		RatePerSecond: cfg.Rate,
		Collector:     collector,
		Tracer:        tracer,
		Logger:        log,
	})

	res, err := h.Run(ctx)
	if err != nil {
		return err
	}

	report := output.Report{
		RunID:       res.RunID,
		GeneratedAt: time.Now().UTC(),
		Strategy:    cfg.Strategy,
		Model:       cfg.Model.Name,
		Stats:       res.Stats,
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, res.Stats)
	}

	if cfg.ReportFile != "" {
		if err := output.WriteReportFile(cfg.ReportFile, report); err != nil {
			return err
		}
		log.Info().Str("path", cfg.ReportFile).Msg("report written")
	}

	if res.Stats.Failures > 0 {
		return fmt.Errorf("%d queries failed", res.Stats.Failures)
	}
	return nil
}

func loadBody(cfg *config.Config) ([]byte, error) {
	if cfg.BodyFile != "" {
		data, err := os.ReadFile(cfg.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return data, nil
	}
	if cfg.Body != "" {
		return []byte(cfg.Body), nil
	}
	return nil, nil
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
