package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inferfire",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Runner flags
	flags.StringP("strategy", "s", "inline", "Runner strategy: inline, thread-pool, thread-pool-local, process-pool, batch-process-pool, or distributed-actor-pool")
	flags.IntP("max-concurrency", "c", 1, "Number of pool workers")
	flags.StringSlice("actor", nil, "Remote actor address (repeatable); empty spawns actors locally")
	flags.StringSlice("worker-cmd", nil, "Child process argv for process pools; empty re-executes this binary")

	// Workload flags
	flags.IntP("batches", "b", 1, "Number of query batches to issue")
	flags.IntP("batch-size", "n", 1, "Queries per batch")
	flags.IntP("rate", "r", 0, "Batches per second limit (0 means unpaced)")
	flags.String("body", "", "Inline query payload sent for every query")
	flags.String("body-file", "", "Path to file containing the query payload")
	flags.Duration("timeout", 0, "Whole-run deadline (0 means none)")

	// Model flags
	flags.StringP("model", "m", "", "Model name to run (e.g. echo, sha256, sleep, jsonpath)")
	flags.StringToString("model-param", nil, "Model parameter key=value pairs")
	flags.String("model-params-file", "", "Path to YAML file of model parameters")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.String("report-file", "", "Write the JSON run report to the specified file path")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, or error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("otlp-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("otlp-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.String("trace-service-name", "", "Service name reported on spans")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("strategy") {
		val, err := fs.GetString("strategy")
		if err != nil {
			return err
		}
		cfg.Strategy = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("max-concurrency") {
		val, err := fs.GetInt("max-concurrency")
		if err != nil {
			return err
		}
		cfg.MaxConcurrency = val
	}
	if fs.Changed("actor") {
		val, err := fs.GetStringSlice("actor")
		if err != nil {
			return err
		}
		cfg.Actors = val
	}
	if fs.Changed("worker-cmd") {
		val, err := fs.GetStringSlice("worker-cmd")
		if err != nil {
			return err
		}
		cfg.WorkerCommand = val
	}
	if fs.Changed("batches") {
		val, err := fs.GetInt("batches")
		if err != nil {
			return err
		}
		cfg.Batches = val
	}
	if fs.Changed("batch-size") {
		val, err := fs.GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.BatchSize = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("model") {
		val, err := fs.GetString("model")
		if err != nil {
			return err
		}
		cfg.Model.Name = strings.TrimSpace(val)
	}
	if fs.Changed("model-param") {
		val, err := fs.GetStringToString("model-param")
		if err != nil {
			return err
		}
		if cfg.Model.Params == nil {
			cfg.Model.Params = map[string]string{}
		}
		for k, v := range val {
			cfg.Model.Params[k] = v
		}
	}
	if fs.Changed("model-params-file") {
		val, err := fs.GetString("model-params-file")
		if err != nil {
			return err
		}
		cfg.Model.ParamsFile = strings.TrimSpace(val)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("report-file") {
		val, err := fs.GetString("report-file")
		if err != nil {
			return err
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("otlp-endpoint") {
		val, err := fs.GetString("otlp-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otlp-protocol") {
		val, err := fs.GetString("otlp-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("otlp-insecure") {
		val, err := fs.GetBool("otlp-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	return nil
}
