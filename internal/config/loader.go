package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Strategy:       "inline",
		MaxConcurrency: 1,
		Batches:        1,
		BatchSize:      1,
		LogLevel:       "info",
		ConfigFile:     configPath,
		Tracing:        TracingConfig{SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Strategy = strings.ToLower(strings.TrimSpace(cfg.Strategy))
	cfg.Model.Name = strings.TrimSpace(cfg.Model.Name)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)

	if err := loadModelParams(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "strategy"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
		if val != "" {
			cfg.Strategy = val
		}
	}

	if raw, ok := lookupSetting(settings, "maxconcurrency", "max_concurrency", "max-concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("maxConcurrency: %w", err)
		}
		cfg.MaxConcurrency = val
	}

	if raw, ok := lookupSetting(settings, "batches"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("batches: %w", err)
		}
		cfg.Batches = val
	}

	if raw, ok := lookupSetting(settings, "batchsize", "batch_size", "batch-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("batchSize: %w", err)
		}
		cfg.BatchSize = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		cfg.Body = val
	}

	if raw, ok := lookupSetting(settings, "bodyfile", "body_file", "body-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("bodyFile: %w", err)
		}
		cfg.BodyFile = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "reportfile", "report_file", "report-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("reportFile: %w", err)
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		if val != "" {
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
		}
	}

	if raw, ok := lookupSetting(settings, "model"); ok {
		mc, err := parseModelConfig(raw)
		if err != nil {
			return fmt.Errorf("model: %w", err)
		}
		cfg.Model = mc
	}

	if raw, ok := lookupSetting(settings, "actors"); ok {
		actors, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("actors: %w", err)
		}
		cfg.Actors = actors
	}

	if raw, ok := lookupSetting(settings, "workercommand", "worker_command", "worker-command"); ok {
		argv, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("workerCommand: %w", err)
		}
		cfg.WorkerCommand = argv
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracingConfig(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}

	return nil
}

func parseModelConfig(value interface{}) (ModelConfig, error) {
	if value == nil {
		return ModelConfig{}, nil
	}
	// A bare string selects a model with no params.
	if name, ok := value.(string); ok {
		return ModelConfig{Name: strings.TrimSpace(name)}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return ModelConfig{}, err
	}
	var mc ModelConfig
	if raw, ok := lookupSetting(entry, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return ModelConfig{}, fmt.Errorf("name: %w", err)
		}
		mc.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "params"); ok {
		params, err := asStringMap(raw)
		if err != nil {
			return ModelConfig{}, fmt.Errorf("params: %w", err)
		}
		mc.Params = params
	}
	if raw, ok := lookupSetting(entry, "paramsfile", "params_file", "params-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return ModelConfig{}, fmt.Errorf("params_file: %w", err)
		}
		mc.ParamsFile = strings.TrimSpace(val)
	}
	return mc, nil
}

func parseTracingConfig(value interface{}) (TracingConfig, error) {
	if value == nil {
		return TracingConfig{SampleRate: 1.0}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tc := TracingConfig{SampleRate: 1.0}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return tc, nil
}

// loadModelParams merges params from model.params_file under any explicitly
// configured params. Explicit params win.
func loadModelParams(cfg *Config) error {
	path := strings.TrimSpace(cfg.Model.ParamsFile)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model params file: %w", err)
	}
	var fileParams map[string]string
	if err := yaml.Unmarshal(data, &fileParams); err != nil {
		return fmt.Errorf("parse model params file: %w", err)
	}
	if len(fileParams) == 0 {
		return nil
	}
	merged := make(map[string]string, len(fileParams)+len(cfg.Model.Params))
	for k, v := range fileParams {
		merged[k] = v
	}
	for k, v := range cfg.Model.Params {
		merged[k] = v
	}
	cfg.Model.Params = merged
	return nil
}
