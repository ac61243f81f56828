package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config describes one run: which runner strategy to use, how much work to
// issue, and which model the workers should serve.
type Config struct {
	Strategy       string        `mapstructure:"strategy"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Batches        int           `mapstructure:"batches"`
	BatchSize      int           `mapstructure:"batch_size"`
	Rate           int           `mapstructure:"rate"` // batches per second, 0 means unpaced
	Body           string        `mapstructure:"body"`
	BodyFile       string        `mapstructure:"body_file"`
	Timeout        time.Duration `mapstructure:"timeout"` // whole-run deadline, 0 means none
	JSONOutput     bool          `mapstructure:"json_output"`
	ReportFile     string        `mapstructure:"report_file"`
	LogLevel       string        `mapstructure:"log_level"`
	ConfigFile     string        `mapstructure:"-"`
	Model          ModelConfig   `mapstructure:"model"`
	Actors         []string      `mapstructure:"actors"`         // remote actor addresses; empty means spawn locally
	WorkerCommand  []string      `mapstructure:"worker_command"` // child argv for process workers; empty means re-exec self
	Tracing        TracingConfig `mapstructure:"tracing"`
}

// ModelConfig selects and parameterizes the model workers build.
type ModelConfig struct {
	Name       string            `mapstructure:"name"`
	Params     map[string]string `mapstructure:"params"`
	ParamsFile string            `mapstructure:"params_file"` // YAML file of params; explicit params win
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an export endpoint is configured, directly or via
// the standard OTel environment variable.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context should be injected into
// actor RPCs. Defaults to on whenever tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Strategy) == "" {
		issues = append(issues, "strategy is required (use --help for usage information)")
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		issues = append(issues, "model.name is required")
	}
	if c.MaxConcurrency < 1 {
		issues = append(issues, "max_concurrency must be >= 1")
	}
	if c.Batches < 1 {
		issues = append(issues, "batches must be >= 1")
	}
	if c.BatchSize < 1 {
		issues = append(issues, "batch_size must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}
	for idx, addr := range c.Actors {
		if strings.TrimSpace(addr) == "" {
			issues = append(issues, fmt.Sprintf("actors[%d]: address cannot be empty", idx))
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		issues = append(issues, "tracing.sample_rate must be between 0.0 and 1.0")
	}

	// High concurrency is usually a misconfigured pool rather than intent.
	if c.MaxConcurrency > 512 {
		fmt.Fprintf(os.Stderr, "WARNING: max_concurrency=%d spawns that many workers; process and actor pools may exhaust the host.\n", c.MaxConcurrency)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
