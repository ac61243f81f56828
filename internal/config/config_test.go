package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Strategy:       "thread-pool",
		MaxConcurrency: 4,
		Batches:        2,
		BatchSize:      8,
		Model:          ModelConfig{Name: "echo"},
		Tracing:        TracingConfig{SampleRate: 1.0},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRequiresStrategyAndModel(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy = " "
	cfg.Model.Name = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type %T, want ValidationError", err)
	}
	if len(verr.Issues()) != 2 {
		t.Errorf("issues = %v, want 2 entries", verr.Issues())
	}
}

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, "max_concurrency"},
		{"zero batches", func(c *Config) { c.Batches = 0 }, "batches"},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"negative rate", func(c *Config) { c.Rate = -1 }, "rate"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"body conflict", func(c *Config) { c.Body = "x"; c.BodyFile = "y" }, "mutually exclusive"},
		{"empty actor", func(c *Config) { c.Actors = []string{"host:1", " "} }, "actors[1]"},
		{"bad sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestTracingEnabled(t *testing.T) {
	if (TracingConfig{}).Enabled() {
		t.Error("Enabled() = true for empty config")
	}
	if !(TracingConfig{Endpoint: "localhost:4317"}).Enabled() {
		t.Error("Enabled() = false with endpoint set")
	}
}

func TestShouldPropagateOverride(t *testing.T) {
	off := false
	tc := TracingConfig{Endpoint: "localhost:4317", Propagate: &off}
	if tc.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when explicitly disabled")
	}
	tc.Propagate = nil
	if !tc.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true when tracing enabled")
	}
}
