package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := &Config{}
	settings := map[string]interface{}{
		"strategy":        "process-pool",
		"max_concurrency": 6,
		"batches":         4,
		"batch_size":      32,
		"rate":            2,
		"timeout":         "30s",
		"model": map[string]interface{}{
			"name": "sleep",
			"params": map[string]interface{}{
				"latency": "5ms",
			},
		},
		"actors": []interface{}{"a:1", "b:2"},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.5,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}
	if cfg.Strategy != "process-pool" {
		t.Errorf("Strategy = %q", cfg.Strategy)
	}
	if cfg.MaxConcurrency != 6 || cfg.Batches != 4 || cfg.BatchSize != 32 || cfg.Rate != 2 {
		t.Errorf("workload fields = %d/%d/%d/%d", cfg.MaxConcurrency, cfg.Batches, cfg.BatchSize, cfg.Rate)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Model.Name != "sleep" || cfg.Model.Params["latency"] != "5ms" {
		t.Errorf("Model = %+v", cfg.Model)
	}
	if len(cfg.Actors) != 2 || cfg.Actors[1] != "b:2" {
		t.Errorf("Actors = %v", cfg.Actors)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestModelAsBareString(t *testing.T) {
	cfg := &Config{}
	if err := applyConfigSettings(cfg, map[string]interface{}{"model": "echo"}); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}
	if cfg.Model.Name != "echo" {
		t.Errorf("Model.Name = %q, want echo", cfg.Model.Name)
	}
}

func TestLoadFromFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	body := `
strategy: thread-pool
max_concurrency: 8
batches: 10
batch_size: 64
model:
  name: sha256
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Loader{}.Load([]string{"--config", path, "--batches", "3", "--strategy", "thread-pool-local", "--timeout", "2s"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != "thread-pool-local" {
		t.Errorf("Strategy = %q, want flag override", cfg.Strategy)
	}
	if cfg.Batches != 3 {
		t.Errorf("Batches = %d, want flag override 3", cfg.Batches)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want flag override 2s", cfg.Timeout)
	}
	if cfg.MaxConcurrency != 8 || cfg.BatchSize != 64 {
		t.Errorf("file values lost: %d/%d", cfg.MaxConcurrency, cfg.BatchSize)
	}
	if cfg.Model.Name != "sha256" {
		t.Errorf("Model.Name = %q", cfg.Model.Name)
	}
}

func TestLoadModelParamsFileMerges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	if err := os.WriteFile(path, []byte("latency: 10ms\njitter: 2ms\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Loader{}.Load([]string{
		"--model", "sleep",
		"--model-params-file", path,
		"--model-param", "latency=1ms",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.Params["latency"] != "1ms" {
		t.Errorf("explicit param lost: %v", cfg.Model.Params)
	}
	if cfg.Model.Params["jitter"] != "2ms" {
		t.Errorf("file param lost: %v", cfg.Model.Params)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Loader{}.Load([]string{"--model", "echo"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != "inline" {
		t.Errorf("Strategy default = %q, want inline", cfg.Strategy)
	}
	if cfg.MaxConcurrency != 1 || cfg.Batches != 1 || cfg.BatchSize != 1 {
		t.Errorf("defaults = %d/%d/%d, want 1/1/1", cfg.MaxConcurrency, cfg.Batches, cfg.BatchSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel default = %q", cfg.LogLevel)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate default = %g", cfg.Tracing.SampleRate)
	}
}

func TestLoadHelpRequested(t *testing.T) {
	if _, err := (Loader{}).Load(nil); !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("Load(nil) error = %v, want ErrHelpRequested", err)
	}
	if _, err := (Loader{}).Load([]string{"--help"}); !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}
