package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/inferfire/internal/config"
)

func TestRunInlineSmoke(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.json")

	err := run([]string{
		"--model", "echo",
		"--strategy", "inline",
		"--batches", "2",
		"--batch-size", "3",
		"--json-output",
		"--report-file", report,
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report file not written: %v", err)
	}
}

func TestRunRejectsUnknownStrategy(t *testing.T) {
	err := run([]string{"--model", "echo", "--strategy", "bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown runner strategy") {
		t.Fatalf("run() error = %v, want unknown strategy", err)
	}
}

func TestRunRejectsUnknownModel(t *testing.T) {
	err := run([]string{"--model", "not-a-model", "--strategy", "inline"})
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Fatalf("run() error = %v, want unknown model", err)
	}
}

func TestRunRequiresModel(t *testing.T) {
	err := run([]string{"--strategy", "inline"})
	if err == nil || !strings.Contains(err.Error(), "model.name is required") {
		t.Fatalf("run() error = %v, want validation failure", err)
	}
}

func TestDispatchHelp(t *testing.T) {
	if err := dispatch([]string{"--help"}); err != nil {
		t.Fatalf("dispatch(--help) error = %v", err)
	}
}

func TestLoadBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.json")
	if err := os.WriteFile(path, []byte(`{"k":1}`), 0o600); err != nil {
		t.Fatal(err)
	}

	body, err := loadBody(&config.Config{BodyFile: path})
	if err != nil {
		t.Fatalf("loadBody() error = %v", err)
	}
	if string(body) != `{"k":1}` {
		t.Errorf("body = %q", body)
	}

	body, err = loadBody(&config.Config{Body: "inline"})
	if err != nil {
		t.Fatalf("loadBody() error = %v", err)
	}
	if string(body) != "inline" {
		t.Errorf("body = %q", body)
	}

	body, err = loadBody(&config.Config{})
	if err != nil || body != nil {
		t.Errorf("empty config: body=%v err=%v", body, err)
	}
}
