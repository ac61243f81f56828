package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

func init() {
	Register("echo", func(map[string]string) (Model, error) {
		return echoModel{}, nil
	})
	Register("sha256", func(map[string]string) (Model, error) {
		return digestModel{}, nil
	})
	Register("sleep", newSleepModel)
	Register("jsonpath", newJSONPathModel)
}

// echoModel returns its input unchanged. Useful as the identity predictor in
// round-trip checks.
type echoModel struct{}

func (echoModel) Predict(_ context.Context, in Input) (Output, error) {
	out := make(Output, len(in))
	copy(out, in)
	return out, nil
}

// digestModel returns the hex SHA-256 of the input.
type digestModel struct{}

func (digestModel) Predict(_ context.Context, in Input) (Output, error) {
	sum := sha256.Sum256(in)
	return Output(hex.EncodeToString(sum[:])), nil
}

// sleepModel simulates inference latency, then echoes. The "latency" param
// is a Go duration string.
type sleepModel struct {
	latency time.Duration
}

func newSleepModel(params map[string]string) (Model, error) {
	m := sleepModel{latency: 10 * time.Millisecond}
	if raw, ok := params["latency"]; ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("sleep model: invalid latency %q: %w", raw, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("sleep model: latency must not be negative, got %s", d)
		}
		m.latency = d
	}
	return m, nil
}

func (m sleepModel) Predict(ctx context.Context, in Input) (Output, error) {
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make(Output, len(in))
	copy(out, in)
	return out, nil
}

// jsonPathModel extracts a gjson path from JSON inputs and returns the raw
// JSON of the match.
type jsonPathModel struct {
	path string
}

func newJSONPathModel(params map[string]string) (Model, error) {
	path := params["path"]
	if path == "" {
		return nil, fmt.Errorf("jsonpath model: missing required param %q", "path")
	}
	return jsonPathModel{path: path}, nil
}

func (m jsonPathModel) Predict(_ context.Context, in Input) (Output, error) {
	if !gjson.ValidBytes(in) {
		return nil, fmt.Errorf("jsonpath model: input is not valid JSON")
	}
	res := gjson.GetBytes(in, m.path)
	if !res.Exists() {
		return nil, fmt.Errorf("jsonpath model: path %q not found", m.path)
	}
	return Output(res.Raw), nil
}
