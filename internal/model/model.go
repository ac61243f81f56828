package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Input is one opaque inference request payload.
type Input []byte

// Output is one opaque prediction result.
type Output []byte

// Model produces predictions. Predict must be safe for concurrent use only
// when the chosen runner strategy shares one instance across workers.
type Model interface {
	Predict(ctx context.Context, in Input) (Output, error)
}

// Factory constructs Model instances. Pool-backed runners call Create
// exactly once per worker unit.
type Factory interface {
	Create() (Model, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() (Model, error)

func (f FactoryFunc) Create() (Model, error) { return f() }

// Spec is the serializable form of a model factory: a registered model name
// plus its construction parameters. Worker processes and actors rebuild
// their own Model from a Spec, so everything needed to construct the model
// must round-trip through these two fields.
type Spec struct {
	Name   string            `json:"name" yaml:"name" mapstructure:"name"`
	Params map[string]string `json:"params,omitempty" yaml:"params" mapstructure:"params"`
}

// Builder constructs a Model from Spec params.
type Builder func(params map[string]string) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register makes a model constructor available under name. Builtins register
// themselves in init; additional models must register before any worker
// process or actor is spawned so the Spec resolves on both sides.
func Register(name string, b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = b
}

// Build constructs the model a Spec describes.
func Build(spec Spec) (Model, error) {
	registryMu.RLock()
	b, ok := registry[spec.Name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model %q (registered: %v)", spec.Name, Names())
	}
	return b(spec.Params)
}

// NewFactory returns a Factory backed by the registry. The Spec is validated
// eagerly so a typo fails at configuration time, not inside a worker.
func NewFactory(spec Spec) (Factory, error) {
	registryMu.RLock()
	_, ok := registry[spec.Name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model %q (registered: %v)", spec.Name, Names())
	}
	return FactoryFunc(func() (Model, error) { return Build(spec) }), nil
}

// RemoteError is a prediction failure reported by a worker unit on the far
// side of a process or network boundary. It marks the failure as the
// model's, not the transport's.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return e.Msg }

// Names returns the registered model names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
