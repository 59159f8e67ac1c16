// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package adapter defines the capability contract every data-source
// integration implements, a name-keyed registry, and a few reference
// adapters over public scholarly APIs.
//
// An adapter exposes named operations taking a string-keyed argument map
// and returning a JSON-compatible payload (maps, slices, strings, float64,
// bool, nil). The federated engine only ever calls OpSearch; the resolver
// may route to any operation an adapter supports.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// OpSearch is the operation the federated engine invokes. It accepts at
// least "query" (string) and "limit" (integer) and returns a payload holding
// a results array; no hits is an empty array, never an error.
const OpSearch = "search"

var (
	// ErrUnsupportedOperation is returned for an operation an adapter does
	// not implement.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNotRegistered is returned when a name has no adapter.
	ErrNotRegistered = errors.New("adapter not registered")
)

// Adapter is one data-source integration.
type Adapter interface {
	Name() string
	Call(ctx context.Context, operation string, args map[string]any) (any, error)
}

// Unsupported builds the error for an operation an adapter lacks.
func Unsupported(adapter, operation string) error {
	return fmt.Errorf("%s: %w %q", adapter, ErrUnsupportedOperation, operation)
}

// Func adapts a function to the Adapter interface.
type Func struct {
	AdapterName string
	Fn          func(ctx context.Context, operation string, args map[string]any) (any, error)
}

func (f *Func) Name() string { return f.AdapterName }

func (f *Func) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	return f.Fn(ctx, operation, args)
}

// Registry maps adapter names to implementations. Build it before use; it
// is not safe to Register concurrently with lookups.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry holding adapters. A later adapter with the
// same name replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names lists registered adapter names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call invokes operation on the named adapter.
func (r *Registry) Call(ctx context.Context, name, operation string, args map[string]any) (any, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return a.Call(ctx, operation, args)
}

// ToPayload converts a Go value into a JSON-compatible tree by
// round-tripping it through encoding/json.
func ToPayload(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return out, nil
}

// StringArg returns args[key] as a trimmed string. Numbers are formatted.
func StringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// IntArg returns args[key] as an int, or def when absent or not positive.
func IntArg(args map[string]any, key string, def int) int {
	var n int
	switch v := args[key].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(math.Round(v))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

// StringArgs converts resolver arguments into an adapter argument map.
func StringArgs(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
