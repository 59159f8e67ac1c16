// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package profile stores named search profiles and flattens their
// inheritance chains for the federated engine.
//
// Built-in profiles ship with the binary. User profiles live in a YAML file
// mapping profile name to declaration and shadow built-ins of the same name.
// The file is read on every call, so edits to a parent take effect on the
// next search.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// Sentinel errors. Resolve wraps them in *Error.
var (
	ErrNotFound = errors.New("profile not found")
	ErrCycle    = errors.New("profile inheritance cycle")
	ErrBuiltin  = errors.New("built-in profile cannot be deleted")
)

// Error reports a failed profile resolution.
type Error struct {
	// Name is the profile that could not be resolved.
	Name string
	// Chain is the resolution path up to the failure, requested profile first.
	Chain []string
	Err   error
}

func (e *Error) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("%v: %q (via %s)", e.Err, e.Name, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Name)
}

func (e *Error) Unwrap() error { return e.Err }

// Store resolves profiles from the built-in table and an optional user file.
type Store struct {
	path string
}

// NewStore returns a Store backed by the YAML file at path. An empty path
// means built-in profiles only. A missing file is treated as empty.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the user profile file location.
func (s *Store) Path() string { return s.path }

// DefaultPath returns ~/.config/dispatch-engine/profiles.yaml, falling back
// to the working directory when no config directory is available.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "profiles.yaml"
	}
	return filepath.Join(dir, "dispatch-engine", "profiles.yaml")
}

// loadUser reads the user profile file. Profile names come from the map keys.
func (s *Store) loadUser() (map[string]types.SearchProfile, error) {
	profiles := make(map[string]types.SearchProfile)
	if s.path == "" {
		return profiles, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return profiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing profiles %s: %w", s.path, err)
	}
	for name, p := range profiles {
		p.Name = name
		profiles[name] = p
	}
	return profiles, nil
}

func (s *Store) writeUser(profiles map[string]types.SearchProfile) error {
	if s.path == "" {
		return fmt.Errorf("no profile file configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	data, err := yaml.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("marshaling profiles: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing profiles %s: %w", s.path, err)
	}
	return nil
}

// Get returns a profile declaration, user file first, then built-ins.
func (s *Store) Get(name string) (types.SearchProfile, error) {
	user, err := s.loadUser()
	if err != nil {
		return types.SearchProfile{}, err
	}
	if p, ok := lookup(user, name); ok {
		return p, nil
	}
	return types.SearchProfile{}, &Error{Name: name, Chain: []string{name}, Err: ErrNotFound}
}

// List returns every available declaration sorted by name. User profiles
// replace built-ins of the same name.
func (s *Store) List() ([]types.SearchProfile, error) {
	user, err := s.loadUser()
	if err != nil {
		return nil, err
	}
	var out []types.SearchProfile
	for _, p := range user {
		out = append(out, p)
	}
	for _, name := range BuiltinNames() {
		if _, ok := user[name]; !ok {
			p, _ := Builtin(name)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save validates p and writes it to the user file, replacing any profile of
// the same name.
func (s *Store) Save(p types.SearchProfile) error {
	if err := Validate(p); err != nil {
		return err
	}
	user, err := s.loadUser()
	if err != nil {
		return err
	}
	user[p.Name] = p
	return s.writeUser(user)
}

// Delete removes a user profile and reports whether it existed. Built-in
// profiles that are not shadowed by a user profile cannot be deleted.
func (s *Store) Delete(name string) (bool, error) {
	user, err := s.loadUser()
	if err != nil {
		return false, err
	}
	if _, ok := user[name]; !ok {
		if IsBuiltin(name) {
			return false, fmt.Errorf("%w: %q", ErrBuiltin, name)
		}
		return false, nil
	}
	delete(user, name)
	return true, s.writeUser(user)
}

// Validate checks the fields a profile declaration can get wrong.
func Validate(p types.SearchProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Extends == "" && len(p.Connectors) == 0 && len(p.Add) == 0 {
		return fmt.Errorf("profile %q: connectors or extends is required", p.Name)
	}
	if p.Defaults.MergeMode != "" && !p.Defaults.MergeMode.Valid() {
		return fmt.Errorf("profile %q: unknown merge mode %q", p.Name, p.Defaults.MergeMode)
	}
	if d := p.Deduplication; d != nil && d.Strategy != "" && !d.Strategy.Valid() {
		return fmt.Errorf("profile %q: unknown deduplication strategy %q", p.Name, d.Strategy)
	}
	if p.Defaults.Limit < 0 || p.TimeoutMS < 0 || p.GlobalTimeoutMS < 0 {
		return fmt.Errorf("profile %q: limits and timeouts must not be negative", p.Name)
	}
	for adapter, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("profile %q: negative weight for %s", p.Name, adapter)
		}
	}
	return nil
}

func lookup(user map[string]types.SearchProfile, name string) (types.SearchProfile, bool) {
	if p, ok := user[name]; ok {
		return clone(p), true
	}
	return Builtin(name)
}

// Resolve flattens the named profile's inheritance chain. Ancestors are
// applied root first and descendants win.
func (s *Store) Resolve(name string) (*types.ResolvedProfile, error) {
	user, err := s.loadUser()
	if err != nil {
		return nil, err
	}

	// Walk leaf to root, tracking the names on the current path.
	var (
		chain   []types.SearchProfile
		path    []string
		visited = make(map[string]bool)
	)
	for cur := name; cur != ""; {
		path = append(path, cur)
		if visited[cur] {
			return nil, &Error{Name: cur, Chain: path, Err: ErrCycle}
		}
		visited[cur] = true
		p, ok := lookup(user, cur)
		if !ok {
			return nil, &Error{Name: cur, Chain: path, Err: ErrNotFound}
		}
		chain = append(chain, p)
		cur = p.Extends
	}
	slices.Reverse(chain)

	return Flatten(chain), nil
}

// Flatten merges declarations ordered root ancestor first into one resolved
// profile and applies package defaults to anything left unset.
func Flatten(chain []types.SearchProfile) *types.ResolvedProfile {
	r := &types.ResolvedProfile{
		Weights:   make(map[string]float64),
		Overrides: make(map[string]map[string]any),
	}
	var (
		timeoutMS, globalMS int
		dedup               *types.DeduplicationConfig
	)

	for _, p := range chain {
		r.Name = p.Name
		r.Chain = append(r.Chain, p.Name)
		if p.Description != "" {
			r.Description = p.Description
		}

		if len(p.Connectors) > 0 {
			r.Adapters = appendUnique(nil, p.Connectors...)
		}
		r.Adapters = slices.DeleteFunc(r.Adapters, func(a string) bool {
			return slices.Contains(p.Exclude, a)
		})
		r.Adapters = appendUnique(r.Adapters, p.Add...)

		if p.Defaults.Limit > 0 {
			r.Defaults.Limit = p.Defaults.Limit
		}
		if p.Defaults.ResponseFormat != "" {
			r.Defaults.ResponseFormat = p.Defaults.ResponseFormat
		}
		if p.Defaults.MergeMode != "" {
			r.Defaults.MergeMode = p.Defaults.MergeMode
		}
		for k, v := range p.Weights {
			r.Weights[k] = v
		}
		for adapter, params := range p.Overrides {
			merged := r.Overrides[adapter]
			if merged == nil {
				merged = make(map[string]any, len(params))
			}
			for k, v := range params {
				merged[k] = v
			}
			r.Overrides[adapter] = merged
		}
		if p.TimeoutMS > 0 {
			timeoutMS = p.TimeoutMS
		}
		if p.GlobalTimeoutMS > 0 {
			globalMS = p.GlobalTimeoutMS
		}
		if p.Deduplication != nil {
			dedup = p.Deduplication
		}
	}

	if r.Defaults.Limit == 0 {
		r.Defaults.Limit = types.DefaultLimit
	}
	if r.Defaults.MergeMode == "" {
		r.Defaults.MergeMode = types.MergeGrouped
	}
	if timeoutMS == 0 {
		timeoutMS = types.DefaultTimeoutMS
	}
	if globalMS == 0 {
		globalMS = types.DefaultGlobalTimeoutMS
	}
	r.Timeout = time.Duration(timeoutMS) * time.Millisecond
	r.GlobalTimeout = time.Duration(globalMS) * time.Millisecond

	if dedup != nil {
		r.Deduplication = *dedup
		r.Deduplication.Prefer = slices.Clone(dedup.Prefer)
	}
	if r.Deduplication.Strategy == "" {
		r.Deduplication.Strategy = types.DedupURL
	}
	return r
}

// appendUnique appends names not already in list, keeping order.
func appendUnique(list []string, names ...string) []string {
	for _, n := range names {
		if n != "" && !slices.Contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}
