// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Profile defaults applied when neither a profile nor its ancestors set a value.
const (
	DefaultLimit           = 10
	DefaultTimeoutMS       = 5000
	DefaultGlobalTimeoutMS = 15000
	DefaultWeight          = 1.0
)

// DedupStrategy names how duplicate results are detected across sources.
type DedupStrategy string

const (
	DedupURL        DedupStrategy = "url"
	DedupDOI        DedupStrategy = "doi"
	DedupTitleFuzzy DedupStrategy = "title_fuzzy"
)

// Valid reports whether s names a known strategy.
func (s DedupStrategy) Valid() bool {
	switch s {
	case DedupURL, DedupDOI, DedupTitleFuzzy:
		return true
	}
	return false
}

// DeduplicationConfig controls cross-source duplicate removal.
type DeduplicationConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Strategy DedupStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Prefer lists sources in order of preference when a duplicate is found.
	Prefer []string `json:"prefer,omitempty" yaml:"prefer,omitempty"`
}

// SearchDefaults are per-profile parameters applied to every adapter.
// Zero values inherit from the parent profile.
type SearchDefaults struct {
	Limit          int       `json:"limit,omitempty" yaml:"limit,omitempty"`
	ResponseFormat string    `json:"response_format,omitempty" yaml:"response_format,omitempty"`
	MergeMode      MergeMode `json:"merge_mode,omitempty" yaml:"merge_mode,omitempty"`
}

// SearchProfile is a profile as declared, built-in or in the user's profile
// file. It is flattened into a ResolvedProfile before use.
type SearchProfile struct {
	Name        string `json:"name" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Extends     string `json:"extends,omitempty" yaml:"extends,omitempty"`

	Connectors []string `json:"connectors,omitempty" yaml:"connectors,omitempty"`
	Add        []string `json:"add,omitempty" yaml:"add,omitempty"`
	Exclude    []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	Defaults  SearchDefaults            `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Weights   map[string]float64        `json:"weights,omitempty" yaml:"weights,omitempty"`
	Overrides map[string]map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`

	TimeoutMS       int `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	GlobalTimeoutMS int `json:"global_timeout_ms,omitempty" yaml:"global_timeout_ms,omitempty"`

	Deduplication *DeduplicationConfig `json:"deduplication,omitempty" yaml:"deduplication,omitempty"`
}

// ResolvedProfile is a profile with its inheritance chain flattened.
// It is recomputed for every search and never persisted.
type ResolvedProfile struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Chain lists the profiles that contributed, root ancestor first.
	Chain []string `json:"chain,omitempty" yaml:"chain,omitempty"`

	// Adapters is a set kept in declaration order.
	Adapters []string `json:"adapters" yaml:"adapters"`

	Defaults  SearchDefaults            `json:"defaults" yaml:"defaults"`
	Weights   map[string]float64        `json:"weights,omitempty" yaml:"weights,omitempty"`
	Overrides map[string]map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`

	Timeout       time.Duration       `json:"timeout" yaml:"timeout"`
	GlobalTimeout time.Duration       `json:"global_timeout" yaml:"global_timeout"`
	Deduplication DeduplicationConfig `json:"deduplication" yaml:"deduplication"`
}

// LimitFor returns the result limit for an adapter: a per-adapter "limit"
// override wins over the profile default, which falls back to DefaultLimit.
func (p *ResolvedProfile) LimitFor(adapter string) int {
	if v, ok := p.Overrides[adapter]["limit"]; ok {
		if n, ok := asInt(v); ok && n > 0 {
			return n
		}
	}
	if p.Defaults.Limit > 0 {
		return p.Defaults.Limit
	}
	return DefaultLimit
}

// WeightFor returns the relevance weight for an adapter (default 1.0).
func (p *ResolvedProfile) WeightFor(adapter string) float64 {
	if w, ok := p.Weights[adapter]; ok {
		return w
	}
	return DefaultWeight
}

// ParamsFor returns a copy of the adapter's parameter overrides without the
// "limit" key, which LimitFor already accounts for.
func (p *ResolvedProfile) ParamsFor(adapter string) map[string]any {
	params := make(map[string]any, len(p.Overrides[adapter]))
	for k, v := range p.Overrides[adapter] {
		if k == "limit" {
			continue
		}
		params[k] = v
	}
	return params
}

// HasAdapter reports whether adapter is in the flattened adapter set.
func (p *ResolvedProfile) HasAdapter(adapter string) bool {
	for _, a := range p.Adapters {
		if a == adapter {
			return true
		}
	}
	return false
}

// asInt accepts the numeric shapes YAML and JSON decoders produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
