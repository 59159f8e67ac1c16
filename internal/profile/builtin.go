// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package profile

import (
	"maps"
	"slices"
	"sync"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// DefaultName is the profile searches use when the caller names neither a
// profile nor adapters. Every adapter it lists ships in the default registry.
const DefaultName = "papers"

// builtins is the read-only set of shipped profiles, built once.
var builtins = sync.OnceValue(func() map[string]types.SearchProfile {
	m := make(map[string]types.SearchProfile)
	for _, p := range []types.SearchProfile{
		{
			Name:        "research",
			Description: "Academic research across multiple databases",
			Connectors:  []string{"pubmed", "arxiv", "semantic-scholar", "google-scholar"},
		},
		{
			Name:        "papers",
			Description: "Open scholarly indexes with cross-source duplicate removal",
			Connectors:  []string{"arxiv", "semantic-scholar", "openalex"},
			Weights:     map[string]float64{"arxiv": 1.2},
			Deduplication: &types.DeduplicationConfig{
				Enabled:  true,
				Strategy: types.DedupTitleFuzzy,
				Prefer:   []string{"arxiv", "semantic-scholar", "openalex"},
			},
		},
		{
			Name:        "enterprise",
			Description: "Enterprise document and communication search",
			Connectors:  []string{"slack", "atlassian", "github"},
			Defaults:    types.SearchDefaults{Limit: 20},
		},
		{
			Name:        "social",
			Description: "Social media and forum discussions",
			Connectors:  []string{"reddit", "hackernews"},
			Defaults:    types.SearchDefaults{Limit: 15},
		},
		{
			Name:        "code",
			Description: "Code search across repositories",
			Connectors:  []string{"github"},
			Defaults:    types.SearchDefaults{Limit: 25},
		},
		{
			Name:        "web",
			Description: "Web search using AI-powered search providers",
			Connectors:  []string{"perplexity-search", "exa-search", "tavily-search"},
		},
		{
			Name:        "media",
			Description: "Video and reference content search",
			Connectors:  []string{"youtube", "wikipedia"},
		},
	} {
		m[p.Name] = p
	}
	return m
})

// Builtin returns a copy of the named built-in profile.
func Builtin(name string) (types.SearchProfile, bool) {
	p, ok := builtins()[name]
	if !ok {
		return types.SearchProfile{}, false
	}
	return clone(p), true
}

// IsBuiltin reports whether name is a shipped profile.
func IsBuiltin(name string) bool {
	_, ok := builtins()[name]
	return ok
}

// BuiltinNames lists the shipped profile names in sorted order.
func BuiltinNames() []string {
	return slices.Sorted(maps.Keys(builtins()))
}

// clone deep-copies the slices and maps of a profile so callers cannot
// mutate the shared built-in table.
func clone(p types.SearchProfile) types.SearchProfile {
	p.Connectors = slices.Clone(p.Connectors)
	p.Add = slices.Clone(p.Add)
	p.Exclude = slices.Clone(p.Exclude)
	p.Weights = maps.Clone(p.Weights)
	if p.Overrides != nil {
		o := make(map[string]map[string]any, len(p.Overrides))
		for k, v := range p.Overrides {
			o[k] = maps.Clone(v)
		}
		p.Overrides = o
	}
	if p.Deduplication != nil {
		d := *p.Deduplication
		d.Prefer = slices.Clone(d.Prefer)
		p.Deduplication = &d
	}
	return p
}
