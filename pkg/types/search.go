// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the dispatch engine:
// resolver actions, search profiles, and normalized federated results.
package types

import "time"

// MergeMode selects how results from several sources are combined.
type MergeMode string

const (
	// MergeGrouped buckets results by source in profile declaration order.
	MergeGrouped MergeMode = "grouped"

	// MergeInterleaved ranks every result in one list by weighted rank score.
	MergeInterleaved MergeMode = "interleaved"
)

// Valid reports whether m names a known merge mode.
func (m MergeMode) Valid() bool {
	return m == MergeGrouped || m == MergeInterleaved
}

// FederationMeta carries the bookkeeping the engine attaches to each result.
type FederationMeta struct {
	// SourceRank is the 1-based position within the adapter's own list.
	SourceRank int `json:"source_rank" yaml:"source_rank"`

	// Weight is the relevance weight configured for the source.
	Weight float64 `json:"weight" yaml:"weight"`

	// Score is set only by interleaved merge: (1 / SourceRank) * Weight.
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// ComputeScore sets Score from SourceRank and Weight.
func (m *FederationMeta) ComputeScore() {
	rank := m.SourceRank
	if rank < 1 {
		rank = 1
	}
	s := (1.0 / float64(rank)) * m.Weight
	m.Score = &s
}

// UnifiedSearchResult is one normalized hit from any adapter.
type UnifiedSearchResult struct {
	// Source is the adapter name (e.g. "arxiv", "pubmed").
	Source string `json:"source" yaml:"source"`

	// ID is stable within the source, conventionally "<prefix>:<native-id>"
	// (e.g. "PMID:12345678", "arXiv:2301.07041", "hn:38500000").
	ID string `json:"id" yaml:"id"`

	Title     string     `json:"title" yaml:"title"`
	Snippet   string     `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	URL       string     `json:"url,omitempty" yaml:"url,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// Metadata keeps every adapter-specific field the normalizer did not
	// lift into the common fields above.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Federation FederationMeta `json:"_federation" yaml:"_federation"`
}

// SourceResults holds the normalized results of one adapter.
type SourceResults struct {
	Source  string                `json:"source" yaml:"source"`
	Results []UnifiedSearchResult `json:"results" yaml:"results"`
	Count   int                   `json:"count" yaml:"count"`

	// TotalAvailable is the adapter-reported total, when it reports one.
	TotalAvailable *int `json:"total_available,omitempty" yaml:"total_available,omitempty"`

	DurationMS int64 `json:"duration_ms" yaml:"duration_ms"`
}

// SourceError records an adapter that failed or timed out.
type SourceError struct {
	Source    string `json:"source" yaml:"source"`
	Error     string `json:"error" yaml:"error"`
	IsTimeout bool   `json:"is_timeout" yaml:"is_timeout"`
}

// FederatedSearchResult is the engine's answer for one query.
// Exactly one of Sources (grouped) or Results (interleaved) is populated.
type FederatedSearchResult struct {
	Query     string    `json:"query" yaml:"query"`
	Profile   string    `json:"profile,omitempty" yaml:"profile,omitempty"`
	MergeMode MergeMode `json:"merge_mode" yaml:"merge_mode"`

	Sources []SourceResults       `json:"sources,omitempty" yaml:"sources,omitempty"`
	Results []UnifiedSearchResult `json:"results,omitempty" yaml:"results,omitempty"`

	TotalCount        int           `json:"total_count" yaml:"total_count"`
	Completed         []string      `json:"completed" yaml:"completed"`
	Errors            []SourceError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Partial           bool          `json:"partial" yaml:"partial"`
	DuplicatesRemoved int           `json:"duplicates_removed,omitempty" yaml:"duplicates_removed,omitempty"`
	DurationMS        int64         `json:"duration_ms" yaml:"duration_ms"`
}

// AllResults returns every result regardless of merge mode, in display order.
func (r *FederatedSearchResult) AllResults() []UnifiedSearchResult {
	if r.MergeMode == MergeInterleaved {
		return r.Results
	}
	var all []UnifiedSearchResult
	for _, s := range r.Sources {
		all = append(all, s.Results...)
	}
	return all
}

// AllFailed reports whether no source completed while at least one failed.
func (r *FederatedSearchResult) AllFailed() bool {
	return len(r.Completed) == 0 && len(r.Errors) > 0
}
