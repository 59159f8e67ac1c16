// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"sort"

	"github.com/pdiddy/dispatch-engine/internal/normalize"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// merge turns settled outcomes into the final result: normalize, dedup,
// then order.
func merge(query string, prof *types.ResolvedProfile, mode types.MergeMode, dedup types.DeduplicationConfig, outcomes []outcome) *types.FederatedSearchResult {
	result := &types.FederatedSearchResult{
		Query:     query,
		Profile:   prof.Name,
		MergeMode: mode,
		Completed: []string{},
	}

	var groups []types.SourceResults
	for _, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, types.SourceError{
				Source:    o.source,
				Error:     o.err.Error(),
				IsTimeout: o.timeout,
			})
			continue
		}
		result.Completed = append(result.Completed, o.source)
		groups = append(groups, types.SourceResults{
			Source:         o.source,
			Results:        normalize.Normalize(o.source, o.payload, prof.WeightFor(o.source)),
			TotalAvailable: normalize.TotalAvailable(o.payload),
			DurationMS:     o.duration.Milliseconds(),
		})
	}
	result.Partial = len(result.Errors) > 0

	// Flatten in declaration order then source rank; dedup keeps that order.
	var flat []types.UnifiedSearchResult
	for _, g := range groups {
		flat = append(flat, g.Results...)
	}
	if dedup.Enabled {
		flat, result.DuplicatesRemoved = deduplicate(flat, dedup, prof.Adapters)
	}

	switch mode {
	case types.MergeInterleaved:
		result.Results = interleave(flat, prof.Adapters)
		if result.Results == nil {
			result.Results = []types.UnifiedSearchResult{}
		}
		result.TotalCount = len(result.Results)
	default:
		result.Sources = regroup(groups, flat)
		for _, g := range result.Sources {
			result.TotalCount += g.Count
		}
	}
	return result
}

// regroup rebuilds source buckets from the surviving results.
func regroup(groups []types.SourceResults, kept []types.UnifiedSearchResult) []types.SourceResults {
	bySource := make(map[string][]types.UnifiedSearchResult, len(groups))
	for _, r := range kept {
		bySource[r.Source] = append(bySource[r.Source], r)
	}
	out := make([]types.SourceResults, len(groups))
	for i, g := range groups {
		g.Results = bySource[g.Source]
		if g.Results == nil {
			g.Results = []types.UnifiedSearchResult{}
		}
		g.Count = len(g.Results)
		out[i] = g
	}
	return out
}

// interleave scores every result as (1/rank)*weight and sorts the combined
// list by descending score. Ties keep source declaration order, then rank.
func interleave(results []types.UnifiedSearchResult, order []string) []types.UnifiedSearchResult {
	pos := declarationIndex(order)
	out := make([]types.UnifiedSearchResult, len(results))
	copy(out, results)
	for i := range out {
		out[i].Federation.ComputeScore()
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *out[i].Federation.Score, *out[j].Federation.Score
		if si != sj {
			return si > sj
		}
		if pi, pj := pos[out[i].Source], pos[out[j].Source]; pi != pj {
			return pi < pj
		}
		return out[i].Federation.SourceRank < out[j].Federation.SourceRank
	})
	return out
}

// declarationIndex maps each adapter to its position in the profile.
func declarationIndex(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	return pos
}
