// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps free-form input (URLs, identifiers, shorthands) onto
// an adapter operation using a priority-ordered pattern table.
//
// No match is not an error: ResolveBest reports false and ResolveAll returns
// an empty slice. When several patterns match, every match is returned in
// descending priority and the caller decides which one to run.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

var (
	// ErrNoMatch is returned by Pick when no pattern matches the input.
	ErrNoMatch = errors.New("no pattern matches input")

	// ErrPickOutOfRange is returned by Pick for a choice beyond the matches.
	ErrPickOutOfRange = errors.New("choice out of range")
)

// Resolver evaluates input against an immutable pattern table.
type Resolver struct {
	patterns []InputPattern
}

// New returns a Resolver over the built-in pattern table.
func New() *Resolver {
	return &Resolver{patterns: defaultPatterns()}
}

// NewWithPatterns returns a Resolver over a custom table. The table is
// copied and sorted by descending priority with declaration order kept for ties.
func NewWithPatterns(patterns []InputPattern) *Resolver {
	return &Resolver{patterns: sortByPriority(patterns)}
}

// ResolveBest returns the highest-priority match. The table is pre-sorted,
// so the first match wins.
func (r *Resolver) ResolveBest(input string) (types.ResolvedAction, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.ResolvedAction{}, false
	}
	for i := range r.patterns {
		if action, ok := apply(&r.patterns[i], input); ok {
			return action, true
		}
	}
	return types.ResolvedAction{}, false
}

// ResolveAll returns every matching pattern's action in descending priority.
func (r *Resolver) ResolveAll(input string) []types.ResolvedAction {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	var actions []types.ResolvedAction
	for i := range r.patterns {
		if action, ok := apply(&r.patterns[i], input); ok {
			actions = append(actions, action)
		}
	}
	return actions
}

// Pick returns the n-th match (1-based) of ResolveAll. n <= 0 picks the
// highest-priority match.
func (r *Resolver) Pick(input string, n int) (types.ResolvedAction, error) {
	actions := r.ResolveAll(input)
	if len(actions) == 0 {
		return types.ResolvedAction{}, fmt.Errorf("%w: %q", ErrNoMatch, strings.TrimSpace(input))
	}
	if n <= 0 {
		n = 1
	}
	if n > len(actions) {
		return types.ResolvedAction{}, fmt.Errorf("%w: %d of %d matches", ErrPickOutOfRange, n, len(actions))
	}
	return actions[n-1], nil
}

// CanResolve reports whether any pattern matches input.
func (r *Resolver) CanResolve(input string) bool {
	_, ok := r.ResolveBest(input)
	return ok
}

// ListPatterns describes the table in evaluation order.
func (r *Resolver) ListPatterns() []types.PatternInfo {
	infos := make([]types.PatternInfo, 0, len(r.patterns))
	for _, p := range r.patterns {
		infos = append(infos, types.PatternInfo{
			ID:          p.ID,
			Adapter:     p.Adapter,
			Operation:   p.Operation,
			Priority:    p.Priority,
			Description: p.Description,
			Example:     p.Example,
		})
	}
	return infos
}

// apply matches one pattern and maps its named captures onto arguments.
// Empty captures are omitted.
func apply(p *InputPattern, input string) (types.ResolvedAction, bool) {
	m := p.Pattern.FindStringSubmatch(input)
	if m == nil {
		return types.ResolvedAction{}, false
	}

	arguments := make(map[string]string, len(p.ArgMapping))
	for _, am := range p.ArgMapping {
		idx := p.Pattern.SubexpIndex(am.Capture)
		if idx < 0 || idx >= len(m) || m[idx] == "" {
			continue
		}
		arguments[am.Arg] = m[idx]
	}

	return types.ResolvedAction{
		Adapter:     p.Adapter,
		Operation:   p.Operation,
		Arguments:   arguments,
		Confidence:  Confidence(p.Priority),
		Description: p.Description,
		PatternID:   p.ID,
		Priority:    p.Priority,
	}, true
}

// Confidence maps a priority onto [0,1].
func Confidence(priority int) float64 {
	switch {
	case priority <= 0:
		return 0
	case priority >= 100:
		return 1
	}
	return float64(priority) / 100
}
