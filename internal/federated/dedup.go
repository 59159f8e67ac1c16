// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// TitleSimilarity is the token Jaccard threshold above which two titles of
// at least MinFuzzyTokens words are considered the same work.
const (
	TitleSimilarity = 0.85
	MinFuzzyTokens  = 4
)

// MetaAlsoFoundIn lists "<source>:<id>" of the duplicates a kept result replaced.
const MetaAlsoFoundIn = "also_found_in"

// dedupKey is the comparable form of one result under a strategy. Results
// with an empty key never match anything.
type dedupKey struct {
	exact  string
	tokens map[string]struct{}
}

func (k dedupKey) empty() bool { return k.exact == "" }

// deduplicate collapses results that describe the same item, keeping the
// copy from the most preferred source. results must be in declaration then
// rank order; the survivors keep that order.
func deduplicate(results []types.UnifiedSearchResult, cfg types.DeduplicationConfig, order []string) ([]types.UnifiedSearchResult, int) {
	keys := make([]dedupKey, len(results))
	for i, r := range results {
		keys[i] = keyFor(cfg.Strategy, r)
	}
	pref := preference(cfg.Prefer, order)

	var (
		reps    []int
		dropped = make([]bool, len(results))
		also    = make(map[int][]string)
		removed int
	)
	for i := range results {
		if keys[i].empty() {
			continue
		}
		match := -1
		for k, rep := range reps {
			if sameItem(cfg.Strategy, keys[i], keys[rep]) {
				match = k
				break
			}
		}
		if match < 0 {
			reps = append(reps, i)
			continue
		}

		removed++
		rep := reps[match]
		winner, loser := rep, i
		if pref(results[i].Source) < pref(results[rep].Source) {
			winner, loser = i, rep
			reps[match] = i
		}
		dropped[loser] = true
		also[winner] = append(also[winner], also[loser]...)
		also[winner] = append(also[winner], results[loser].Source+":"+results[loser].ID)
		delete(also, loser)
	}

	out := make([]types.UnifiedSearchResult, 0, len(results)-removed)
	for i, r := range results {
		if dropped[i] {
			continue
		}
		if dups := also[i]; len(dups) > 0 {
			meta := make(map[string]any, len(r.Metadata)+1)
			for k, v := range r.Metadata {
				meta[k] = v
			}
			meta[MetaAlsoFoundIn] = dups
			r.Metadata = meta
		}
		out = append(out, r)
	}
	return out, removed
}

// preference ranks sources: the prefer list first, in its order, then the
// remaining sources in profile order.
func preference(prefer, order []string) func(string) int {
	pos := make(map[string]int, len(prefer)+len(order))
	for i, s := range prefer {
		if _, ok := pos[s]; !ok {
			pos[s] = i
		}
	}
	for i, s := range order {
		if _, ok := pos[s]; !ok {
			pos[s] = len(prefer) + i
		}
	}
	return func(source string) int {
		if p, ok := pos[source]; ok {
			return p
		}
		return len(prefer) + len(order)
	}
}

func keyFor(strategy types.DedupStrategy, r types.UnifiedSearchResult) dedupKey {
	switch strategy {
	case types.DedupDOI:
		return dedupKey{exact: extractDOI(r)}
	case types.DedupTitleFuzzy:
		t := normalizeTitle(r.Title)
		if t == "" {
			return dedupKey{}
		}
		tokens := make(map[string]struct{})
		for _, w := range strings.Fields(t) {
			tokens[w] = struct{}{}
		}
		return dedupKey{exact: t, tokens: tokens}
	default:
		return dedupKey{exact: normalizeURL(r.URL)}
	}
}

func sameItem(strategy types.DedupStrategy, a, b dedupKey) bool {
	if a.exact == b.exact {
		return true
	}
	if strategy != types.DedupTitleFuzzy || len(a.tokens) < MinFuzzyTokens || len(b.tokens) < MinFuzzyTokens {
		return false
	}
	return jaccard(a.tokens, b.tokens) >= TitleSimilarity
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// normalizeURL lowercases scheme and host, drops "www.", the fragment and
// any trailing slash. Query strings are significant.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		scheme = "https"
	}
	s := scheme + "://" + host + strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	return s
}

// extractDOI finds a DOI in metadata, the URL or the id.
func extractDOI(r types.UnifiedSearchResult) string {
	for _, k := range []string{"doi", "DOI"} {
		if s, ok := r.Metadata[k].(string); ok && s != "" {
			return cleanDOI(s)
		}
	}
	if ext, ok := r.Metadata["externalIds"].(map[string]any); ok {
		if s, ok := ext["DOI"].(string); ok && s != "" {
			return cleanDOI(s)
		}
	}
	if doi := doiFromURL(r.URL); doi != "" {
		return doi
	}
	if strings.HasPrefix(r.ID, "10.") {
		return cleanDOI(r.ID)
	}
	return ""
}

// doiFromURL returns the DOI of a doi.org resolver link.
func doiFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Hostname()) {
	case "doi.org", "dx.doi.org", "www.doi.org":
		return cleanDOI(strings.TrimPrefix(u.Path, "/"))
	}
	return ""
}

func cleanDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		s = strings.TrimPrefix(s, p)
	}
	if !strings.HasPrefix(s, "10.") {
		return ""
	}
	return s
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
