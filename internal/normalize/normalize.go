// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize converts heterogeneous adapter payloads into
// UnifiedSearchResult values.
//
// The results array is located through a closed list of conventional field
// names. A payload in any other shape yields zero results rather than an
// error, so one adapter's schema drift cannot fail a federated query.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// ArrayFields is the ordered probe list for the results array.
var ArrayFields = []string{"results", "items", "articles", "papers", "stories", "posts", "videos"}

var (
	snippetFields   = []string{"snippet", "abstract", "abstract_text", "summary", "description", "text", "body", "selftext"}
	urlFields       = []string{"url", "html_url", "link", "pdf_url", "web_url", "permalink"}
	titleFields     = []string{"title", "name"}
	defaultIDFields = []string{"id", "pmid", "doi", "link", "url"}
	totalFields     = []string{"total_results", "total_count", "totalCount"}
	timeFields      = []string{"timestamp", "published", "publication_date", "date", "created_at", "updated", "time", "created_utc"}
)

// MaxSnippet is the snippet length in runes before truncation.
const MaxSnippet = 300

// idRule builds a result identifier from an adapter's item. It returns the
// id and the item key it consumed.
type idRule func(item map[string]any) (id, key string)

func prefixed(prefix string, fields ...string) idRule {
	return func(item map[string]any) (string, string) {
		for _, f := range fields {
			if s, ok := scalarString(item[f]); ok && s != "" {
				return prefix + s, f
			}
		}
		return "", ""
	}
}

// idRules holds per-adapter identifier conventions. Adapters without a rule
// use the first of defaultIDFields.
var idRules = map[string]idRule{
	"pubmed":           prefixed("PMID:", "pmid"),
	"arxiv":            prefixed("arXiv:", "id"),
	"biorxiv":          prefixed("", "doi"),
	"hackernews":       prefixed("hn:", "id"),
	"reddit":           prefixed("reddit:", "id"),
	"google-scholar":   prefixed("", "link"),
	"semantic-scholar": prefixed("S2:", "paperId", "paper_id", "id"),
	"semantic_scholar": prefixed("S2:", "paperId", "paper_id", "id"),
	"github": func(item map[string]any) (string, string) {
		if n, ok := item["number"].(float64); ok && n == math.Trunc(n) {
			return "#" + strconv.FormatInt(int64(n), 10), "number"
		}
		if s, ok := scalarString(item["number"]); ok && s != "" {
			return "#" + s, "number"
		}
		return prefixed("", "path", "full_name", "id")(item)
	},
	"wikipedia": func(item map[string]any) (string, string) {
		if s, ok := item["title"].(string); ok && s != "" {
			// The title also feeds Title, so no key is consumed.
			return "wiki:" + strings.ReplaceAll(s, " ", "_"), ""
		}
		return "", ""
	},
}

// FindArray locates the results array in payload. It returns nil when no
// recognized field holds a sequence.
func FindArray(payload any) []any {
	switch p := payload.(type) {
	case map[string]any:
		for _, f := range ArrayFields {
			if arr, ok := asSlice(p[f]); ok {
				return arr
			}
		}
	default:
		if arr, ok := asSlice(payload); ok {
			return arr
		}
	}
	return nil
}

// Normalize converts every recognizable entry of an adapter payload. Ranks
// are 1-based positions in the adapter's own list; entries without an id
// or title are skipped but still occupy their rank.
func Normalize(adapter string, payload any, weight float64) []types.UnifiedSearchResult {
	items := FindArray(payload)
	results := make([]types.UnifiedSearchResult, 0, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if r, ok := NormalizeItem(adapter, item, i+1, weight); ok {
			results = append(results, r)
		}
	}
	return results
}

// NormalizeItem converts one entry. It reports false when the entry has no
// usable identifier or title. Fields not lifted into the common shape are
// kept in Metadata.
func NormalizeItem(adapter string, item map[string]any, rank int, weight float64) (types.UnifiedSearchResult, bool) {
	used := make(map[string]bool)

	id, idKey := extractID(adapter, item)
	if id == "" {
		return types.UnifiedSearchResult{}, false
	}
	title, titleKey := firstString(item, titleFields)
	if title == "" {
		return types.UnifiedSearchResult{}, false
	}
	used[idKey] = true
	used[titleKey] = true

	r := types.UnifiedSearchResult{
		Source: adapter,
		ID:     id,
		Title:  strings.TrimSpace(title),
		Federation: types.FederationMeta{
			SourceRank: rank,
			Weight:     weight,
		},
	}

	if s, key := firstString(item, snippetFields); s != "" {
		r.Snippet = truncate(strings.TrimSpace(s), MaxSnippet)
		used[key] = true
	}
	if u, key := firstString(item, urlFields); u != "" {
		r.URL = u
		used[key] = true
	}
	r.Timestamp = extractTime(item)

	for k, v := range item {
		if used[k] || v == nil {
			continue
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata[k] = v
	}
	return r, true
}

// TotalAvailable reads the adapter-reported total hit count, if any.
func TotalAvailable(payload any) *int {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	for _, f := range totalFields {
		if n, ok := asInt(m[f]); ok && n >= 0 {
			return &n
		}
	}
	return nil
}

func extractID(adapter string, item map[string]any) (string, string) {
	if rule, ok := idRules[adapter]; ok {
		return rule(item)
	}
	return prefixed("", defaultIDFields...)(item)
}

// firstString returns the first non-empty string among fields and its key.
func firstString(item map[string]any, fields []string) (string, string) {
	for _, f := range fields {
		if s, ok := item[f].(string); ok && strings.TrimSpace(s) != "" {
			return s, f
		}
	}
	return "", ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// extractTime accepts RFC 3339 strings, plain dates and unix seconds.
func extractTime(item map[string]any) *time.Time {
	for _, f := range timeFields {
		switch v := item[f].(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, v); err == nil {
					t = t.UTC()
					return &t
				}
			}
		case float64, int, int64, json.Number:
			if n, ok := asInt(v); ok && n > 0 {
				t := time.Unix(int64(n), 0).UTC()
				return &t
			}
		}
	}
	return nil
}

// scalarString renders strings and integral numbers as identifiers.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case int:
		return x, true
	case int64:
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}
