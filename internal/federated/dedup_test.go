// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

func res(source, id, title, url string, rank int) types.UnifiedSearchResult {
	return types.UnifiedSearchResult{
		Source:     source,
		ID:         id,
		Title:      title,
		URL:        url,
		Federation: types.FederationMeta{SourceRank: rank, Weight: 1},
	}
}

func ids(results []types.UnifiedSearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Source + ":" + r.ID
	}
	return out
}

func TestDeduplicate(t *testing.T) {
	order := []string{"arxiv", "s2", "openalex"}

	tests := []struct {
		name        string
		cfg         types.DeduplicationConfig
		in          []types.UnifiedSearchResult
		want        []string
		wantRemoved int
	}{
		{
			name: "url keeps declaration order when no preference",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupURL},
			in: []types.UnifiedSearchResult{
				res("arxiv", "1", "A", "http://www.example.org/p/", 1),
				res("s2", "2", "B", "https://example.org/p", 1),
				res("s2", "3", "C", "https://example.org/q", 2),
			},
			want:        []string{"arxiv:1", "s2:3"},
			wantRemoved: 1,
		},
		{
			name: "prefer list wins over declaration order",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupURL, Prefer: []string{"openalex"}},
			in: []types.UnifiedSearchResult{
				res("arxiv", "1", "A", "https://example.org/p", 1),
				res("s2", "2", "B", "https://example.org/p", 1),
				res("openalex", "3", "C", "https://example.org/p", 4),
			},
			want:        []string{"openalex:3"},
			wantRemoved: 2,
		},
		{
			name: "query strings are significant",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupURL},
			in: []types.UnifiedSearchResult{
				res("arxiv", "1", "A", "https://example.org/p?id=1", 1),
				res("s2", "2", "B", "https://example.org/p?id=2", 1),
			},
			want: []string{"arxiv:1", "s2:2"},
		},
		{
			name: "results without a key are never duplicates",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupURL},
			in: []types.UnifiedSearchResult{
				res("arxiv", "1", "A", "", 1),
				res("s2", "2", "A", "", 1),
			},
			want: []string{"arxiv:1", "s2:2"},
		},
		{
			name: "doi from id url and metadata",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupDOI},
			in: []types.UnifiedSearchResult{
				res("arxiv", "10.1000/XYZ", "A", "", 1),
				res("s2", "S2:abc", "B", "https://doi.org/10.1000/xyz", 1),
				func() types.UnifiedSearchResult {
					r := res("openalex", "W1", "C", "", 1)
					r.Metadata = map[string]any{"doi": "doi:10.1000/Xyz"}
					return r
				}(),
				res("openalex", "W2", "D", "https://openalex.org/W2", 2),
			},
			want:        []string{"arxiv:10.1000/XYZ", "openalex:W2"},
			wantRemoved: 2,
		},
		{
			name: "fuzzy titles",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupTitleFuzzy, Prefer: []string{"s2"}},
			in: []types.UnifiedSearchResult{
				res("arxiv", "1", "Attention Is All You Need", "", 1),
				res("s2", "2", "attention is all you need!", "", 3),
				res("openalex", "3", "Attention is all you need in speech separation tasks", "", 1),
			},
			want:        []string{"s2:2", "openalex:3"},
			wantRemoved: 1,
		},
		{
			name: "short titles must match exactly",
			cfg:  types.DeduplicationConfig{Strategy: types.DedupTitleFuzzy},
			in: []types.UnifiedSearchResult{
				res("arxiv", "1", "Deep learning", "", 1),
				res("s2", "2", "Deep learning review", "", 1),
			},
			want: []string{"arxiv:1", "s2:2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, removed := deduplicate(tt.in, tt.cfg, order)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("kept results mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}

func TestDeduplicate_RecordsReplacedSources(t *testing.T) {
	in := []types.UnifiedSearchResult{
		res("arxiv", "1", "A", "https://example.org/p", 1),
		res("s2", "2", "B", "https://example.org/p", 1),
		res("openalex", "3", "C", "https://example.org/p", 1),
	}
	cfg := types.DeduplicationConfig{Strategy: types.DedupURL, Prefer: []string{"openalex", "s2"}}

	got, _ := deduplicate(in, cfg, []string{"arxiv", "s2", "openalex"})

	assert.Len(t, got, 1)
	assert.Equal(t, []string{"arxiv:1", "s2:2"}, got[0].Metadata[MetaAlsoFoundIn])
	assert.Nil(t, in[2].Metadata, "input results are not modified")
}

func TestJaccardThreshold(t *testing.T) {
	a := keyFor(types.DedupTitleFuzzy, types.UnifiedSearchResult{Title: "one two three four five six seven"})
	b := keyFor(types.DedupTitleFuzzy, types.UnifiedSearchResult{Title: "one two three four five six seven eight"})
	c := keyFor(types.DedupTitleFuzzy, types.UnifiedSearchResult{Title: "one two three four five nine ten"})

	assert.True(t, sameItem(types.DedupTitleFuzzy, a, b), "7/8 overlap")
	assert.False(t, sameItem(types.DedupTitleFuzzy, a, c), "5/9 overlap")
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "hello world 2", normalizeTitle("  Hello,   World: 2! "))
	assert.Equal(t, "", normalizeTitle("?!"))
}

func TestExtractDOI(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"resolver link", "https://doi.org/10.1000/ABC", "10.1000/abc"},
		{"dx host any case", "HTTP://DX.DOI.ORG/10.1000/x", "10.1000/x"},
		{"escaped path", "https://doi.org/10.1000/a%2Fb", "10.1000/a/b"},
		{"doi.org in path of another host", "https://example.com/doi.org/10.1/x", ""},
		{"case folding grows the string", "https://x" + strings.Repeat("Ⱥ", 12) + "/doi.org/10.1/x", ""},
		{"invalid utf-8", "https://doi.org/\xff\xfe", ""},
		{"not a url", "::", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, extractDOI(types.UnifiedSearchResult{URL: tt.url}))
			})
		})
	}
}
