// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode parses a JSON literal the way adapter payloads arrive.
func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestFindArray(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"results", `{"results": [{"id": 1}]}`, 1},
		{"articles", `{"articles": [{"id": 1}, {"id": 2}]}`, 2},
		{"videos", `{"videos": [{"id": 1}, {"id": 2}, {"id": 3}]}`, 3},
		{"bare array", `[{"id": 1}, {"id": 2}, {"id": 3}]`, 3},
		{"results before items", `{"items": [{}, {}], "results": [{}]}`, 1},
		{"non-array field skipped", `{"results": "oops", "posts": [{}]}`, 1},
		{"unknown field", `{"hits": [{"id": 1}]}`, 0},
		{"scalar", `"nope"`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindArray(decode(t, tt.payload))
			if len(got) != tt.want {
				t.Errorf("FindArray() len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestNormalizeItemIDs(t *testing.T) {
	tests := []struct {
		adapter string
		item    string
		wantID  string
	}{
		{"pubmed", `{"pmid": "12345678", "title": "T"}`, "PMID:12345678"},
		{"arxiv", `{"id": "2301.07041", "title": "T"}`, "arXiv:2301.07041"},
		{"biorxiv", `{"doi": "10.1101/2020.01.01", "title": "T"}`, "10.1101/2020.01.01"},
		{"hackernews", `{"id": 38500000, "title": "T"}`, "hn:38500000"},
		{"github", `{"number": 42, "title": "T"}`, "#42"},
		{"github", `{"path": "src/main.go", "name": "main.go"}`, "src/main.go"},
		{"reddit", `{"id": "abc123", "title": "T"}`, "reddit:abc123"},
		{"wikipedia", `{"title": "Go programming language"}`, "wiki:Go_programming_language"},
		{"google-scholar", `{"link": "https://scholar.example/x", "title": "T"}`, "https://scholar.example/x"},
		{"semantic-scholar", `{"paperId": "abc", "title": "T"}`, "S2:abc"},
		{"semantic-scholar", `{"paper_id": "def", "title": "T"}`, "S2:def"},
		{"openalex", `{"id": "W123", "title": "T"}`, "W123"},
		{"unknown", `{"doi": "10.1/x", "title": "T"}`, "10.1/x"},
		{"unknown", `{"url": "https://example.com", "name": "T"}`, "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.adapter+"/"+tt.wantID, func(t *testing.T) {
			item := decode(t, tt.item).(map[string]any)
			r, ok := NormalizeItem(tt.adapter, item, 1, 1.0)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, r.ID)
			assert.Equal(t, tt.adapter, r.Source)
		})
	}
}

func TestNormalizeItemSkipsIncomplete(t *testing.T) {
	for _, s := range []string{
		`{"title": "no id"}`,
		`{"id": "x"}`,
		`{"id": "x", "title": "   "}`,
	} {
		item := decode(t, s).(map[string]any)
		_, ok := NormalizeItem("openalex", item, 1, 1.0)
		assert.False(t, ok, "item %s", s)
	}
}

func TestNormalizeItemFields(t *testing.T) {
	item := decode(t, `{
		"id": 38500000,
		"title": "Show HN: Something Cool",
		"score": 150,
		"by": "username",
		"url": "https://example.com",
		"text": "",
		"body": "Body text",
		"time": 1700000000
	}`).(map[string]any)

	r, ok := NormalizeItem("hackernews", item, 2, 1.5)
	require.True(t, ok)

	assert.Equal(t, "hn:38500000", r.ID)
	assert.Equal(t, "Show HN: Something Cool", r.Title)
	assert.Equal(t, "Body text", r.Snippet)
	assert.Equal(t, "https://example.com", r.URL)
	require.NotNil(t, r.Timestamp)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *r.Timestamp)
	assert.Equal(t, 2, r.Federation.SourceRank)
	assert.Equal(t, 1.5, r.Federation.Weight)
	assert.Nil(t, r.Federation.Score)

	assert.Equal(t, 150.0, r.Metadata["score"])
	assert.Equal(t, "username", r.Metadata["by"])
	assert.NotContains(t, r.Metadata, "id")
	assert.NotContains(t, r.Metadata, "title")
	assert.NotContains(t, r.Metadata, "url")
	assert.NotContains(t, r.Metadata, "body")
}

func TestNormalizeItemSnippetTruncation(t *testing.T) {
	long := strings.Repeat("é", MaxSnippet+50)
	item := map[string]any{"id": "x", "title": "T", "abstract": long}
	r, ok := NormalizeItem("openalex", item, 1, 1.0)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(r.Snippet, "..."))
	assert.Equal(t, MaxSnippet+3, len([]rune(r.Snippet)))
}

func TestNormalizeItemDateString(t *testing.T) {
	item := map[string]any{"id": "x", "title": "T", "published": "2023-01-17"}
	r, ok := NormalizeItem("openalex", item, 1, 1.0)
	require.True(t, ok)
	require.NotNil(t, r.Timestamp)
	assert.Equal(t, "2023-01-17", r.Timestamp.Format("2006-01-02"))
}

func TestNormalizeRanksAndWeights(t *testing.T) {
	payload := decode(t, `{"articles": [
		{"pmid": "1", "title": "First"},
		{"title": "missing id"},
		{"pmid": "3", "title": "Third"}
	]}`)

	results := Normalize("pubmed", payload, 1.5)
	require.Len(t, results, 2)
	assert.Equal(t, "PMID:1", results[0].ID)
	assert.Equal(t, 1, results[0].Federation.SourceRank)
	assert.Equal(t, "PMID:3", results[1].ID)
	assert.Equal(t, 3, results[1].Federation.SourceRank)
	for _, r := range results {
		assert.Equal(t, 1.5, r.Federation.Weight)
	}
}

func TestNormalizeUnrecognizedShape(t *testing.T) {
	assert.Empty(t, Normalize("pubmed", decode(t, `{"hits": [{"pmid": "1", "title": "x"}]}`), 1.0))
	assert.Empty(t, Normalize("pubmed", nil, 1.0))
	assert.Empty(t, Normalize("pubmed", decode(t, `{"results": ["a", 1, null]}`), 1.0))
}

func TestNormalizeTypedSlice(t *testing.T) {
	payload := map[string]any{"results": []map[string]any{{"id": "a", "title": "A"}}}
	results := Normalize("openalex", payload, 1.0)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestTotalAvailable(t *testing.T) {
	tests := []struct {
		payload string
		want    *int
	}{
		{`{"total_results": 120, "results": []}`, intPtr(120)},
		{`{"total_count": 7}`, intPtr(7)},
		{`{"totalCount": 3}`, intPtr(3)},
		{`{"results": []}`, nil},
		{`[]`, nil},
	}
	for _, tt := range tests {
		got := TotalAvailable(decode(t, tt.payload))
		assert.Equal(t, tt.want, got, "payload %s", tt.payload)
	}
}

func intPtr(n int) *int { return &n }
