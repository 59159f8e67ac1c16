// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dispatch-engine/internal/adapter"
	"github.com/pdiddy/dispatch-engine/internal/history"
	"github.com/pdiddy/dispatch-engine/internal/profile"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

func parsed(t *testing.T, add func(*cobra.Command), flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	add(cmd)
	require.NoError(t, cmd.Flags().Parse(flags))
	return cmd
}

func TestRequestFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		flags    []string
		profile  string
		adapters []string
		add      []string
	}{
		{name: "default profile", profile: profile.DefaultName},
		{name: "adapters replace default profile", flags: []string{"--adapters", "arxiv,openalex"}, adapters: []string{"arxiv", "openalex"}},
		{name: "adapters extend explicit profile", flags: []string{"-p", "papers", "--adapters", "arxiv", "--add", "web"}, profile: "papers", add: []string{"arxiv", "web"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := parsed(t, addSearchFlags, tt.flags...)
			req, err := requestFromFlags(cmd, []string{"graph", "networks"})
			require.NoError(t, err)
			assert.Equal(t, "graph networks", req.Query)
			assert.Equal(t, tt.profile, req.Profile)
			assert.ElementsMatch(t, tt.adapters, req.Adapters)
			assert.ElementsMatch(t, tt.add, req.Add)
		})
	}
}

func TestRequestFromFlagsDedup(t *testing.T) {
	cmd := parsed(t, addSearchFlags, "--prefer", "arxiv", "--merge", "interleaved", "--limit", "3")
	req, err := requestFromFlags(cmd, []string{"q"})
	require.NoError(t, err)
	require.NotNil(t, req.Deduplication)
	assert.True(t, req.Deduplication.Enabled)
	assert.Equal(t, types.DedupURL, req.Deduplication.Strategy)
	assert.Equal(t, []string{"arxiv"}, req.Deduplication.Prefer)
	assert.Equal(t, types.MergeInterleaved, req.Merge)
	assert.Equal(t, 3, req.Limit)
}

func TestRequestFromFlagsErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		args  []string
		want  string
	}{
		{name: "empty query", args: []string{"  "}, want: "query is required"},
		{name: "bad merge", flags: []string{"--merge", "zipped"}, args: []string{"q"}, want: "unknown merge mode"},
		{name: "bad dedup", flags: []string{"--dedup", "isbn"}, args: []string{"q"}, want: "unknown dedup strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := parsed(t, addSearchFlags, tt.flags...)
			_, err := requestFromFlags(cmd, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProfileFromFlags(t *testing.T) {
	cmd := parsed(t, addProfileFlags,
		"--extends", "research", "--exclude", "google-scholar", "--add", "biorxiv",
		"--weight", "arxiv=1.5", "--weight", "pubmed=2", "--timeout-ms", "2000", "--dedup", "doi")
	p, err := profileFromFlags(cmd, "bio")
	require.NoError(t, err)
	assert.Equal(t, "bio", p.Name)
	assert.Equal(t, "research", p.Extends)
	assert.Equal(t, []string{"google-scholar"}, p.Exclude)
	assert.Equal(t, []string{"biorxiv"}, p.Add)
	assert.Equal(t, map[string]float64{"arxiv": 1.5, "pubmed": 2}, p.Weights)
	assert.Equal(t, 2000, p.TimeoutMS)
	require.NotNil(t, p.Deduplication)
	assert.Equal(t, types.DedupDOI, p.Deduplication.Strategy)
}

func TestProfileFromFlagsInvalid(t *testing.T) {
	_, err := profileFromFlags(parsed(t, addProfileFlags), "empty")
	assert.Error(t, err)

	_, err = profileFromFlags(parsed(t, addProfileFlags, "--connectors", "arxiv", "--weight", "arxiv"), "w")
	assert.ErrorContains(t, err, "invalid weight")
}

func TestPromptChoice(t *testing.T) {
	matches := []types.ResolvedAction{
		{Adapter: "pubmed", Operation: "get_article", Confidence: 0.7},
		{Adapter: "hackernews", Operation: "get_item", Confidence: 0.5},
	}
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "\n", want: 1},
		{input: "", want: 1},
		{input: "2\n", want: 2},
		{input: "3\n", wantErr: true},
		{input: "two\n", wantErr: true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		n, err := promptChoice(matches, strings.NewReader(tt.input), &out)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, n)
		assert.Contains(t, out.String(), "2) hackernews")
	}
}

func TestWriteOutput(t *testing.T) {
	v := map[string]int{"count": 2}

	var buf bytes.Buffer
	require.NoError(t, writeOutput("json", v, &buf))
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, writeOutput("yaml", v, &buf))
	assert.Equal(t, "count: 2\n", buf.String())

	assert.Error(t, writeOutput("xml", v, &buf))
}

func TestFormatRuns(t *testing.T) {
	var buf bytes.Buffer
	formatRuns(nil, &buf)
	assert.Equal(t, "No searches recorded.\n", buf.String())

	buf.Reset()
	formatRuns([]history.Run{{
		Query:      strings.Repeat("long query ", 6),
		Profile:    "research",
		TotalCount: 7,
		DurationMS: 1500,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Sources: []history.SourceRun{
			{Source: "arxiv", Status: history.StatusOK},
			{Source: "pubmed", Status: history.StatusTimeout},
		},
	}}, &buf)
	out := buf.String()
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "arxiv pubmed!")
}

func TestFormatHealth(t *testing.T) {
	var buf bytes.Buffer
	formatHealth([]history.SourceHealth{{Source: "arxiv", Runs: 4, Failures: 1, Timeouts: 1, AvgDurationMS: 320}}, &buf)
	assert.Contains(t, buf.String(), "50%")
	assert.Contains(t, buf.String(), "320ms")
}

func TestDefaultProfileAdaptersRegistered(t *testing.T) {
	rp, err := profile.NewStore("").Resolve(profile.DefaultName)
	require.NoError(t, err)
	require.NotEmpty(t, rp.Adapters)

	reg := adapter.NewDefaultRegistry(types.HTTPConfig{}, types.AdapterConfig{}, adapter.Credentials{})
	for _, name := range rp.Adapters {
		_, ok := reg.Get(name)
		assert.True(t, ok, "default profile names unregistered adapter %q", name)
	}
}
