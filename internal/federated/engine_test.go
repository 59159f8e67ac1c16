// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/pdiddy/dispatch-engine/internal/adapter"
	"github.com/pdiddy/dispatch-engine/internal/profile"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fixtures ---

// staticProfiles resolves profiles from declarations, one level deep.
type staticProfiles map[string]types.SearchProfile

func (s staticProfiles) Resolve(name string) (*types.ResolvedProfile, error) {
	p, ok := s[name]
	if !ok {
		return nil, &profile.Error{Name: name, Err: profile.ErrNotFound}
	}
	p.Name = name
	return profile.Flatten([]types.SearchProfile{p}), nil
}

// items builds a search payload of n results for source.
func items(source string, n int) map[string]any {
	list := make([]any, n)
	for i := range list {
		list[i] = map[string]any{
			"id":    fmt.Sprintf("%s-%d", source, i+1),
			"title": fmt.Sprintf("%s result %d", source, i+1),
			"url":   fmt.Sprintf("https://%s.example.com/%d", source, i+1),
		}
	}
	return map[string]any{"results": list}
}

// returning answers every search with payload.
func returning(name string, payload any) *adapter.Func {
	return &adapter.Func{AdapterName: name, Fn: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
		return payload, nil
	}}
}

// blocking waits for cancellation.
func blocking(name string) *adapter.Func {
	return &adapter.Func{AdapterName: name, Fn: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

// delayed answers after d unless cancelled first.
func delayed(name string, d time.Duration, payload any) *adapter.Func {
	return &adapter.Func{AdapterName: name, Fn: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
		select {
		case <-time.After(d):
			return payload, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

// recording captures the arguments of every call.
type recording struct {
	mu   sync.Mutex
	args map[string]map[string]any
}

func (r *recording) adapter(name string) *adapter.Func {
	return &adapter.Func{AdapterName: name, Fn: func(ctx context.Context, op string, args map[string]any) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.args == nil {
			r.args = make(map[string]map[string]any)
		}
		r.args[name] = args
		return items(name, 1), nil
	}}
}

type recorderFunc func(ctx context.Context, result *types.FederatedSearchResult) error

func (f recorderFunc) Record(ctx context.Context, result *types.FederatedSearchResult) error {
	return f(ctx, result)
}

// --- dispatch and failure isolation ---

func TestSearch_PartialFailureIsData(t *testing.T) {
	reg := adapter.NewRegistry(returning("arxiv", items("arxiv", 3)), blocking("pubmed"))
	profiles := staticProfiles{"research": {Connectors: []string{"pubmed", "arxiv"}, TimeoutMS: 50}}
	eng := New(reg, profiles, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "CRISPR", Profile: "research"})
	require.NoError(t, err)

	assert.Equal(t, "research", res.Profile)
	assert.Equal(t, []string{"arxiv"}, res.Completed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, types.SourceError{Source: "pubmed", Error: "timeout after 50ms", IsTimeout: true}, res.Errors[0])
	assert.True(t, res.Partial)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "arxiv", res.Sources[0].Source)
	assert.Equal(t, 3, res.Sources[0].Count)
	assert.Equal(t, "arXiv:arxiv-1", res.Sources[0].Results[0].ID)
}

func TestSearch_AllSucceed(t *testing.T) {
	reg := adapter.NewRegistry(returning("a", items("a", 2)), returning("b", items("b", 1)))
	eng := New(reg, nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a", "b"}})
	require.NoError(t, err)

	assert.False(t, res.Partial)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"a", "b"}, res.Completed)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, types.MergeGrouped, res.MergeMode)
	assert.Nil(t, res.Results)
}

func TestSearch_CompletedFollowsDeclarationOrder(t *testing.T) {
	reg := adapter.NewRegistry(delayed("slow", 30*time.Millisecond, items("slow", 1)), returning("fast", items("fast", 1)))
	eng := New(reg, nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"slow", "fast"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"slow", "fast"}, res.Completed)
	assert.Equal(t, "slow", res.Sources[0].Source)
}

func TestSearch_FailureKinds(t *testing.T) {
	tests := []struct {
		name        string
		adapter     adapter.Adapter
		cfg         types.EngineConfig
		wantErr     string
		wantTimeout bool
	}{
		{
			name: "adapter error",
			adapter: &adapter.Func{AdapterName: "src", Fn: func(context.Context, string, map[string]any) (any, error) {
				return nil, errors.New("upstream returned 503")
			}},
			wantErr: "upstream returned 503",
		},
		{
			name: "panic",
			adapter: &adapter.Func{AdapterName: "src", Fn: func(context.Context, string, map[string]any) (any, error) {
				panic("boom")
			}},
			wantErr: "adapter panic: boom",
		},
		{
			name:        "per-source timeout",
			adapter:     blocking("src"),
			cfg:         types.EngineConfig{Timeout: 20 * time.Millisecond, GlobalTimeout: time.Second},
			wantErr:     "timeout after 20ms",
			wantTimeout: true,
		},
		{
			name:        "global deadline",
			adapter:     blocking("src"),
			cfg:         types.EngineConfig{Timeout: time.Second, GlobalTimeout: 30 * time.Millisecond},
			wantErr:     "timeout after 30ms (global deadline)",
			wantTimeout: true,
		},
		{
			name: "ignores cancellation",
			adapter: &adapter.Func{AdapterName: "src", Fn: func(context.Context, string, map[string]any) (any, error) {
				time.Sleep(150 * time.Millisecond)
				return items("src", 1), nil
			}},
			cfg:         types.EngineConfig{Timeout: 20 * time.Millisecond, GlobalTimeout: time.Second},
			wantErr:     "timeout after 20ms",
			wantTimeout: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := New(adapter.NewRegistry(tt.adapter, returning("ok", items("ok", 1))), nil, tt.cfg)

			start := time.Now()
			res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"src", "ok"}})
			require.NoError(t, err)

			assert.Less(t, time.Since(start), 140*time.Millisecond+tt.cfg.Timeout)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, "src", res.Errors[0].Source)
			assert.Equal(t, tt.wantErr, res.Errors[0].Error)
			assert.Equal(t, tt.wantTimeout, res.Errors[0].IsTimeout)
			assert.Equal(t, []string{"ok"}, res.Completed)
			assert.True(t, res.Partial)
		})
	}
	// Let the abandoned sleeper finish before goleak checks.
	time.Sleep(150 * time.Millisecond)
}

func TestSearch_NotRegistered(t *testing.T) {
	eng := New(adapter.NewRegistry(), nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"missing"}})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, adapter.ErrNotRegistered.Error(), res.Errors[0].Error)
	assert.False(t, res.Errors[0].IsTimeout)
	assert.True(t, res.AllFailed())
	assert.Equal(t, []string{}, res.Completed)
}

func TestSearch_CancelledContext(t *testing.T) {
	eng := New(adapter.NewRegistry(returning("a", items("a", 1))), nil, types.EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Search(ctx, Request{Query: "q", Adapters: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "cancelled", res.Errors[0].Error)
	assert.False(t, res.Errors[0].IsTimeout)
}

func TestSearch_ConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	mk := func(name string) adapter.Adapter {
		return &adapter.Func{AdapterName: name, Fn: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return items(name, 1), nil
		}}
	}
	eng := New(adapter.NewRegistry(mk("a"), mk("b"), mk("c")), nil, types.EngineConfig{MaxConcurrency: 1})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, int32(1), peak.Load())
}

// --- request validation ---

func TestSearch_RequestErrors(t *testing.T) {
	store := profile.NewStore(filepath.Join(t.TempDir(), "profiles.yaml"))
	reg := adapter.NewRegistry(returning("a", items("a", 1)))

	tests := []struct {
		name     string
		profiles Profiles
		req      Request
		want     error
	}{
		{"empty query", store, Request{Query: "   ", Adapters: []string{"a"}}, ErrEmptyQuery},
		{"no adapters", store, Request{Query: "q"}, ErrNoAdapters},
		{"everything excluded", store, Request{Query: "q", Adapters: []string{"a"}, Exclude: []string{"a"}}, ErrNoAdapters},
		{"unknown profile", store, Request{Query: "q", Profile: "nope"}, profile.ErrNotFound},
		{"no store", nil, Request{Query: "q", Profile: "research"}, ErrNoProfiles},
		{"bad merge mode", store, Request{Query: "q", Adapters: []string{"a"}, Merge: "zipper"}, ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(reg, tt.profiles, types.EngineConfig{}).Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestSearch_ProfileCycleIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	store := profile.NewStore(path)
	require.NoError(t, store.Save(types.SearchProfile{Name: "a", Extends: "b", Connectors: []string{"x"}}))
	require.NoError(t, store.Save(types.SearchProfile{Name: "b", Extends: "a", Connectors: []string{"y"}}))

	_, err := New(adapter.NewRegistry(), store, types.EngineConfig{}).Search(context.Background(), Request{Query: "q", Profile: "a"})
	assert.ErrorIs(t, err, profile.ErrCycle)
}

func TestSearch_AddAndExclude(t *testing.T) {
	reg := adapter.NewRegistry(returning("a", items("a", 1)), returning("b", items("b", 1)), returning("c", items("c", 1)))
	profiles := staticProfiles{"p": {Connectors: []string{"a", "b"}}}

	res, err := New(reg, profiles, types.EngineConfig{}).Search(context.Background(), Request{
		Query: "q", Profile: "p", Exclude: []string{"a"}, Add: []string{"c", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, res.Completed)
}

func TestSearch_AdaptersExtendNamedProfile(t *testing.T) {
	reg := adapter.NewRegistry(returning("a", items("a", 1)), returning("b", items("b", 1)), returning("c", items("c", 1)))
	profiles := staticProfiles{"p": {Connectors: []string{"a"}}}

	res, err := New(reg, profiles, types.EngineConfig{}).Search(context.Background(), Request{
		Query: "q", Profile: "p", Adapters: []string{"c", "a"}, Add: []string{"b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "p", res.Profile)
	assert.Equal(t, []string{"a", "c", "b"}, res.Completed)
}

// --- parameters ---

func TestSearch_LimitPrecedence(t *testing.T) {
	profiles := staticProfiles{"p": {
		Connectors: []string{"a", "b"},
		Defaults:   types.SearchDefaults{Limit: 20, ResponseFormat: "concise"},
		Overrides: map[string]map[string]any{
			"a": {"limit": 5, "sort": "date", "query": "ignored"},
		},
	}}

	tests := []struct {
		name  string
		limit int
		wantA int
		wantB int
	}{
		{"profile default", 0, 5, 20},
		{"request limit", 7, 5, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recording{}
			reg := adapter.NewRegistry(rec.adapter("a"), rec.adapter("b"))
			_, err := New(reg, profiles, types.EngineConfig{}).Search(context.Background(), Request{Query: "q", Profile: "p", Limit: tt.limit})
			require.NoError(t, err)

			assert.Equal(t, tt.wantA, rec.args["a"]["limit"])
			assert.Equal(t, tt.wantB, rec.args["b"]["limit"])
			assert.Equal(t, "q", rec.args["a"]["query"])
			assert.Equal(t, "date", rec.args["a"]["sort"])
			assert.Equal(t, "concise", rec.args["b"]["response_format"])
			assert.NotContains(t, rec.args["b"], "sort")
		})
	}
}

func TestSearch_AdHocUsesEngineDefaults(t *testing.T) {
	rec := &recording{}
	eng := New(adapter.NewRegistry(rec.adapter("a")), nil, types.EngineConfig{DefaultLimit: 3})

	_, err := eng.Search(context.Background(), Request{Query: " q ", Adapters: []string{"a", "a"}})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.args["a"]["limit"])
	assert.Equal(t, "q", rec.args["a"]["query"])
}

// --- merging ---

func TestSearch_InterleavedScores(t *testing.T) {
	reg := adapter.NewRegistry(returning("a", items("a", 2)), returning("b", items("b", 2)))
	profiles := staticProfiles{"p": {
		Connectors: []string{"a", "b"},
		Weights:    map[string]float64{"b": 2.0},
		Defaults:   types.SearchDefaults{MergeMode: types.MergeInterleaved},
	}}

	res, err := New(reg, profiles, types.EngineConfig{}).Search(context.Background(), Request{Query: "q", Profile: "p"})
	require.NoError(t, err)

	assert.Equal(t, types.MergeInterleaved, res.MergeMode)
	assert.Nil(t, res.Sources)
	require.Len(t, res.Results, 4)
	assert.Equal(t, 4, res.TotalCount)

	var got []string
	var scores []float64
	for _, r := range res.Results {
		got = append(got, r.ID)
		require.NotNil(t, r.Federation.Score)
		scores = append(scores, *r.Federation.Score)
	}
	// b-2 and a-1 tie at 1.0; a is declared first.
	assert.Equal(t, []string{"b-1", "a-1", "b-2", "a-2"}, got)
	assert.Equal(t, []float64{2.0, 1.0, 1.0, 0.5}, scores)
}

func TestSearch_GroupedHasNoScore(t *testing.T) {
	eng := New(adapter.NewRegistry(returning("a", items("a", 2))), nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a"}})
	require.NoError(t, err)
	for _, r := range res.Sources[0].Results {
		assert.Nil(t, r.Federation.Score)
		assert.Equal(t, 1.0, r.Federation.Weight)
	}
}

func TestSearch_MergeOverride(t *testing.T) {
	eng := New(adapter.NewRegistry(returning("a", items("a", 2))), nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a"}, Merge: types.MergeInterleaved})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearch_URLDeduplication(t *testing.T) {
	shared := map[string]any{"id": "x", "title": "Shared", "url": "https://Example.com/paper/"}
	a := map[string]any{"results": []any{shared, map[string]any{"id": "a1", "title": "Only A", "url": "https://a.example/1"}}}
	b := map[string]any{"results": []any{map[string]any{"id": "y", "title": "Shared too", "url": "https://example.com/paper#abstract"}}}
	reg := adapter.NewRegistry(returning("a", a), returning("b", b))
	profiles := staticProfiles{"p": {
		Connectors:    []string{"a", "b"},
		Deduplication: &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupURL, Prefer: []string{"b", "a"}},
	}}

	res, err := New(reg, profiles, types.EngineConfig{}).Search(context.Background(), Request{Query: "q", Profile: "p"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, 1, res.Sources[0].Count)
	assert.Equal(t, "a1", res.Sources[0].Results[0].ID)
	assert.Equal(t, "y", res.Sources[1].Results[0].ID)
	assert.Equal(t, []string{"a:x"}, res.Sources[1].Results[0].Metadata[MetaAlsoFoundIn])
}

func TestSearch_RequestDeduplicationOverride(t *testing.T) {
	dup := map[string]any{"results": []any{map[string]any{"id": "1", "title": "T", "url": "https://same.example"}}}
	reg := adapter.NewRegistry(returning("a", dup), returning("b", dup))
	eng := New(reg, nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount, "ad-hoc searches do not deduplicate by default")

	res, err = eng.Search(context.Background(), Request{
		Query: "q", Adapters: []string{"a", "b"}, Deduplication: &types.DeduplicationConfig{Enabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Equal(t, "a", res.AllResults()[0].Source)
}

func TestSearch_RequestDeduplicationKeepsProfilePreference(t *testing.T) {
	dup := map[string]any{"results": []any{map[string]any{"id": "1", "title": "T", "url": "https://same.example", "doi": "10.1/t"}}}
	reg := adapter.NewRegistry(returning("a", dup), returning("b", dup))
	profiles := staticProfiles{"p": {
		Connectors:    []string{"a", "b"},
		Deduplication: &types.DeduplicationConfig{Strategy: types.DedupURL, Prefer: []string{"b"}},
	}}
	eng := New(reg, profiles, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{
		Query: "q", Profile: "p", Deduplication: &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupDOI},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Equal(t, "b", res.AllResults()[0].Source, "profile prefer list applies")

	res, err = eng.Search(context.Background(), Request{
		Query: "q", Profile: "p",
		Deduplication: &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupDOI, Prefer: []string{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", res.AllResults()[0].Source, "request prefer list wins")
}

func TestSearch_DOIDeduplicationSurvivesUnicodeURLs(t *testing.T) {
	odd := map[string]any{"results": []any{map[string]any{
		"id": "1", "title": "Odd", "url": "https://x" + strings.Repeat("Ⱥ", 12) + "/doi.org/10.1/x",
	}}}
	reg := adapter.NewRegistry(returning("a", odd), returning("b", items("b", 1)))

	var res *types.FederatedSearchResult
	require.NotPanics(t, func() {
		var err error
		res, err = New(reg, nil, types.EngineConfig{}).Search(context.Background(), Request{
			Query: "q", Adapters: []string{"a", "b"},
			Deduplication: &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupDOI},
		})
		require.NoError(t, err)
	})
	assert.Equal(t, 2, res.TotalCount)
	assert.Zero(t, res.DuplicatesRemoved)
}

func TestSearch_DurationsRecorded(t *testing.T) {
	eng := New(adapter.NewRegistry(delayed("a", 20*time.Millisecond, items("a", 1))), nil, types.EngineConfig{})

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a"}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Sources[0].DurationMS, int64(20))
	assert.GreaterOrEqual(t, res.DurationMS, res.Sources[0].DurationMS)
}

// --- recording and tracing ---

func TestSearch_Recorder(t *testing.T) {
	var got *types.FederatedSearchResult
	rec := recorderFunc(func(_ context.Context, r *types.FederatedSearchResult) error {
		got = r
		return errors.New("disk full")
	})
	eng := New(adapter.NewRegistry(returning("a", items("a", 1))), nil, types.EngineConfig{}, WithRecorder(rec))

	res, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a"}})
	require.NoError(t, err, "recorder failures do not fail the search")
	assert.Same(t, res, got)
}

func TestSearch_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reg := adapter.NewRegistry(returning("a", items("a", 1)), &adapter.Func{AdapterName: "b", Fn: func(context.Context, string, map[string]any) (any, error) {
		return nil, errors.New("nope")
	}})
	eng := New(reg, nil, types.EngineConfig{}, WithTracerProvider(tp))

	_, err := eng.Search(context.Background(), Request{Query: "q", Adapters: []string{"a", "b"}})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)

	byAdapter := make(map[string]sdktrace.ReadOnlySpan)
	var root sdktrace.ReadOnlySpan
	for _, s := range spans {
		switch s.Name() {
		case "federated.Search":
			root = s
		case "federated.source":
			for _, kv := range s.Attributes() {
				if kv.Key == "source.adapter" {
					byAdapter[kv.Value.AsString()] = s
				}
			}
		}
	}
	require.NotNil(t, root)
	require.Len(t, byAdapter, 2)
	assert.Equal(t, root.SpanContext().SpanID(), byAdapter["a"].Parent().SpanID())
	assert.Equal(t, codes.Unset, byAdapter["a"].Status().Code)
	assert.Equal(t, codes.Error, byAdapter["b"].Status().Code)
	assert.Equal(t, codes.Unset, root.Status().Code, "a partial search is not an error")
}
