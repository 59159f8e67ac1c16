// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package federated fans one query out to every adapter of a search profile,
// tolerates partial failure, and merges the normalized results grouped by
// source or interleaved by weighted rank.
//
// Search returns an error only when the request itself is unusable: an
// unknown profile, an inheritance cycle, an empty query or no adapters.
// Adapter failures and timeouts are reported as data in the result's Errors
// and mark it Partial.
package federated

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/dispatch-engine/internal/adapter"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// DefaultMaxConcurrency caps simultaneous adapter calls per search.
const DefaultMaxConcurrency = 8

var (
	ErrNoAdapters  = errors.New("no adapters selected")
	ErrEmptyQuery  = errors.New("query is empty")
	ErrNoProfiles  = errors.New("no profile store configured")
	ErrInvalidMode = errors.New("unknown merge mode")
)

// Adapters looks up adapters by name. *adapter.Registry implements it.
type Adapters interface {
	Get(name string) (adapter.Adapter, bool)
}

// Profiles flattens named profiles. *profile.Store implements it.
type Profiles interface {
	Resolve(name string) (*types.ResolvedProfile, error)
}

// Recorder receives every completed search. The history store implements it.
type Recorder interface {
	Record(ctx context.Context, result *types.FederatedSearchResult) error
}

// Request describes one federated search. Either Profile or Adapters
// selects the sources; Add and Exclude adjust the selection afterwards.
type Request struct {
	Query    string
	Profile  string
	Adapters []string
	Add      []string
	Exclude  []string

	// Merge overrides the profile's merge mode when set.
	Merge types.MergeMode

	// Limit applies to every adapter without a per-adapter limit override.
	Limit int

	// Deduplication replaces the profile's settings when non-nil.
	Deduplication *types.DeduplicationConfig
}

// Engine runs federated searches. It holds no per-search state and is safe
// for concurrent use.
type Engine struct {
	adapters Adapters
	profiles Profiles
	cfg      types.EngineConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracerProvider sets the OpenTelemetry provider (default: global).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("github.com/pdiddy/dispatch-engine/internal/federated") }
}

// WithRecorder records every search after it completes.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New returns an Engine. profiles may be nil when only ad-hoc adapter lists
// are searched.
func New(adapters Adapters, profiles Profiles, cfg types.EngineConfig, opts ...Option) *Engine {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = types.DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultTimeoutMS * time.Millisecond
	}
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = types.DefaultGlobalTimeoutMS * time.Millisecond
	}
	e := &Engine{
		adapters: adapters,
		profiles: profiles,
		cfg:      cfg,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/pdiddy/dispatch-engine/internal/federated"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// outcome is one source's settled task. Each task writes only its own slot.
type outcome struct {
	source   string
	payload  any
	err      error
	timeout  bool
	duration time.Duration
}

// Search runs req against every selected adapter and merges the results.
func (e *Engine) Search(ctx context.Context, req Request) (*types.FederatedSearchResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "federated.Search", trace.WithAttributes(
		attribute.String("search.query", req.Query),
		attribute.String("search.profile", req.Profile),
	))
	defer span.End()

	result, err := e.search(ctx, req, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("search.total_count", result.TotalCount),
		attribute.Int("search.errors", len(result.Errors)),
		attribute.Bool("search.partial", result.Partial),
		attribute.Int("search.duplicates_removed", result.DuplicatesRemoved),
	)
	if result.AllFailed() {
		span.SetStatus(codes.Error, "all sources failed")
	}

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, result); err != nil {
			e.logger.Warn("recording search history failed", zap.Error(err))
		}
	}
	return result, nil
}

func (e *Engine) search(ctx context.Context, req Request, start time.Time) (*types.FederatedSearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	prof, err := e.selectProfile(req)
	if err != nil {
		return nil, err
	}
	if len(prof.Adapters) == 0 {
		return nil, ErrNoAdapters
	}

	mode := prof.Defaults.MergeMode
	if req.Merge != "" {
		mode = req.Merge
	}
	if mode == "" {
		mode = types.MergeGrouped
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	dedup := prof.Deduplication
	if req.Deduplication != nil {
		dedup = *req.Deduplication
		if dedup.Strategy == "" {
			dedup.Strategy = types.DedupURL
		}
		if len(dedup.Prefer) == 0 {
			dedup.Prefer = prof.Deduplication.Prefer
		}
	}

	e.logger.Debug("dispatching search",
		zap.String("query", query),
		zap.String("profile", prof.Name),
		zap.Strings("adapters", prof.Adapters),
		zap.Duration("timeout", prof.Timeout),
		zap.Duration("global_timeout", prof.GlobalTimeout),
	)

	outcomes := e.dispatch(ctx, query, req.Limit, prof)

	result := merge(query, prof, mode, dedup, outcomes)
	result.DurationMS = time.Since(start).Milliseconds()
	return result, nil
}

// selectProfile resolves the named profile or builds an ad-hoc one from the
// request's adapter list, then applies request-level add/exclude. With a
// named profile, Adapters are added to it like Add.
func (e *Engine) selectProfile(req Request) (*types.ResolvedProfile, error) {
	var prof *types.ResolvedProfile
	switch {
	case req.Profile != "":
		if e.profiles == nil {
			return nil, ErrNoProfiles
		}
		p, err := e.profiles.Resolve(req.Profile)
		if err != nil {
			return nil, err
		}
		prof = p
	default:
		prof = &types.ResolvedProfile{
			Defaults:      types.SearchDefaults{Limit: e.cfg.DefaultLimit, MergeMode: types.MergeGrouped},
			Timeout:       e.cfg.Timeout,
			GlobalTimeout: e.cfg.GlobalTimeout,
			Deduplication: types.DeduplicationConfig{Strategy: types.DedupURL},
		}
		prof.Adapters = appendUnique(nil, req.Adapters...)
	}

	if len(req.Exclude) > 0 {
		prof.Adapters = slices.DeleteFunc(slices.Clone(prof.Adapters), func(a string) bool {
			return slices.Contains(req.Exclude, a)
		})
	}
	if req.Profile != "" {
		prof.Adapters = appendUnique(prof.Adapters, req.Adapters...)
	}
	prof.Adapters = appendUnique(prof.Adapters, req.Add...)
	return prof, nil
}

// dispatch runs one task per adapter under a global deadline and returns
// the outcomes in profile order. It returns only after every task settles.
func (e *Engine) dispatch(ctx context.Context, query string, limit int, prof *types.ResolvedProfile) []outcome {
	gctx, cancel := context.WithTimeout(ctx, prof.GlobalTimeout)
	defer cancel()

	outcomes := make([]outcome, len(prof.Adapters))
	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, name := range prof.Adapters {
		args := buildParams(query, limit, prof, name)
		g.Go(func() error {
			outcomes[i] = e.runSource(gctx, name, args, prof)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// buildParams assembles an adapter's search arguments. A per-adapter limit
// override beats the request limit, which beats the profile default.
func buildParams(query string, limit int, prof *types.ResolvedProfile, name string) map[string]any {
	if _, ok := prof.Overrides[name]["limit"]; ok || limit <= 0 {
		limit = prof.LimitFor(name)
	}
	args := map[string]any{
		"query": query,
		"limit": limit,
	}
	if prof.Defaults.ResponseFormat != "" {
		args["response_format"] = prof.Defaults.ResponseFormat
	}
	for k, v := range prof.ParamsFor(name) {
		if k == "query" {
			continue
		}
		args[k] = v
	}
	return args
}

// runSource invokes one adapter under its per-source timeout.
func (e *Engine) runSource(ctx context.Context, name string, args map[string]any, prof *types.ResolvedProfile) (out outcome) {
	ctx, span := e.tracer.Start(ctx, "federated.source", trace.WithAttributes(
		attribute.String("source.adapter", name),
		attribute.Int("source.limit", asInt(args["limit"])),
	))
	defer span.End()

	start := time.Now()
	out.source = name

	defer func() {
		out.duration = time.Since(start)
		fields := []zap.Field{zap.String("adapter", name), zap.Duration("duration", out.duration)}
		if out.err != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
			span.SetAttributes(attribute.Bool("source.timeout", out.timeout))
			e.logger.Warn("source failed", append(fields, zap.Bool("timeout", out.timeout), zap.Error(out.err))...)
			return
		}
		e.logger.Debug("source completed", fields...)
	}()

	a, ok := e.adapters.Get(name)
	if !ok {
		out.err = adapter.ErrNotRegistered
		return out
	}

	// The slot may open only after the global deadline has passed.
	if ctx.Err() != nil {
		out.cancelled(ctx, prof.GlobalTimeout)
		return out
	}

	tctx, cancel := context.WithTimeout(ctx, prof.Timeout)
	defer cancel()

	payload, err := callAdapter(tctx, a, args)
	switch {
	case err != nil && tctx.Err() != nil:
		if ctx.Err() != nil {
			out.cancelled(ctx, prof.GlobalTimeout)
		} else {
			out.err = fmt.Errorf("timeout after %dms", prof.Timeout.Milliseconds())
			out.timeout = true
		}
	case err != nil:
		out.err = err
	default:
		out.payload = payload
	}
	return out
}

// cancelled records why the shared search context ended.
func (o *outcome) cancelled(ctx context.Context, global time.Duration) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		o.err = fmt.Errorf("timeout after %dms (global deadline)", global.Milliseconds())
		o.timeout = true
		return
	}
	o.err = errors.New("cancelled")
}

// callAdapter runs the adapter in its own goroutine so a call that ignores
// cancellation is abandoned at the deadline. The buffered channel lets the
// late reply be dropped without blocking.
func callAdapter(ctx context.Context, a adapter.Adapter, args map[string]any) (any, error) {
	type reply struct {
		payload any
		err     error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		p, err := a.Call(ctx, adapter.OpSearch, args)
		ch <- reply{payload: p, err: err}
	}()

	select {
	case r := <-ch:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func appendUnique(list []string, names ...string) []string {
	for _, n := range names {
		if n != "" && !slices.Contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}

func asInt(v any) int {
	if n, ok := v.(int); ok {
		return n
	}
	return 0
}
