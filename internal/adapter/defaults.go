// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"time"

	"github.com/pdiddy/dispatch-engine/internal/httputil"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// Default per-API request spacing.
const (
	DefaultArxivInterval    = 3 * time.Second
	DefaultSemanticInterval = time.Second
	DefaultOpenAlexInterval = 100 * time.Millisecond
	DefaultPatentsInterval  = 1500 * time.Millisecond
)

// Credentials holds the secrets the reference adapters read.
type Credentials struct {
	SemanticScholarAPIKey string
	OpenAlexEmail         string
	PatentsViewAPIKey     string
}

// NewDefaultRegistry builds the reference adapters. Each API gets its own
// client so one API's rate limit never delays another.
func NewDefaultRegistry(httpCfg types.HTTPConfig, adapters types.AdapterConfig, creds Credentials) *Registry {
	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := httpCfg.UserAgent
	if ua == "" {
		ua = "dispatch-engine/0.1"
	}

	arxivInterval := adapters.ArxivInterval
	if arxivInterval <= 0 {
		arxivInterval = DefaultArxivInterval
	}
	email := creds.OpenAlexEmail
	if email == "" {
		email = adapters.OpenAlexEmail
	}

	return NewRegistry(
		&Arxiv{Client: httputil.NewClient(timeout, ua, arxivInterval)},
		&SemanticScholar{
			Client: httputil.NewClient(timeout, ua, DefaultSemanticInterval),
			APIKey: creds.SemanticScholarAPIKey,
		},
		&OpenAlex{Client: httputil.NewClient(timeout, ua, DefaultOpenAlexInterval), Email: email},
		&PatentsView{Client: httputil.NewClient(timeout, ua, DefaultPatentsInterval), APIKey: creds.PatentsViewAPIKey},
		&Web{Client: httputil.NewClient(timeout, ua, 0)},
	)
}
