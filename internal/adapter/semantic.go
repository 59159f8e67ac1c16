// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/dispatch-engine/internal/httputil"
)

// semanticAPIBase is the Semantic Scholar Graph API paper endpoint.
// Declared as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,venue,citationCount,url"

// SemanticScholar queries the Semantic Scholar Graph API.
//
// Operations: "search" {query, limit, year} returning
// {"results": [...], "total_results": n}, and "get_paper" {paper_id}
// returning {"results": [paper]}. A paper_id beginning with "10." is
// looked up as a DOI.
type SemanticScholar struct {
	Client *httputil.Client
	APIKey string
}

func (s *SemanticScholar) Name() string { return "semantic-scholar" }

func (s *SemanticScholar) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	switch operation {
	case OpSearch:
		return s.search(ctx, args)
	case "get_paper":
		return s.getPaper(ctx, args)
	}
	return nil, Unsupported(s.Name(), operation)
}

func (s *SemanticScholar) headers() map[string]string {
	if s.APIKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": s.APIKey}
}

func (s *SemanticScholar) search(ctx context.Context, args map[string]any) (any, error) {
	q := StringArg(args, "query")
	if q == "" {
		return nil, fmt.Errorf("semantic-scholar: empty query")
	}
	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(min(IntArg(args, "limit", 10), 100))},
		"fields": {semanticFields},
	}
	if year := StringArg(args, "year"); year != "" {
		params.Set("year", year)
	}

	var sr semanticResponse
	if err := s.Client.GetJSON(ctx, "Semantic Scholar", semanticAPIBase+"/search?"+params.Encode(), s.headers(), &sr); err != nil {
		return nil, err
	}

	out := semanticResult{Results: make([]semanticItem, 0, len(sr.Data)), TotalResults: sr.Total}
	for _, p := range sr.Data {
		out.Results = append(out.Results, p.item())
	}
	return ToPayload(out)
}

func (s *SemanticScholar) getPaper(ctx context.Context, args map[string]any) (any, error) {
	id := StringArg(args, "paper_id")
	if id == "" {
		return nil, fmt.Errorf("semantic-scholar: paper_id is required")
	}
	if strings.HasPrefix(id, "10.") {
		id = "DOI:" + id
	}

	var p semanticPaper
	reqURL := semanticAPIBase + "/" + id + "?" + url.Values{"fields": {semanticFields}}.Encode()
	if err := s.Client.GetJSON(ctx, "Semantic Scholar", reqURL, s.headers(), &p); err != nil {
		return nil, err
	}
	return ToPayload(semanticResult{Results: []semanticItem{p.item()}})
}

type semanticResult struct {
	Results      []semanticItem `json:"results"`
	TotalResults int            `json:"total_results,omitempty"`
}

// semanticItem is the flattened paper shape the normalizer reads.
type semanticItem struct {
	PaperID         string   `json:"paperId"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Year            int      `json:"year,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Venue           string   `json:"venue,omitempty"`
	CitationCount   int      `json:"citationCount"`
	DOI             string   `json:"doi,omitempty"`
	ArxivID         string   `json:"arxiv_id,omitempty"`
	URL             string   `json:"url,omitempty"`
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	Venue           string              `json:"venue"`
	CitationCount   int                 `json:"citationCount"`
	URL             string              `json:"url"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

func (p semanticPaper) item() semanticItem {
	it := semanticItem{
		PaperID:         p.PaperID,
		Title:           p.Title,
		Abstract:        p.Abstract,
		Year:            p.Year,
		PublicationDate: p.PublicationDate,
		Venue:           p.Venue,
		CitationCount:   p.CitationCount,
		DOI:             p.ExternalIDs.DOI,
		ArxivID:         p.ExternalIDs.ArXiv,
		URL:             p.URL,
	}
	for _, a := range p.Authors {
		it.Authors = append(it.Authors, a.Name)
	}
	return it
}
