// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/dispatch-engine/internal/httputil"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivMaxResults caps a single search page.
const arxivMaxResults = 100

// Arxiv queries the arXiv Atom API.
//
// Operations: "search" {query, limit, sort} and "get" {id}. Both return
// {"papers": [...], "total_results": n}.
type Arxiv struct {
	Client *httputil.Client
}

func (a *Arxiv) Name() string { return "arxiv" }

func (a *Arxiv) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	params := url.Values{}
	switch operation {
	case OpSearch:
		q := buildArxivQuery(StringArg(args, "query"))
		if q == "" {
			return nil, fmt.Errorf("arxiv: empty query")
		}
		limit := min(IntArg(args, "limit", 10), arxivMaxResults)
		sortBy := "relevance"
		if s := StringArg(args, "sort"); s == "date" || s == "submittedDate" {
			sortBy = "submittedDate"
		}
		params.Set("search_query", q)
		params.Set("start", "0")
		params.Set("max_results", strconv.Itoa(limit))
		params.Set("sortBy", sortBy)
		params.Set("sortOrder", "descending")
	case "get":
		id := strings.TrimPrefix(strings.TrimPrefix(StringArg(args, "id"), "arXiv:"), "arxiv:")
		if id == "" {
			return nil, fmt.Errorf("arxiv: id is required")
		}
		params.Set("id_list", id)
	default:
		return nil, Unsupported(a.Name(), operation)
	}

	resp, err := a.Client.Get(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{API: "arXiv", Code: resp.StatusCode}
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	out := arxivResult{Papers: []arxivPaper{}, TotalResults: feed.TotalResults}
	for _, entry := range feed.Entries {
		if p, ok := entry.paper(); ok {
			out.Papers = append(out.Papers, p)
		}
	}
	return ToPayload(out)
}

// buildArxivQuery ANDs every term of free text across all fields.
func buildArxivQuery(text string) string {
	terms := strings.Fields(text)
	for i, t := range terms {
		terms[i] = "all:" + t
	}
	return strings.Join(terms, " AND ")
}

type arxivResult struct {
	Papers       []arxivPaper `json:"papers"`
	TotalResults int          `json:"total_results"`
}

type arxivPaper struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	Published  string   `json:"published,omitempty"`
	Updated    string   `json:"updated,omitempty"`
	Categories []string `json:"categories,omitempty"`
	DOI        string   `json:"doi,omitempty"`
	URL        string   `json:"url"`
	PDFURL     string   `json:"pdf_url"`
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	TotalResults int          `xml:"totalResults"`
	Entries      []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Updated    string          `xml:"updated"`
	DOI        string          `xml:"doi"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func (e arxivEntry) paper() (arxivPaper, bool) {
	id := extractArxivID(e.ID)
	if id == "" {
		return arxivPaper{}, false
	}
	p := arxivPaper{
		ID:        id,
		Title:     collapseSpace(e.Title),
		Summary:   collapseSpace(e.Summary),
		Published: e.Published,
		Updated:   e.Updated,
		DOI:       strings.TrimSpace(e.DOI),
		URL:       "https://arxiv.org/abs/" + id,
		PDFURL:    "https://arxiv.org/pdf/" + id,
	}
	for _, au := range e.Authors {
		p.Authors = append(p.Authors, strings.TrimSpace(au.Name))
	}
	for _, c := range e.Categories {
		p.Categories = append(p.Categories, c.Term)
	}
	return p, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// collapseSpace joins the line-wrapped text arXiv returns.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
