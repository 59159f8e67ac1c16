// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/dispatch-engine/internal/httputil"
)

// patentsViewSearchBase is the PatentsView patent search endpoint. Declared
// as a var so tests can substitute an httptest server.
var patentsViewSearchBase = "https://search.patentsview.org/api/v1/patent/"

// patentsViewFields lists the fields requested from the API.
var patentsViewFields = []string{
	"patent_id", "patent_title", "patent_abstract", "patent_date",
	"patent_type", "patent_num_claims", "inventors.inventor_name_last",
}

// OpGetPatent fetches one patent by number.
const OpGetPatent = "get_patent"

// patentNumber accepts "US7654321", "US7654321B2" and bare numbers.
var patentNumber = regexp.MustCompile(`^(?:US)?(\d{6,11})(?:[A-Z]\d{0,2})?$`)

// PatentsView queries the USPTO PatentsView search API.
//
// Operation "search" {query, limit, inventor, from_date, to_date} returns
// {"results": [...], "total_count": n}. Operation "get_patent" {id} returns
// the same shape with at most one result.
type PatentsView struct {
	Client *httputil.Client
	APIKey string
}

func (p *PatentsView) Name() string { return "patentsview" }

func (p *PatentsView) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	var (
		q     any
		limit int
	)
	switch operation {
	case OpSearch:
		text := StringArg(args, "query")
		if text == "" && StringArg(args, "inventor") == "" {
			return nil, fmt.Errorf("patentsview: empty query")
		}
		q = patentQuery(text, StringArg(args, "inventor"), StringArg(args, "from_date"), StringArg(args, "to_date"))
		limit = min(IntArg(args, "limit", 10), 1000)
	case OpGetPatent:
		m := patentNumber.FindStringSubmatch(strings.ToUpper(StringArg(args, "id")))
		if m == nil {
			return nil, fmt.Errorf("patentsview: invalid patent number %q", StringArg(args, "id"))
		}
		q = map[string]any{"patent_id": m[1]}
		limit = 1
	default:
		return nil, Unsupported(p.Name(), operation)
	}

	qJSON, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("patentsview: encoding query: %w", err)
	}
	fJSON, _ := json.Marshal(patentsViewFields)
	params := url.Values{
		"q": {string(qJSON)},
		"f": {string(fJSON)},
		"o": {fmt.Sprintf(`{"size":%d}`, limit)},
	}

	var headers map[string]string
	if p.APIKey != "" {
		headers = map[string]string{"X-Api-Key": p.APIKey}
	}
	var pvr patentsViewResponse
	if err := p.Client.GetJSON(ctx, "PatentsView", patentsViewSearchBase+"?"+params.Encode(), headers, &pvr); err != nil {
		return nil, err
	}

	out := patentResult{Results: make([]patentItem, 0, len(pvr.Patents)), TotalCount: pvr.Total}
	for _, pt := range pvr.Patents {
		out.Results = append(out.Results, pt.item())
	}
	return ToPayload(out)
}

// patentQuery builds the PatentsView query document. Conditions are
// combined with _and when more than one is present.
func patentQuery(text, inventor, from, to string) any {
	var conds []any
	if text != "" {
		conds = append(conds, map[string]any{"_or": []any{
			map[string]any{"_text_any": map[string]string{"patent_title": text}},
			map[string]any{"_text_any": map[string]string{"patent_abstract": text}},
		}})
	}
	if inventor != "" {
		conds = append(conds, map[string]any{"_contains": map[string]string{"inventors.inventor_name_last": inventor}})
	}
	if from != "" {
		conds = append(conds, map[string]any{"_gte": map[string]string{"patent_date": from}})
	}
	if to != "" {
		conds = append(conds, map[string]any{"_lte": map[string]string{"patent_date": to}})
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return map[string]any{"_and": conds}
}

type patentResult struct {
	Results    []patentItem `json:"results"`
	TotalCount int          `json:"total_count"`
}

type patentItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract,omitempty"`
	URL       string   `json:"url"`
	Date      string   `json:"date,omitempty"`
	Type      string   `json:"patent_type,omitempty"`
	NumClaims int      `json:"num_claims,omitempty"`
	Authors   []string `json:"authors,omitempty"`
}

type patentsViewResponse struct {
	Patents []patentsViewPatent `json:"patents"`
	Count   int                 `json:"count"`
	Total   int                 `json:"total_hits"`
}

type patentsViewPatent struct {
	PatentID       string                `json:"patent_id"`
	PatentTitle    string                `json:"patent_title"`
	PatentAbstract string                `json:"patent_abstract"`
	PatentDate     string                `json:"patent_date"`
	PatentType     string                `json:"patent_type"`
	NumClaims      int                   `json:"patent_num_claims"`
	Inventors      []patentsViewInventor `json:"inventors"`
}

type patentsViewInventor struct {
	InventorNameLast string `json:"inventor_name_last"`
}

func (pt patentsViewPatent) item() patentItem {
	id := "US" + pt.PatentID
	it := patentItem{
		ID:        id,
		Title:     strings.TrimSpace(pt.PatentTitle),
		Abstract:  strings.TrimSpace(pt.PatentAbstract),
		URL:       "https://patents.google.com/patent/" + id,
		Date:      pt.PatentDate,
		Type:      pt.PatentType,
		NumClaims: pt.NumClaims,
	}
	for _, inv := range pt.Inventors {
		if inv.InventorNameLast != "" {
			it.Authors = append(it.Authors, inv.InventorNameLast)
		}
	}
	return it
}
