// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/dispatch-engine/internal/httputil"
)

// openAlexSearchBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlex queries the OpenAlex Works API.
//
// Operation "search" {query, limit, from_date, to_date} returns
// {"results": [...], "total_count": n}.
type OpenAlex struct {
	Client *httputil.Client
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

func (o *OpenAlex) Name() string { return "openalex" }

func (o *OpenAlex) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	if operation != OpSearch {
		return nil, Unsupported(o.Name(), operation)
	}

	text := StringArg(args, "query")
	if text == "" {
		return nil, fmt.Errorf("openalex: empty query")
	}

	params := url.Values{
		"search":   {text},
		"per_page": {strconv.Itoa(min(IntArg(args, "limit", 10), 200))},
		"page":     {"1"},
	}

	var filters []string
	if from := StringArg(args, "from_date"); from != "" {
		filters = append(filters, "from_publication_date:"+from)
	}
	if to := StringArg(args, "to_date"); to != "" {
		filters = append(filters, "to_publication_date:"+to)
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	var oar openAlexResponse
	if err := o.Client.GetJSON(ctx, "OpenAlex", openAlexSearchBase+"?"+params.Encode(), nil, &oar); err != nil {
		return nil, err
	}

	out := openAlexResult{Results: make([]openAlexItem, 0, len(oar.Results)), TotalCount: oar.Meta.Count}
	for _, w := range oar.Results {
		out.Results = append(out.Results, w.item())
	}
	return ToPayload(out)
}

type openAlexResult struct {
	Results    []openAlexItem `json:"results"`
	TotalCount int            `json:"total_count"`
}

// openAlexItem is the flattened work shape the normalizer reads.
type openAlexItem struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	PublicationYear int      `json:"publication_year,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	URL             string   `json:"url,omitempty"`
	IsOA            bool     `json:"is_oa"`
	OAURL           string   `json:"oa_url,omitempty"`
}

func (w openAlexWork) item() openAlexItem {
	it := openAlexItem{
		ID:              w.ID,
		Title:           w.Title,
		Abstract:        reconstructAbstract(w.AbstractInvertedIndex),
		PublicationDate: w.PublicationDate,
		PublicationYear: w.PublicationYear,
		DOI:             strings.TrimPrefix(w.DOI, "https://doi.org/"),
		IsOA:            w.OpenAccess.IsOA,
		OAURL:           w.OpenAccess.OAURL,
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			it.Authors = append(it.Authors, a.Author.DisplayName)
		}
	}
	switch {
	case w.DOI != "":
		it.URL = w.DOI
	case w.OpenAccess.OAURL != "":
		it.URL = w.OpenAccess.OAURL
	default:
		it.URL = w.ID
	}
	return it
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The index maps each word to the positions it occupies.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count int `json:"count"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexOpenAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}
