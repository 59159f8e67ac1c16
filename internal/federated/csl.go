// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form,
// consumable by Pandoc and reference managers.
type CSLItem struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Author   []CSLName `yaml:"author,omitempty"`
	Abstract string    `yaml:"abstract,omitempty"`
	Issued   *CSLDate  `yaml:"issued,omitempty"`
	DOI      string    `yaml:"DOI,omitempty"`
	URL      string    `yaml:"URL,omitempty"`
	Source   string    `yaml:"source,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes every result, in display order, as a CSL-YAML list.
func FormatCSL(result *types.FederatedSearchResult, w io.Writer) error {
	all := result.AllResults()
	items := make([]CSLItem, len(all))
	for i, r := range all {
		items[i] = toCSLItem(r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(r types.UnifiedSearchResult) CSLItem {
	item := CSLItem{
		ID:       r.ID,
		Type:     "article",
		Title:    r.Title,
		Abstract: r.Snippet,
		URL:      r.URL,
		Source:   r.Source,
		DOI:      extractDOI(r),
	}
	for _, a := range authors(r.Metadata) {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if r.Timestamp != nil {
		t := r.Timestamp
		item.Issued = &CSLDate{DateParts: [][]int{{t.Year(), int(t.Month()), t.Day()}}}
	}
	return item
}

// authors reads the "authors" metadata field, which adapters emit either as
// a list of names or as a list of {"name": ...} objects.
func authors(meta map[string]any) []string {
	var names []string
	switch v := meta["authors"].(type) {
	case []string:
		names = v
	case []any:
		for _, a := range v {
			switch a := a.(type) {
			case string:
				names = append(names, a)
			case map[string]any:
				if n, ok := a["name"].(string); ok {
					names = append(names, n)
				}
			}
		}
	case string:
		for _, n := range strings.Split(v, ",") {
			names = append(names, strings.TrimSpace(n))
		}
	}
	return names
}

// parseAuthorName splits a full name on the last space: everything before is
// given, the last token is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
