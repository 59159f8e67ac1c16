// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// QueryFile is a saved search: the request that produced it and the merged
// result. A saved file can be re-displayed or re-run later.
type QueryFile struct {
	Request QueryParams                  `yaml:"request"`
	Result  *types.FederatedSearchResult `yaml:"result,omitempty"`
	SavedAt time.Time                    `yaml:"saved_at"`
}

// QueryParams is the serializable form of a Request.
type QueryParams struct {
	Query         string                     `yaml:"query"`
	Profile       string                     `yaml:"profile,omitempty"`
	Adapters      []string                   `yaml:"adapters,omitempty"`
	Add           []string                   `yaml:"add,omitempty"`
	Exclude       []string                   `yaml:"exclude,omitempty"`
	Merge         types.MergeMode            `yaml:"merge,omitempty"`
	Limit         int                        `yaml:"limit,omitempty"`
	Deduplication *types.DeduplicationConfig `yaml:"deduplication,omitempty"`
}

// ParamsFromRequest captures req for saving.
func ParamsFromRequest(req Request) QueryParams {
	return QueryParams{
		Query:         req.Query,
		Profile:       req.Profile,
		Adapters:      req.Adapters,
		Add:           req.Add,
		Exclude:       req.Exclude,
		Merge:         req.Merge,
		Limit:         req.Limit,
		Deduplication: req.Deduplication,
	}
}

// ToRequest converts stored parameters back into a Request.
func (p QueryParams) ToRequest() Request {
	return Request{
		Query:         p.Query,
		Profile:       p.Profile,
		Adapters:      p.Adapters,
		Add:           p.Add,
		Exclude:       p.Exclude,
		Merge:         p.Merge,
		Limit:         p.Limit,
		Deduplication: p.Deduplication,
	}
}

// WriteQueryFile saves a request and its result to a YAML file.
func WriteQueryFile(path string, req Request, result *types.FederatedSearchResult) error {
	qf := QueryFile{
		Request: ParamsFromRequest(req),
		Result:  result,
		SavedAt: time.Now().UTC(),
	}
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	if qf.Request.Query == "" {
		return nil, fmt.Errorf("query file %s: %w", path, ErrEmptyQuery)
	}
	return &qf, nil
}
