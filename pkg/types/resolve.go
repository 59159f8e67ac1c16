// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ResolvedAction is the outcome of matching one input pattern: the adapter
// operation to invoke and the arguments extracted from the input.
type ResolvedAction struct {
	Adapter   string            `json:"adapter" yaml:"adapter"`
	Operation string            `json:"operation" yaml:"operation"`
	Arguments map[string]string `json:"arguments" yaml:"arguments"`

	// Confidence is in [0,1] and follows the pattern priority.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	Description string `json:"description" yaml:"description"`
	PatternID   string `json:"pattern_id" yaml:"pattern_id"`
	Priority    int    `json:"priority" yaml:"priority"`
}

// PatternInfo describes one resolver pattern for help output.
type PatternInfo struct {
	ID          string `json:"id" yaml:"id"`
	Adapter     string `json:"adapter" yaml:"adapter"`
	Operation   string `json:"operation" yaml:"operation"`
	Priority    int    `json:"priority" yaml:"priority"`
	Description string `json:"description" yaml:"description"`
	Example     string `json:"example" yaml:"example"`
}
