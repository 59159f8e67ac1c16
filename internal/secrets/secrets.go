// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads adapter credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key name and the
// trimmed contents are the value.
//
// Known keys: semantic-scholar-api-key, openalex-email, patentsview-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Key names read by the reference adapters.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
	PatentsViewAPIKey     = "patentsview-api-key"
)

// EnvPrefix is prepended to the upper-cased key when falling back to the
// environment (semantic-scholar-api-key → DISPATCH_ENGINE_SEMANTIC_SCHOLAR_API_KEY).
const EnvPrefix = "DISPATCH_ENGINE_"

// Secrets maps key names to values.
type Secrets map[string]string

// Lookup returns the file value for key, falling back to the environment.
func (s Secrets) Lookup(key string) string {
	if v := s[key]; v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(EnvName(key)))
}

// EnvName converts a key file name into its environment variable name.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Load reads all regular, non-hidden files in dir. A missing directory is
// not an error and yields an empty set. Unreadable files are logged and
// skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}
