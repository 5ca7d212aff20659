// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads NCBI credentials from a .env file and from a
// directory of plain-text files. In the directory each file is one secret:
// the filename is the key name and the trimmed contents are the value.
//
// Recognised key files: ncbi-api-key, contact-email.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/pdiddy/litmine/pkg/types"
)

// Key file names.
const (
	NCBIAPIKey   = "ncbi-api-key"
	ContactEmail = "contact-email"
)

// LoadEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads every file in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills unset NCBI credentials in cfg from secrets. Values already
// present in cfg, from the config file or the environment, win.
func Apply(cfg *types.Config, secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = secrets[key]
		}
	}
	fill(&cfg.Search.APIKey, NCBIAPIKey)
	fill(&cfg.Fulltext.APIKey, NCBIAPIKey)
	fill(&cfg.Search.Email, ContactEmail)
	fill(&cfg.Fulltext.Email, ContactEmail)
}
