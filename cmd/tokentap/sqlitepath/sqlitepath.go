// Package sqlitepath locates the SQLite metrics database for read-only
// commands when none is configured explicitly.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the database file name looked up in candidate directories.
const DefaultFile = "metrics.db"

// ResolveSQLitePath returns override when set, then TOKENTAP_SQLITE, then the
// first existing candidate file.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("TOKENTAP_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find tokentap SQLite database; pass --sqlite or --postgres")
}

// sqliteCandidates lists lookup locations, most specific first.
func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".tokentap", DefaultFile),
		"tokentap.db",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".tokentap", DefaultFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "tokentap", DefaultFile))
	}

	return candidates
}
