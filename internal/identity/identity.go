// Package identity decides the player id a client joins rooms with.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Strategy string

const (
	// Persisted reuses one id across sessions, stored in a file.
	Persisted Strategy = "persisted"
	// Ephemeral generates a new id per session.
	Ephemeral Strategy = "ephemeral"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Persisted:
		return Persisted, nil
	case Ephemeral:
		return Ephemeral, nil
	}
	return "", fmt.Errorf("unknown identity strategy %q", s)
}

// DefaultPath is where persisted ids live when no file is configured.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "towerattack", "identity"), nil
}

// Resolve returns the player id for the strategy. path is only used by
// Persisted; an empty path means DefaultPath.
func Resolve(s Strategy, path string) (string, error) {
	if s == Ephemeral {
		return uuid.NewString(), nil
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String(), nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read identity: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write identity: %w", err)
	}
	return id, nil
}
