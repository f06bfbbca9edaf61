package liveness

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const anonKeyFileName = "anon_key"

// LoadOrCreateAnonKey returns the stable anonymous session key for this
// client installation, generating and persisting one on first use. The key
// survives reconnects and restarts; only deleting the file rotates it.
// An empty dir resolves to the user config directory.
func LoadOrCreateAnonKey(dir string) (string, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "presence-service")
	}

	path := filepath.Join(dir, anonKeyFileName)
	if data, err := os.ReadFile(path); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}

	key := uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		return "", err
	}
	return key, nil
}
