// Package config loads settings from an optional .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrMissingRelay = errors.New("relay URL not configured (set TOWER_RELAY_URL)")

const (
	EnvRelayURL       = "TOWER_RELAY_URL"
	EnvIdentity       = "TOWER_IDENTITY"
	EnvIdentityFile   = "TOWER_IDENTITY_FILE"
	EnvLogLevel       = "TOWER_LOG_LEVEL"
	EnvLogFile        = "TOWER_LOG_FILE"
	EnvLogJSON        = "TOWER_LOG_JSON"
	EnvPort           = "PORT"
	EnvAllowedOrigins = "TOWER_ALLOWED_ORIGINS"
	EnvStompMinutes   = "TOWER_STOMP_MINUTES"
	EnvKothMinutes    = "TOWER_KOTH_MINUTES"
	EnvPlayerName     = "TOWER_PLAYER_NAME"

	DefaultPort = "8080"
)

// Config is everything the binaries read from the environment.
type Config struct {
	RelayURL       string
	Identity       string
	IdentityFile   string
	PlayerName     string
	LogLevel       string
	LogFile        string
	LogJSON        bool
	Port           string
	AllowedOrigins []string
	StompMinutes   int
	KothMinutes    int
}

// Load reads files (default ".env") if present, then the environment. A
// missing file is not an error; a malformed one is.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		RelayURL:     os.Getenv(EnvRelayURL),
		Identity:     getEnv(EnvIdentity, "persisted"),
		IdentityFile: os.Getenv(EnvIdentityFile),
		PlayerName:   os.Getenv(EnvPlayerName),
		LogLevel:     getEnv(EnvLogLevel, "info"),
		LogFile:      os.Getenv(EnvLogFile),
		Port:         getEnv(EnvPort, DefaultPort),
	}
	if v := os.Getenv(EnvAllowedOrigins); v != "" && v != "*" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	var err error
	if cfg.LogJSON, err = getBool(EnvLogJSON); err != nil {
		return Config{}, err
	}
	if cfg.StompMinutes, err = getInt(EnvStompMinutes); err != nil {
		return Config{}, err
	}
	if cfg.KothMinutes, err = getInt(EnvKothMinutes); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RequireRelay returns ErrMissingRelay when no relay URL is set.
func (c Config) RequireRelay() error {
	if strings.TrimSpace(c.RelayURL) == "" {
		return ErrMissingRelay
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
