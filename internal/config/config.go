// Package config resolves crosspack's runtime configuration from the
// environment, following the same validated-getter-with-stderr-warning
// pattern used throughout this codebase rather than scattering os.Getenv
// calls across subsystems.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

const (
	envHome        = "CROSSPACK_HOME"
	envHTTPTimeout = "CROSSPACK_HTTP_TIMEOUT"
	envCacheTTL    = "CROSSPACK_CACHE_TTL"

	defaultHTTPTimeout = 30 * time.Second
	minHTTPTimeout     = 1 * time.Second
	maxHTTPTimeout     = 10 * time.Minute

	defaultCacheTTL = 24 * time.Hour
	minCacheTTL     = 0
	maxCacheTTL     = 30 * 24 * time.Hour
)

// Config holds crosspack's resolved runtime settings.
type Config struct {
	// Prefix is the root of the per-user install tree (see internal/layout).
	Prefix string

	// HTTPTimeout is resolved from CROSSPACK_HTTP_TIMEOUT. internal/fetch
	// does not read it; its client uses its own fixed timeouts.
	HTTPTimeout time.Duration

	// CacheTTL is resolved from CROSSPACK_CACHE_TTL. No command consults it;
	// resolution always reads the current snapshot, whatever its age.
	CacheTTL time.Duration
}

// DefaultHomeOverride lets tests pin a prefix without touching the process
// environment.
var DefaultHomeOverride string

// Load resolves Config from the environment.
func Load() (*Config, error) {
	prefix, err := resolvePrefix()
	if err != nil {
		return nil, err
	}

	return &Config{
		Prefix:      prefix,
		HTTPTimeout: getDurationEnv(envHTTPTimeout, defaultHTTPTimeout, minHTTPTimeout, maxHTTPTimeout),
		CacheTTL:    getDurationEnv(envCacheTTL, defaultCacheTTL, minCacheTTL, maxCacheTTL),
	}, nil
}

// resolvePrefix implements the default-prefix resolution of §4.7:
// CROSSPACK_HOME, else $LOCALAPPDATA/Crosspack on Windows, else
// $HOME/.crosspack.
func resolvePrefix() (string, error) {
	if DefaultHomeOverride != "" {
		return DefaultHomeOverride, nil
	}
	if v := os.Getenv(envHome); v != "" {
		return v, nil
	}

	if runtime.GOOS == "windows" {
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			return "", fmt.Errorf("LOCALAPPDATA is not set; cannot resolve Windows user prefix")
		}
		return appData + string(os.PathSeparator) + "Crosspack", nil
	}

	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("HOME is not set; cannot resolve user prefix")
	}
	return home + string(os.PathSeparator) + ".crosspack", nil
}

// getDurationEnv parses a duration from the environment. On invalid or
// out-of-range (outside [min,max]) input it warns to stderr and returns the
// default rather than failing the whole configuration load.
func getDurationEnv(key string, def, min, max time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		// Accept a bare integer as seconds, matching common shell usage.
		if secs, convErr := strconv.Atoi(raw); convErr == nil {
			d = time.Duration(secs) * time.Second
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using default %s\n", key, raw, def)
			return def
		}
	}

	if d < min || d > max {
		fmt.Fprintf(os.Stderr, "warning: %s=%s out of range [%s,%s], using default %s\n", key, d, min, max, def)
		return def
	}
	return d
}
