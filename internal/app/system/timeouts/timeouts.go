// Package timeouts holds the request-scoped deadlines used by handlers.
//
// Tiers:
//   - Ping: health checks
//   - Short: single-document reads and writes
//   - Medium: list views, invitation sends, multi-step reads
//   - Long: transactional writes and cascade deletes
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// EnvPrefix prefixes the environment variables read by ConfigureFromEnv,
// e.g. TASKHUB_TIMEOUT_LONG=45s.
const EnvPrefix = "TASKHUB_TIMEOUT_"

var (
	mu     sync.RWMutex
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
)

func get(d *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *d
}

// Ping bounds health checks.
func Ping() time.Duration { return get(&ping) }

// Short bounds single-document operations.
func Short() time.Duration { return get(&short) }

// Medium bounds list views and multi-step reads.
func Medium() time.Duration { return get(&medium) }

// Long bounds transactions and cascades.
func Long() time.Duration { return get(&long) }

// Config holds timeout values. Zero values are ignored.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// Configure overrides the non-zero values of cfg. Call before serving.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range []struct {
		dst *time.Duration
		v   time.Duration
	}{{&ping, cfg.Ping}, {&short, cfg.Short}, {&medium, cfg.Medium}, {&long, cfg.Long}} {
		if f.v > 0 {
			*f.dst = f.v
		}
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping, short, medium, long = DefaultPing, DefaultShort, DefaultMedium, DefaultLong
}

// Current returns the active values.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Medium: medium, Long: long}
}

// ConfigureFromEnv reads TASKHUB_TIMEOUT_{PING,SHORT,MEDIUM,LONG} as Go
// durations. Unparseable or non-positive values are logged and skipped.
// Returns the number of values applied.
func ConfigureFromEnv(logger *zap.Logger) int {
	var cfg Config
	n := 0
	for _, f := range []struct {
		name string
		dst  *time.Duration
	}{{"PING", &cfg.Ping}, {"SHORT", &cfg.Short}, {"MEDIUM", &cfg.Medium}, {"LONG", &cfg.Long}} {
		key := EnvPrefix + f.name
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			if logger != nil {
				logger.Warn("ignoring invalid timeout", zap.String("env", key), zap.String("value", v))
			}
			continue
		}
		*f.dst = d
		n++
	}
	Configure(cfg)
	return n
}

// WithTimeout is context.WithTimeout whose cancel logs a warning when the
// deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete team")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
