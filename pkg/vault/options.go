package vault

import (
	"log/slog"
	"time"

	"github.com/loganmanery/cryptopack/internal/metrics"
	"github.com/loganmanery/cryptopack/internal/ratelimit"
	"github.com/loganmanery/cryptopack/pkg/signatures"
)

// Option configures a Vault
type Option func(*vaultConfig)

type vaultConfig struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.KeyLimiter
	keyBits int
	clock   func() time.Time
}

func defaultConfig() vaultConfig {
	return vaultConfig{
		keyBits: signatures.DefaultKeyBits,
		clock:   time.Now,
	}
}

// WithLogger sets the logger for vault events. The default discards them.
func WithLogger(logger *slog.Logger) Option {
	return func(c *vaultConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the counters the vault updates. The default creates its own.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *vaultConfig) {
		c.metrics = m
	}
}

// WithAuthRateLimit limits login attempts per username to rps per second with
// the given burst. Non-positive values disable throttling.
func WithAuthRateLimit(rps float64, burst int) Option {
	return func(c *vaultConfig) {
		c.limiter = ratelimit.New(rps, burst, ratelimit.DefaultIdleTTL)
	}
}

// WithKeyBits sets the RSA modulus size for new signing keys
func WithKeyBits(bits int) Option {
	return func(c *vaultConfig) {
		if bits > 0 {
			c.keyBits = bits
		}
	}
}

// withClock replaces time.Now in tests
func withClock(clock func() time.Time) Option {
	return func(c *vaultConfig) {
		c.clock = clock
	}
}
