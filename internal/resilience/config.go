package resilience

import (
	"time"

	"github.com/sells-group/poi-interlink/internal/config"
)

// FromOverpassConfig converts acquisition settings to a RetryConfig.
func FromOverpassConfig(cfg config.OverpassConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxTries > 0 {
		rc.MaxAttempts = cfg.MaxTries
	}
	if cfg.BackoffMs >= 0 {
		rc.Backoff = time.Duration(cfg.BackoffMs) * time.Millisecond
	}
	if cfg.TimeoutSecs > 0 {
		rc.BaseTimeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return rc
}

// FromBreakerThreshold builds a breaker config tripping after n consecutive failures.
func FromBreakerThreshold(n int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if n > 0 {
		cfg.FailureThreshold = n
	}
	return cfg
}
