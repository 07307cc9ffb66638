package payments

import (
	"seatflow/internal/shared/config"
	"seatflow/pkg/logger"
)

// NewFromConfig builds the configured authority wrapped in the breaker and retry policy
func NewFromConfig(cfg config.PaymentConfig) *Resilient {
	var inner Authority
	switch cfg.Provider {
	case "http":
		inner = NewHTTPAuthority(cfg, nil)
	default:
		logger.GetDefault().Warn("using mock payment authority", "auto_pay", cfg.MockAutoPay)
		inner = NewMockAuthority(cfg.BaseURL, cfg.MockAutoPay)
	}
	breaker := NewCircuitBreaker("payments", cfg.BreakerFailures, cfg.BreakerTimeout)
	return NewResilient(inner, breaker, cfg.MaxRetries, cfg.RetryBackoff)
}
