// Package httpclient provides round trippers for outbound HTTP calls: per-call timeouts,
// a circuit breaker and OpenTelemetry instrumentation.
package httpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/producthub/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// serverStatusError marks a 5xx response so the breaker counts it as a failure.
type serverStatusError struct {
	code int
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.code)
}

// circuitBreakerTransport wraps calls in a circuit breaker.
// Transport errors and 5xx responses count as failures, other responses pass through untouched.
type circuitBreakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &serverStatusError{code: resp.StatusCode}
		}
		return resp, nil
	})
	var statusErr *serverStatusError
	if errors.As(err, &statusErr) {
		return resp, nil
	}
	return resp, err
}

// NewCircuitBreaker returns a round tripper that trips after cfg.ConsecutiveFailures consecutive failures
// or when the error rate exceeds cfg.ErrorRatePercent.
// Once open, calls fail with gobreaker.ErrOpenState until cfg.OpenTimeout elapses.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: max(cfg.HalfOpenRequests, 1),
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.TotalSuccesses+counts.TotalFailures > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.TotalSuccesses+counts.TotalFailures)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &circuitBreakerTransport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*http.Response](st),
	}
}
