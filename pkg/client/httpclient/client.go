package httpclient

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/producthub/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// New builds an http.Client for one upstream.
// Order from the caller's side: tracing, circuit breaker, timeout, network.
func New(name string, clientCfg config.HTTPClientConfig, cbCfg config.CircuitBreakerConfig, logger *slog.Logger) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	rt = NewTimeout(clientCfg.Timeout, rt)
	rt = NewCircuitBreaker(name, cbCfg, rt, logger)
	rt = otelhttp.NewTransport(rt)
	return &http.Client{Transport: rt}
}
