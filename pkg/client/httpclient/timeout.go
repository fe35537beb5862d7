package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// timeoutTransport bounds each call, body read included.
type timeoutTransport struct {
	next    http.RoundTripper
	timeout time.Duration
}

func (t *timeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// NewTimeout returns a round tripper that applies timeout to the context of every request.
func NewTimeout(timeout time.Duration, next http.RoundTripper) http.RoundTripper {
	return &timeoutTransport{next: next, timeout: timeout}
}

// cancelOnClose releases the call context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
