// Package remote talks to the remote catalog service over HTTP/JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/abgdnv/producthub/internal/catalog"
	catalogerrors "github.com/abgdnv/producthub/internal/errors"
)

const (
	searchPath   = "/api/v1/search/product"
	createPath   = "/api/v1/product"
	metadataPath = "/api/v1/product/meta-data"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20
)

// CatalogAPI is the contract of the remote catalog service.
type CatalogAPI interface {
	// Search returns every product matching query in server order.
	// A response without a data field yields an empty slice.
	Search(ctx context.Context, query string) ([]catalog.Product, error)

	// CreateProduct submits a validated new product.
	CreateProduct(ctx context.Context, product catalog.ProductCreateDto) error

	// UpdateMetadata submits a validated metadata update.
	UpdateMetadata(ctx context.Context, update catalog.MetadataUpdateDto) error

	// Ping checks that the search endpoint answers.
	Ping(ctx context.Context) error
}

// Client implements CatalogAPI.
// Errors are *errors.ServiceError when the service sent a message and *errors.TransportError otherwise.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	searchLimit int
	logger      *slog.Logger
}

// NewClient creates a client for the service at baseURL. searchLimit is the page size
// requested on search, large enough to fetch the whole match set at once.
func NewClient(baseURL string, httpClient *http.Client, searchLimit int, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid catalog service URL '%s': %w", baseURL, err)
	}
	return &Client{
		baseURL:     u,
		httpClient:  httpClient,
		searchLimit: searchLimit,
		logger:      logger.With("component", "remote"),
	}, nil
}

type searchResponse struct {
	Data []catalog.Product `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Search fetches the whole match set: page 1 with the configured limit.
func (c *Client) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	body, err := c.do(ctx, http.MethodGet, c.searchURL(query, c.searchLimit), nil)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	var resp searchResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("search %q: %w", query, &catalogerrors.TransportError{Err: fmt.Errorf("decode response: %w", err)})
		}
	}
	if resp.Data == nil {
		return []catalog.Product{}, nil
	}
	return resp.Data, nil
}

// CreateProduct posts a new product.
func (c *Client) CreateProduct(ctx context.Context, product catalog.ProductCreateDto) error {
	if _, err := c.do(ctx, http.MethodPost, c.endpoint(createPath), product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// UpdateMetadata puts a metadata update.
func (c *Client) UpdateMetadata(ctx context.Context, update catalog.MetadataUpdateDto) error {
	if _, err := c.do(ctx, http.MethodPut, c.endpoint(metadataPath), update); err != nil {
		return fmt.Errorf("update metadata of %s: %w", update.ProductID, err)
	}
	return nil
}

// Ping issues the smallest possible search.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, c.searchURL("", 1), nil); err != nil {
		return fmt.Errorf("ping catalog service: %w", err)
	}
	return nil
}

func (c *Client) searchURL(query string, limit int) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	params.Set("limit", strconv.Itoa(limit))
	return c.endpoint(searchPath) + "?" + params.Encode()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &catalogerrors.TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "Calling catalog service", "method", method, "url", target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Catalog service unreachable", "method", method, "url", target, "error", err)
		return nil, &catalogerrors.TransportError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &catalogerrors.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	c.logger.WarnContext(ctx, "Catalog service rejected request", "method", method, "url", target, "status", resp.StatusCode)
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return nil, &catalogerrors.ServiceError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}
	return nil, &catalogerrors.TransportError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
}
