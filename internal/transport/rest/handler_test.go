package rest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abgdnv/producthub/internal/cache"
	"github.com/abgdnv/producthub/internal/catalog"
	catalogerrors "github.com/abgdnv/producthub/internal/errors"
	"github.com/abgdnv/producthub/internal/service"
	"github.com/abgdnv/producthub/internal/stats"
	"github.com/abgdnv/producthub/internal/validation"
	"github.com/abgdnv/producthub/pkg/logger"
	"github.com/abgdnv/producthub/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockCatalogService is a mock implementation of the CatalogService interface
type mockCatalogService struct {
	view        service.PageView
	forms       service.FormState
	metadata    [4]stats.MetadataStat
	error       error
	lastQuery   string
	lastPage    int
	lastProduct catalog.ProductDraft
}

func (m *mockCatalogService) Search(_ context.Context, query string) (service.PageView, error) {
	m.lastQuery = query
	return m.view, m.error
}

func (m *mockCatalogService) Refresh(_ context.Context) (service.PageView, error) {
	return m.view, m.error
}

func (m *mockCatalogService) CurrentPage() service.PageView { return m.view }

func (m *mockCatalogService) SetPage(n int) service.PageView {
	m.lastPage = n
	return m.view
}

func (m *mockCatalogService) NextPage() service.PageView { return m.view }
func (m *mockCatalogService) PrevPage() service.PageView { return m.view }

func (m *mockCatalogService) CreateProduct(_ context.Context, draft catalog.ProductDraft) error {
	m.lastProduct = draft
	return m.error
}

func (m *mockCatalogService) UpdateMetadata(_ context.Context, _ catalog.MetadataDraft) error {
	return m.error
}

func (m *mockCatalogService) SetProductDraft(draft catalog.ProductDraft) { m.forms.Product = draft }

func (m *mockCatalogService) SetMetadataDraft(draft catalog.MetadataDraft) {
	m.forms.Metadata = draft
}

func (m *mockCatalogService) Forms() service.FormState { return m.forms }

func (m *mockCatalogService) Stats() stats.Overall {
	return stats.Overall{TotalProducts: 2, AvgRating: 4.5}
}

func (m *mockCatalogService) RatingChart(_ int) []stats.RatingBar { return []stats.RatingBar{} }

func (m *mockCatalogService) ProductMetadata(_ string) ([4]stats.MetadataStat, error) {
	return m.metadata, m.error
}

func (m *mockCatalogService) Ready(_ context.Context) error { return m.error }

func Test_Handler_CreateProduct(t *testing.T) {
	testCases := []struct {
		name         string
		mockService  *mockCatalogService
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - product created",
			mockService:  &mockCatalogService{},
			body:         `{"title":"iPhone 15","rating":"4.5"}`,
			expectedCode: http.StatusCreated,
			expectedBody: `{"message":"Product added"}`,
		},
		{
			name:         "Error - validation failed",
			mockService:  &mockCatalogService{error: &catalogerrors.ValidationError{Field: "title", Message: validation.MsgTitleRequired}},
			body:         `{}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Title is required"}`,
		},
		{
			name:         "Error - form busy",
			mockService:  &mockCatalogService{error: catalogerrors.ErrFormBusy},
			body:         `{}`,
			expectedCode: http.StatusConflict,
			expectedBody: `{"error":"Submission already in progress"}`,
		},
		{
			name:         "Error - server message passed through",
			mockService:  &mockCatalogService{error: &catalogerrors.ServiceError{StatusCode: http.StatusConflict, Message: "duplicate title"}},
			body:         `{}`,
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"error":"duplicate title"}`,
		},
		{
			name:         "Error - transport failure uses fallback",
			mockService:  &mockCatalogService{error: &catalogerrors.TransportError{Err: errors.New("connection refused")}},
			body:         `{}`,
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"error":"Failed to add product"}`,
		},
		{
			name:         "Error - malformed body",
			mockService:  &mockCatalogService{},
			body:         `{`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			handler := NewHandler(tc.mockService, discardLogger)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			// when
			handler.CreateProduct(rr, req)

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_Handler_UpdateMetadata(t *testing.T) {
	testCases := []struct {
		name         string
		mockService  *mockCatalogService
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - metadata updated",
			mockService:  &mockCatalogService{},
			expectedCode: http.StatusOK,
			expectedBody: `{"message":"Metadata updated successfully"}`,
		},
		{
			name:         "Error - status without message",
			mockService:  &mockCatalogService{error: &catalogerrors.TransportError{StatusCode: 500, Err: errors.New("Internal Server Error")}},
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"error":"Failed to update metadata"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			handler := NewHandler(tc.mockService, discardLogger)
			req := httptest.NewRequest(http.MethodPut, "/api/v1/products/meta-data", strings.NewReader(`{"productId":"p1","ram":"8GB"}`))
			rr := httptest.NewRecorder()

			// when
			handler.UpdateMetadata(rr, req)

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_Handler_Search(t *testing.T) {
	testCases := []struct {
		name          string
		method        string
		target        string
		body          string
		mockService   *mockCatalogService
		expectedQuery string
	}{
		{
			name:          "GET with query parameter",
			method:        http.MethodGet,
			target:        "/api/v1/catalog/search?query=iphone",
			mockService:   &mockCatalogService{view: service.PageView{State: cache.StateLoaded, Page: 1, TotalPages: 1}},
			expectedQuery: "iphone",
		},
		{
			name:          "POST with JSON body",
			method:        http.MethodPost,
			target:        "/api/v1/catalog/search",
			body:          `{"query":"pixel"}`,
			mockService:   &mockCatalogService{view: service.PageView{State: cache.StateLoaded, Page: 1, TotalPages: 1}},
			expectedQuery: "pixel",
		},
		{
			name:          "Failed search is still a view",
			method:        http.MethodGet,
			target:        "/api/v1/catalog/search?query=iphone",
			mockService:   &mockCatalogService{view: service.PageView{State: cache.StateFailed, Page: 1, TotalPages: 1, Error: "Failed to load products"}, error: errors.New("boom")},
			expectedQuery: "iphone",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			handler := NewHandler(tc.mockService, discardLogger)
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			// when
			handler.Search(rr, req)

			// then
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tc.expectedQuery, tc.mockService.lastQuery)
			assert.Contains(t, rr.Body.String(), `"state":"`+tc.mockService.view.State.String()+`"`)
		})
	}
}

func Test_Handler_SetPage(t *testing.T) {
	testCases := []struct {
		name         string
		page         string
		expectedCode int
		expectedPage int
	}{
		{name: "Success - valid page", page: "3", expectedCode: http.StatusOK, expectedPage: 3},
		{name: "Error - zero page", page: "0", expectedCode: http.StatusBadRequest},
		{name: "Error - not a number", page: "abc", expectedCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			mockService := &mockCatalogService{}
			handler := NewHandler(mockService, discardLogger)
			req := httptest.NewRequest(http.MethodPut, "/api/v1/catalog/page/"+tc.page, nil)
			req.SetPathValue("page", tc.page)
			rr := httptest.NewRecorder()

			// when
			handler.SetPage(rr, req)

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Equal(t, tc.expectedPage, mockService.lastPage)
		})
	}
}

func Test_Handler_ProductMetadata(t *testing.T) {
	testCases := []struct {
		name         string
		mockService  *mockCatalogService
		expectedCode int
	}{
		{
			name: "Success - metadata view",
			mockService: &mockCatalogService{metadata: [4]stats.MetadataStat{
				{Label: "RAM", Value: "8GB", Color: "#667eea"},
			}},
			expectedCode: http.StatusOK,
		},
		{
			name:         "Error - not in result set",
			mockService:  &mockCatalogService{error: catalogerrors.ErrProductNotFound},
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			handler := NewHandler(tc.mockService, discardLogger)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/p1/metadata", nil)
			req.SetPathValue("id", "p1")
			rr := httptest.NewRecorder()

			// when
			handler.ProductMetadata(rr, req)

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func Test_Handler_ReadyCheck(t *testing.T) {
	testCases := []struct {
		name         string
		error        error
		expectedCode int
	}{
		{name: "ready", expectedCode: http.StatusOK},
		{name: "not ready", error: errors.New("down"), expectedCode: http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			handler := NewHandler(&mockCatalogService{error: tc.error}, discardLogger)
			rr := httptest.NewRecorder()

			// when
			handler.ReadyCheck(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func Test_Handler_Routes(t *testing.T) {
	// given
	mockService := &mockCatalogService{view: service.PageView{State: cache.StateLoaded, Page: 2, TotalPages: 3}}
	mux := server.NewChiRouter(discardLogger)
	NewHandler(mockService, discardLogger).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	testCases := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{method: http.MethodGet, path: "/api/v1/catalog", code: http.StatusOK},
		{method: http.MethodPut, path: "/api/v1/catalog/page/2", code: http.StatusOK},
		{method: http.MethodPost, path: "/api/v1/catalog/page/next", code: http.StatusOK},
		{method: http.MethodPost, path: "/api/v1/catalog/page/prev", code: http.StatusOK},
		{method: http.MethodPost, path: "/api/v1/catalog/refresh", code: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/catalog/stats", code: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/catalog/chart/ratings", code: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/catalog/products/p1/metadata", code: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/forms", code: http.StatusOK},
		{method: http.MethodPut, path: "/api/v1/forms/product", body: `{"title":"x"}`, code: http.StatusOK},
		{method: http.MethodPut, path: "/api/v1/forms/metadata", body: `{"productId":"p1"}`, code: http.StatusOK},
		{method: http.MethodGet, path: "/healthz", code: http.StatusOK},
		{method: http.MethodDelete, path: "/api/v1/catalog", code: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			// given
			req, err := http.NewRequestWithContext(context.Background(), tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)

			// when
			resp, err := srv.Client().Do(req)

			// then
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
		})
	}
	assert.Equal(t, 2, mockService.lastPage)
	assert.Equal(t, "x", mockService.forms.Product.Title)
}

func Test_Handler_LogsRequestIDOnce(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(&buf, nil)))
	mux := server.NewChiRouter(log)
	NewHandler(&mockCatalogService{error: errors.New("down")}, log).RegisterRoutes(mux)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()

	// when
	mux.ServeHTTP(rr, req)

	// then
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, strings.Count(line, `"request_id"`), 1, line)
		if strings.Contains(line, "Catalog service not ready") {
			found = true
			assert.Equal(t, 1, strings.Count(line, `"request_id":"req-42"`), line)
			assert.Contains(t, line, `"component":"rest"`)
		}
	}
	assert.True(t, found, buf.String())
}
