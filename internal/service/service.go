// Package service orchestrates the catalog client: it feeds the cache from the remote service,
// gates writes behind validation and keeps the two draft forms.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abgdnv/producthub/internal/cache"
	"github.com/abgdnv/producthub/internal/catalog"
	catalogerrors "github.com/abgdnv/producthub/internal/errors"
	"github.com/abgdnv/producthub/internal/remote"
	"github.com/abgdnv/producthub/internal/stats"
	"github.com/abgdnv/producthub/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	MsgLoadFailed      = "Failed to load products"
	MsgCreateFailed    = "Failed to add product"
	MsgUpdateFailed    = "Failed to update metadata"
	MsgProductAdded    = "Product added"
	MsgMetadataUpdated = "Metadata updated successfully"
)

// CatalogService defines the operations available to the presentation layer.
type CatalogService interface {
	// Search fetches every product matching query and replaces the cached result set.
	// A failed fetch leaves the cache empty in the failed state; the error is returned with the view.
	Search(ctx context.Context, query string) (PageView, error)

	// Refresh repeats Search with the last used query.
	Refresh(ctx context.Context) (PageView, error)

	// CurrentPage returns the current page view. It never calls the remote service.
	CurrentPage() PageView

	// SetPage moves to page n. Out of range values leave the cursor unchanged.
	SetPage(n int) PageView

	// NextPage and PrevPage move the cursor by one when possible.
	NextPage() PageView
	PrevPage() PageView

	// CreateProduct validates draft, submits it and refreshes the catalog on success.
	// Returns *errors.ValidationError, *errors.ServiceError, *errors.TransportError or ErrFormBusy.
	CreateProduct(ctx context.Context, draft catalog.ProductDraft) error

	// UpdateMetadata validates draft, submits the non-empty fields and refreshes the catalog on success.
	// Returns *errors.ValidationError, *errors.ServiceError, *errors.TransportError or ErrFormBusy.
	UpdateMetadata(ctx context.Context, draft catalog.MetadataDraft) error

	// SetProductDraft and SetMetadataDraft replace a draft and clear that form's error.
	SetProductDraft(draft catalog.ProductDraft)
	SetMetadataDraft(draft catalog.MetadataDraft)

	// Forms returns both drafts with their errors and busy flags.
	Forms() FormState

	// Stats summarizes the whole cached result set.
	Stats() stats.Overall

	// RatingChart returns up to n bars for the first cached products.
	RatingChart(n int) []stats.RatingBar

	// ProductMetadata returns the metadata view of a cached product.
	// Returns ErrProductNotFound if the product is not in the current result set.
	ProductMetadata(id string) ([4]stats.MetadataStat, error)

	// Ready reports whether the remote catalog service answers.
	Ready(ctx context.Context) error
}

// PageView is what the presentation layer renders for the product grid.
type PageView struct {
	State      cache.State       `json:"state"`
	Query      string            `json:"query"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	Total      int               `json:"total"`
	From       int               `json:"from"`
	To         int               `json:"to"`
	HasPrev    bool              `json:"hasPrev"`
	HasNext    bool              `json:"hasNext"`
	Items      []catalog.Product `json:"items"`
	Error      string            `json:"error,omitempty"`
}

// FormState holds the two draft forms.
type FormState struct {
	Product       catalog.ProductDraft  `json:"product"`
	ProductError  string                `json:"productError,omitempty"`
	Creating      bool                  `json:"creating"`
	Metadata      catalog.MetadataDraft `json:"metadata"`
	MetadataError string                `json:"metadataError,omitempty"`
	Updating      bool                  `json:"updating"`
}

// Options tune the service.
type Options struct {
	// SettleDelay is waited between a successful metadata update and the refresh.
	SettleDelay time.Duration
}

// Service implements CatalogService.
type Service struct {
	api       remote.CatalogAPI
	cache     *cache.CatalogCache
	validator *validation.Validator
	logger    *slog.Logger
	opts      Options

	mu            sync.Mutex
	productDraft  catalog.ProductDraft
	productErr    string
	metadataDraft catalog.MetadataDraft
	metadataErr   string

	creating atomic.Bool
	updating atomic.Bool

	tracer          trace.Tracer
	searchesCounter metric.Int64Counter
	writesCounter   metric.Int64Counter
}

// NewService creates a new instance of CatalogService.
func NewService(api remote.CatalogAPI, c *cache.CatalogCache, v *validation.Validator, logger *slog.Logger, opts Options) *Service {
	meter := otel.Meter("producthub")
	searchesCounter, err := meter.Int64Counter("catalog_searches", metric.WithDescription("Total number of catalog searches by outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_searches counter: %v", err))
	}
	writesCounter, err := meter.Int64Counter("catalog_writes", metric.WithDescription("Total number of catalog write attempts by operation and outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_writes counter: %v", err))
	}
	return &Service{
		api:             api,
		cache:           c,
		validator:       v,
		logger:          logger.With("component", "service"),
		opts:            opts,
		tracer:          otel.Tracer("producthub/service"),
		searchesCounter: searchesCounter,
		writesCounter:   writesCounter,
	}
}

// Search fetches the whole match set for query as one fenced replace.
func (s *Service) Search(ctx context.Context, query string) (PageView, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.search", trace.WithAttributes(attribute.String("catalog.query", query)))
	defer span.End()

	seq := s.cache.BeginFetch(query)
	products, err := s.api.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		if s.cache.FailFetch(seq, err) {
			s.countSearch(ctx, "failed")
			s.logger.WarnContext(ctx, "Search failed", "query", query, "error", err)
		} else {
			s.countSearch(ctx, "stale")
			s.logger.DebugContext(ctx, "Discarded stale search failure", "query", query, "error", err)
		}
		return s.CurrentPage(), err
	}

	if s.cache.CompleteFetch(seq, products) {
		s.countSearch(ctx, "ok")
		s.logger.DebugContext(ctx, "Search completed", "query", query, "count", len(products))
	} else {
		s.countSearch(ctx, "stale")
		s.logger.DebugContext(ctx, "Discarded stale search result", "query", query, "count", len(products))
	}
	span.SetAttributes(attribute.Int("catalog.results", len(products)))
	return s.CurrentPage(), nil
}

// Refresh repeats the query of the most recently started fetch.
func (s *Service) Refresh(ctx context.Context) (PageView, error) {
	return s.Search(ctx, s.cache.Query())
}

// CurrentPage builds the view from one cache snapshot.
func (s *Service) CurrentPage() PageView {
	snap := s.cache.Snapshot()
	view := PageView{
		State:      snap.State,
		Query:      snap.Query,
		Page:       snap.Page,
		TotalPages: snap.TotalPages,
		Total:      snap.Total,
		HasPrev:    snap.Page > 1,
		HasNext:    snap.Page < snap.TotalPages,
		Items:      snap.PageItems,
	}
	if snap.Total > 0 {
		view.From = (snap.Page-1)*s.cache.PageSize() + 1
		view.To = view.From + len(snap.PageItems) - 1
	}
	if snap.Err != nil {
		view.Error = catalogerrors.UserMessage(snap.Err, MsgLoadFailed)
	}
	return view
}

// SetPage moves the cursor to n when it is in range.
func (s *Service) SetPage(n int) PageView {
	s.cache.SetPage(n)
	return s.CurrentPage()
}

// NextPage moves one page forward when there is one.
func (s *Service) NextPage() PageView {
	s.cache.SetPage(s.cache.Page() + 1)
	return s.CurrentPage()
}

// PrevPage moves one page back when there is one.
func (s *Service) PrevPage() PageView {
	s.cache.SetPage(s.cache.Page() - 1)
	return s.CurrentPage()
}

// CreateProduct runs the create-product form submission.
func (s *Service) CreateProduct(ctx context.Context, draft catalog.ProductDraft) error {
	if !s.creating.CompareAndSwap(false, true) {
		return catalogerrors.ErrFormBusy
	}
	defer s.creating.Store(false)

	ctx, span := s.tracer.Start(ctx, "catalog.create_product")
	defer span.End()

	s.SetProductDraft(draft)
	dto, err := s.validator.ValidateNewProduct(draft)
	if err != nil {
		s.setProductError(catalogerrors.UserMessage(err, MsgCreateFailed))
		s.countWrite(ctx, "create", "invalid")
		return err
	}

	if err := s.api.CreateProduct(ctx, dto); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		s.setProductError(catalogerrors.UserMessage(err, MsgCreateFailed))
		s.countWrite(ctx, "create", writeOutcome(err))
		s.logger.WarnContext(ctx, "Product creation failed", "title", dto.Title, "error", err)
		return err
	}
	s.countWrite(ctx, "create", "ok")
	s.logger.InfoContext(ctx, "Product created", "title", dto.Title)

	s.refreshAfterWrite(ctx)
	s.mu.Lock()
	s.productDraft = catalog.ProductDraft{}
	s.productErr = ""
	s.mu.Unlock()
	return nil
}

// UpdateMetadata runs the metadata form submission. The form stays busy until the refresh ends.
func (s *Service) UpdateMetadata(ctx context.Context, draft catalog.MetadataDraft) error {
	if !s.updating.CompareAndSwap(false, true) {
		return catalogerrors.ErrFormBusy
	}
	defer s.updating.Store(false)

	ctx, span := s.tracer.Start(ctx, "catalog.update_metadata")
	defer span.End()

	s.SetMetadataDraft(draft)
	dto, err := s.validator.ValidateMetadata(draft)
	if err != nil {
		s.setMetadataError(catalogerrors.UserMessage(err, MsgUpdateFailed))
		s.countWrite(ctx, "update_metadata", "invalid")
		return err
	}
	span.SetAttributes(attribute.String("catalog.product_id", dto.ProductID))

	if err := s.api.UpdateMetadata(ctx, dto); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		s.setMetadataError(catalogerrors.UserMessage(err, MsgUpdateFailed))
		s.countWrite(ctx, "update_metadata", writeOutcome(err))
		s.logger.WarnContext(ctx, "Metadata update failed", "product_id", dto.ProductID, "error", err)
		return err
	}
	s.countWrite(ctx, "update_metadata", "ok")
	s.logger.InfoContext(ctx, "Metadata updated", "product_id", dto.ProductID)

	if s.opts.SettleDelay > 0 {
		timer := time.NewTimer(s.opts.SettleDelay)
		<-timer.C
	}
	s.refreshAfterWrite(ctx)
	s.mu.Lock()
	s.metadataDraft = catalog.MetadataDraft{}
	s.metadataErr = ""
	s.mu.Unlock()
	return nil
}

// refreshAfterWrite reloads the catalog. The write already succeeded, so a failed reload only shows in the view.
func (s *Service) refreshAfterWrite(ctx context.Context) {
	if _, err := s.Refresh(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "Refresh after write failed", "error", err)
	}
}

func (s *Service) SetProductDraft(draft catalog.ProductDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productDraft = draft
	s.productErr = ""
}

func (s *Service) SetMetadataDraft(draft catalog.MetadataDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataDraft = draft
	s.metadataErr = ""
}

func (s *Service) setProductError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productErr = msg
}

func (s *Service) setMetadataError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataErr = msg
}

// Forms returns a copy of both forms.
func (s *Service) Forms() FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormState{
		Product:       s.productDraft,
		ProductError:  s.productErr,
		Creating:      s.creating.Load(),
		Metadata:      s.metadataDraft,
		MetadataError: s.metadataErr,
		Updating:      s.updating.Load(),
	}
}

func (s *Service) Stats() stats.Overall {
	return stats.OverallStats(s.cache.Items())
}

func (s *Service) RatingChart(n int) []stats.RatingBar {
	return stats.TopRatingsForChart(s.cache.Items(), n)
}

func (s *Service) ProductMetadata(id string) ([4]stats.MetadataStat, error) {
	product, ok := s.cache.Find(id)
	if !ok {
		return [4]stats.MetadataStat{}, fmt.Errorf("product %s: %w", id, catalogerrors.ErrProductNotFound)
	}
	return stats.MetadataView(product), nil
}

func (s *Service) Ready(ctx context.Context) error {
	return s.api.Ping(ctx)
}

func (s *Service) countSearch(ctx context.Context, outcome string) {
	s.searchesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *Service) countWrite(ctx context.Context, operation, outcome string) {
	s.writesCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func writeOutcome(err error) string {
	var serviceErr *catalogerrors.ServiceError
	if errors.As(err, &serviceErr) {
		return "rejected"
	}
	return "failed"
}
