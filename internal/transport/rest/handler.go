// Package rest exposes the catalog client over a local JSON API.
package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/abgdnv/producthub/internal/catalog"
	catalogerrors "github.com/abgdnv/producthub/internal/errors"
	"github.com/abgdnv/producthub/internal/service"
	"github.com/abgdnv/producthub/internal/stats"
	"github.com/abgdnv/producthub/pkg/web"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service service.CatalogService
	logger  *slog.Logger
}

// NewHandler creates a new Handler with the provided service.
func NewHandler(service service.CatalogService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the catalog client.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/", h.CurrentPage)
		r.Get("/search", h.Search)
		r.Post("/search", h.Search)
		r.Post("/refresh", h.Refresh)

		r.Route("/page", func(r chi.Router) {
			r.Put("/{page}", h.SetPage)
			r.Post("/next", h.NextPage)
			r.Post("/prev", h.PrevPage)
		})

		r.Get("/stats", h.Stats)
		r.Get("/chart/ratings", h.RatingChart)
		r.Get("/products/{id}/metadata", h.ProductMetadata)
	})

	r.Route("/api/v1/forms", func(r chi.Router) {
		r.Get("/", h.Forms)
		r.Put("/product", h.SetProductDraft)
		r.Put("/metadata", h.SetMetadataDraft)
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Put("/meta-data", h.UpdateMetadata)
	})

	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)
}

type searchRequest struct {
	Query string `json:"query"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// CurrentPage returns the current page view without calling the remote service.
func (h *Handler) CurrentPage(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	web.RespondJSON(w, mLogger, http.StatusOK, h.service.CurrentPage())
}

// Search replaces the result set with the matches for the query parameter or the JSON body.
// A failed search still answers 200: the failure is part of the view.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	req := searchRequest{Query: r.URL.Query().Get("query")}
	if r.Method == http.MethodPost && req.Query == "" {
		if !web.DecodeJSON(w, r, mLogger, &req, true) {
			return
		}
	}
	mLogger.DebugContext(r.Context(), "Received search request", "query", req.Query)
	view, err := h.service.Search(r.Context(), req.Query)
	if err != nil {
		mLogger.WarnContext(r.Context(), "Search ended in failed state", "query", req.Query, "error", err)
	}
	web.RespondJSON(w, mLogger, http.StatusOK, view)
}

// Refresh repeats the last search.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	view, err := h.service.Refresh(r.Context())
	if err != nil {
		mLogger.WarnContext(r.Context(), "Refresh ended in failed state", "error", err)
	}
	web.RespondJSON(w, mLogger, http.StatusOK, view)
}

// SetPage moves to the page in the path. Out of range pages leave the cursor unchanged.
func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	page, ok := web.ParsePathGte(r, w, mLogger, "page", 1)
	if !ok {
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, h.service.SetPage(page))
}

func (h *Handler) NextPage(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.service.NextPage())
}

func (h *Handler) PrevPage(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.service.PrevPage())
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.service.Stats())
}

func (h *Handler) RatingChart(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.service.RatingChart(stats.DefaultChartSize))
}

// ProductMetadata returns the four metadata cards of a product in the current result set.
func (h *Handler) ProductMetadata(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	id := r.PathValue("id")
	view, err := h.service.ProductMetadata(id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not in current result set", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product with ID "+id+" not found")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error building metadata view", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to build metadata view")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, view)
}

func (h *Handler) Forms(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.service.Forms())
}

// SetProductDraft stores an edit of the create-product form.
func (h *Handler) SetProductDraft(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	var draft catalog.ProductDraft
	if !web.DecodeJSON(w, r, mLogger, &draft, false) {
		return
	}
	h.service.SetProductDraft(draft)
	web.RespondJSON(w, mLogger, http.StatusOK, h.service.Forms())
}

// SetMetadataDraft stores an edit of the update-metadata form.
func (h *Handler) SetMetadataDraft(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	var draft catalog.MetadataDraft
	if !web.DecodeJSON(w, r, mLogger, &draft, false) {
		return
	}
	h.service.SetMetadataDraft(draft)
	web.RespondJSON(w, mLogger, http.StatusOK, h.service.Forms())
}

// CreateProduct submits the create-product form.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	var draft catalog.ProductDraft
	if !web.DecodeJSON(w, r, mLogger, &draft, false) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to create product", "title", draft.Title)
	if err := h.service.CreateProduct(r.Context(), draft); err != nil {
		h.respondWriteError(w, r, mLogger, err, service.MsgCreateFailed)
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "title", draft.Title)
	web.RespondJSON(w, mLogger, http.StatusCreated, messageResponse{Message: service.MsgProductAdded})
}

// UpdateMetadata submits the update-metadata form.
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	var draft catalog.MetadataDraft
	if !web.DecodeJSON(w, r, mLogger, &draft, false) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to update metadata", "product_id", draft.ProductID)
	if err := h.service.UpdateMetadata(r.Context(), draft); err != nil {
		h.respondWriteError(w, r, mLogger, err, service.MsgUpdateFailed)
		return
	}
	mLogger.InfoContext(r.Context(), "Metadata updated successfully", "product_id", draft.ProductID)
	web.RespondJSON(w, mLogger, http.StatusOK, messageResponse{Message: service.MsgMetadataUpdated})
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ReadyCheck answers 200 only when the remote catalog service is reachable.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	mLogger := h.logger
	if err := h.service.Ready(r.Context()); err != nil {
		mLogger.WarnContext(r.Context(), "Catalog service not ready", "error", err)
		web.RespondError(w, mLogger, http.StatusServiceUnavailable, "Catalog service unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) respondWriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var validationErr *catalogerrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		logger.WarnContext(r.Context(), "Validation failed", "field", validationErr.Field, "error", validationErr.Message)
		web.RespondError(w, logger, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, catalogerrors.ErrFormBusy):
		logger.WarnContext(r.Context(), "Form submission already in progress")
		web.RespondError(w, logger, http.StatusConflict, "Submission already in progress")
	default:
		logger.ErrorContext(r.Context(), "Catalog service write failed", "error", err)
		web.RespondError(w, logger, http.StatusBadGateway, catalogerrors.UserMessage(err, fallback))
	}
}
