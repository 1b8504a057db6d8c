// Package server implements the HTTP API of the search core: index
// lifecycle, settings, document CRUD, ranked search, federated multi-search,
// and statistics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackroad/searchcore/internal/analytics"
	"github.com/blackroad/searchcore/internal/engine"
	"github.com/blackroad/searchcore/internal/engine/cache"
	"github.com/blackroad/searchcore/internal/engine/value"
	apperrors "github.com/blackroad/searchcore/pkg/errors"
	"github.com/blackroad/searchcore/pkg/logger"
	"github.com/blackroad/searchcore/pkg/metrics"
)

// Handler implements the consumer-facing HTTP endpoints. The cache,
// collector, and metrics collaborators are optional; a nil collaborator
// disables that concern.
type Handler struct {
	engine    *engine.Engine
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	maxLimit  int
	logger    *slog.Logger
}

// New creates a Handler over the given engine.
func New(eng *engine.Engine, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, maxLimit int) *Handler {
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	return &Handler{
		engine:    eng,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		maxLimit:  maxLimit,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

type createIndexRequest struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primary_key"`
	Name       string `json:"name"`
}

// CreateIndex handles POST /indexes.
func (h *Handler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}
	if req.UID == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "uid is required"))
		return
	}
	if req.PrimaryKey == "" {
		req.PrimaryKey = "id"
	}
	idx, err := h.engine.CreateIndex(r.Context(), req.UID, req.PrimaryKey, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, idx)
}

// ListIndexes handles GET /indexes.
func (h *Handler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.ListIndexes())
}

// GetIndex handles GET /indexes/{uid}.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := h.engine.GetIndex(r.PathValue("uid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, idx)
}

type attrsRequest struct {
	Attributes []string `json:"attributes"`
}

// SetSearchableAttrs handles PUT /indexes/{uid}/settings/searchable-attributes.
func (h *Handler) SetSearchableAttrs(w http.ResponseWriter, r *http.Request) {
	h.setAttrs(w, r, h.engine.SetSearchableAttrs)
}

// SetFilterableAttrs handles PUT /indexes/{uid}/settings/filterable-attributes.
func (h *Handler) SetFilterableAttrs(w http.ResponseWriter, r *http.Request) {
	h.setAttrs(w, r, h.engine.SetFilterableAttrs)
}

// SetSortableAttrs handles PUT /indexes/{uid}/settings/sortable-attributes.
func (h *Handler) SetSortableAttrs(w http.ResponseWriter, r *http.Request) {
	h.setAttrs(w, r, h.engine.SetSortableAttrs)
}

func (h *Handler) setAttrs(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, uid string, attrs []string) error) {
	var req attrsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}
	uid := r.PathValue("uid")
	if err := set(r.Context(), uid, req.Attributes); err != nil {
		h.writeError(w, r, err)
		return
	}
	idx, err := h.engine.GetIndex(uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, idx)
}

// AddDocuments handles POST /indexes/{uid}/documents.
func (h *Handler) AddDocuments(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var docs []value.Document
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid document batch: %v", err))
		return
	}
	count, err := h.engine.AddDocuments(r.Context(), uid, docs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.afterWrite(r, uid)
	if h.metrics != nil {
		h.metrics.DocsIndexedTotal.WithLabelValues(uid).Add(float64(count))
	}
	if h.collector != nil {
		h.collector.TrackIngest(analytics.IngestEvent{
			Type:      analytics.EventIngest,
			IndexUID:  uid,
			Count:     count,
			Timestamp: time.Now().UTC(),
		})
	}
	h.writeJSON(w, http.StatusAccepted, map[string]int{"ingested": count})
}

// GetDocument handles GET /indexes/{uid}/documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok, err := h.engine.GetDocument(r.PathValue("uid"), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %q not found", r.PathValue("id")))
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument handles PATCH /indexes/{uid}/documents/{id}.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	docID := r.PathValue("id")
	var partial value.Document
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid partial document: %v", err))
		return
	}
	if err := h.engine.UpdateDocument(r.Context(), uid, docID, partial); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.afterWrite(r, uid)
	doc, _, err := h.engine.GetDocument(uid, docID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /indexes/{uid}/documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := h.engine.DeleteDocument(r.Context(), uid, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.afterWrite(r, uid)
	if h.metrics != nil {
		h.metrics.DocsDeletedTotal.WithLabelValues(uid).Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Query   string         `json:"q"`
	Filters value.Document `json:"filters"`
	Facets  []string       `json:"facets"`
	Sort    []string       `json:"sort"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func (req searchRequest) params(maxLimit int) engine.SearchParams {
	limit := req.Limit
	if limit > maxLimit {
		limit = maxLimit
	}
	return engine.SearchParams{
		Query:   req.Query,
		Filters: req.Filters,
		Facets:  req.Facets,
		Sort:    req.Sort,
		Limit:   limit,
		Offset:  req.Offset,
	}
}

// Search handles POST /indexes/{uid}/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	uid := r.PathValue("uid")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid search request: %v", err))
		return
	}
	params := req.params(h.maxLimit)

	var result *engine.Result
	var err error
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, uid, params, func() (*engine.Result, error) {
			return h.engine.Search(ctx, uid, params)
		})
	} else {
		result, err = h.engine.Search(ctx, uid, params)
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues(uid, "error").Inc()
		}
		h.writeError(w, r, err)
		return
	}

	latency := time.Since(start)
	h.observeSearch(uid, result, cacheHit, latency)

	log.Info("search completed",
		"index", uid,
		"query", req.Query,
		"total", result.Total,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

type multiSearchRequest struct {
	Queries []multiSearchQuery `json:"queries"`
}

type multiSearchQuery struct {
	IndexUID string `json:"index_uid"`
	searchRequest
}

// MultiSearch handles POST /multi-search.
func (h *Handler) MultiSearch(w http.ResponseWriter, r *http.Request) {
	var req multiSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid multi-search request: %v", err))
		return
	}
	queries := make([]engine.SearchQuery, len(req.Queries))
	for i, q := range req.Queries {
		queries[i] = engine.SearchQuery{
			IndexUID:     q.IndexUID,
			SearchParams: q.params(h.maxLimit),
		}
	}
	results, err := h.engine.MultiSearch(r.Context(), queries)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// IndexStats handles GET /indexes/{uid}/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context(), r.PathValue("uid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// AggregateStats handles GET /stats.
func (h *Handler) AggregateStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.AggregateStats())
}

// CacheStats handles GET /cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"hits":    hits,
		"misses":  misses,
	})
}

// afterWrite drops cached results of the index and refreshes its document
// counter gauge after any mutation.
func (h *Handler) afterWrite(r *http.Request, uid string) {
	if h.metrics != nil {
		if idx, err := h.engine.GetIndex(uid); err == nil {
			h.metrics.IndexDocumentCount.WithLabelValues(uid).Set(float64(idx.TotalDocuments))
		}
	}
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(r.Context(), uid); err != nil {
		h.logger.Error("cache invalidation failed", "index", uid, "error", err)
	}
}

func (h *Handler) observeSearch(uid string, result *engine.Result, cacheHit bool, latency time.Duration) {
	if h.collector != nil {
		eventType := analytics.EventSearch
		if result.Total == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.TrackSearch(analytics.SearchEvent{
			Type:      eventType,
			IndexUID:  uid,
			Query:     result.Query,
			Total:     result.Total,
			Returned:  len(result.Hits),
			LatencyMs: float64(latency.Microseconds()) / 1000.0,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
		})
	}
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if result.Total == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(uid, resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Hits)))
	if cacheHit {
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrInternal) {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
