package server

import (
	"net/http"
	"time"

	"github.com/blackroad/searchcore/pkg/health"
	"github.com/blackroad/searchcore/pkg/metrics"
	"github.com/blackroad/searchcore/pkg/middleware"
)

// NewRouter wires all API routes and applies the middleware chain
// (RequestID → Metrics → Timeout).
//
// Route table:
//
//	POST   /indexes                                          → create index
//	GET    /indexes                                          → list indexes
//	GET    /indexes/{uid}                                    → index metadata
//	PUT    /indexes/{uid}/settings/searchable-attributes     → replace list
//	PUT    /indexes/{uid}/settings/filterable-attributes     → replace list
//	PUT    /indexes/{uid}/settings/sortable-attributes       → replace list
//	POST   /indexes/{uid}/documents                          → ingest batch
//	GET    /indexes/{uid}/documents/{id}                     → get document
//	PATCH  /indexes/{uid}/documents/{id}                     → partial update
//	DELETE /indexes/{uid}/documents/{id}                     → delete document
//	POST   /indexes/{uid}/search                             → ranked search
//	POST   /multi-search                                     → federated search
//	GET    /indexes/{uid}/stats                              → index stats
//	GET    /stats                                            → aggregate stats
//	GET    /cache/stats                                      → cache counters
//	GET    /health/live, /health/ready                       → probes
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /indexes", h.CreateIndex)
	mux.HandleFunc("GET /indexes", h.ListIndexes)
	mux.HandleFunc("GET /indexes/{uid}", h.GetIndex)

	mux.HandleFunc("PUT /indexes/{uid}/settings/searchable-attributes", h.SetSearchableAttrs)
	mux.HandleFunc("PUT /indexes/{uid}/settings/filterable-attributes", h.SetFilterableAttrs)
	mux.HandleFunc("PUT /indexes/{uid}/settings/sortable-attributes", h.SetSortableAttrs)

	mux.HandleFunc("POST /indexes/{uid}/documents", h.AddDocuments)
	mux.HandleFunc("GET /indexes/{uid}/documents/{id}", h.GetDocument)
	mux.HandleFunc("PATCH /indexes/{uid}/documents/{id}", h.UpdateDocument)
	mux.HandleFunc("DELETE /indexes/{uid}/documents/{id}", h.DeleteDocument)

	mux.HandleFunc("POST /indexes/{uid}/search", h.Search)
	mux.HandleFunc("POST /multi-search", h.MultiSearch)

	mux.HandleFunc("GET /indexes/{uid}/stats", h.IndexStats)
	mux.HandleFunc("GET /stats", h.AggregateStats)
	mux.HandleFunc("GET /cache/stats", h.CacheStats)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if requestTimeout > 0 {
		chain = middleware.Timeout(requestTimeout)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID()(chain)
	return chain
}
