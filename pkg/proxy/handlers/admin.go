package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/export"
	"mercator-hq/tollgate/pkg/processing/costs"
	"mercator-hq/tollgate/pkg/proxy"
	"mercator-hq/tollgate/pkg/proxy/types"
	"mercator-hq/tollgate/pkg/security/auth"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// DefaultRecordsLimit caps GET /admin/records when no limit is given.
const DefaultRecordsLimit = 1000

// AdminHandler serves the /admin/ routes.
type AdminHandler struct {
	admin  Admin
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewAdminHandler creates the admin handler for a.
func NewAdminHandler(a Admin, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &AdminHandler{
		admin:  a,
		logger: logger.With("component", "admin_handler"),
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /admin/status", h.status)
	h.mux.HandleFunc("GET /admin/metrics", h.metrics)
	h.mux.HandleFunc("GET /admin/circuit", h.circuit)
	h.mux.HandleFunc("POST /admin/reset/daily", h.resetDaily)
	h.mux.HandleFunc("POST /admin/reset/circuit", h.resetCircuit)
	h.mux.HandleFunc("GET /admin/config", h.getConfig)
	h.mux.HandleFunc("PATCH /admin/config", h.patchConfig)
	h.mux.HandleFunc("GET /admin/pricing", h.getPricing)
	h.mux.HandleFunc("PATCH /admin/pricing", h.patchPricing)
	h.mux.HandleFunc("GET /admin/records", h.records)
	return h
}

// ServeHTTP implements http.Handler.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *AdminHandler) status(w http.ResponseWriter, r *http.Request) {
	st := Status{
		Metrics: h.admin.GetMetrics(),
		Circuit: h.admin.GetCircuitStatus(),
		Usage:   h.admin.Usage(),
		Cache:   h.admin.CacheStats(),
	}
	snapshot, prune := h.admin.NextMaintenance()
	if !snapshot.IsZero() {
		st.NextSnapshot = &snapshot
	}
	if !prune.IsZero() {
		st.NextPrune = &prune
	}
	h.writeJSON(w, r, http.StatusOK, st)
}

func (h *AdminHandler) metrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.admin.GetMetrics())
}

func (h *AdminHandler) circuit(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.admin.GetCircuitStatus())
}

func (h *AdminHandler) resetDaily(w http.ResponseWriter, r *http.Request) {
	h.admin.ResetDailyMetrics()
	h.audit(r, "daily metrics reset through admin API")
	h.writeJSON(w, r, http.StatusOK, h.admin.GetMetrics())
}

func (h *AdminHandler) resetCircuit(w http.ResponseWriter, r *http.Request) {
	h.admin.ResetCircuitBreaker()
	h.audit(r, "circuit breaker reset through admin API")
	h.writeJSON(w, r, http.StatusOK, h.admin.GetCircuitStatus())
}

func (h *AdminHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.admin.Config()
	h.writeJSON(w, r, http.StatusOK, toPatch(cfg))
}

func (h *AdminHandler) patchConfig(w http.ResponseWriter, r *http.Request) {
	var patch ConfigPatch
	if err := proxy.DecodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := patch.ToUpdate(h.admin.Config().Breaker)
	if err != nil {
		h.writeError(w, r, &proxy.RequestError{
			Message: err.Error(),
			Code:    types.CodeInvalidValue,
		})
		return
	}
	if err := h.admin.UpdateConfig(u); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r, "configuration updated through admin API")
	h.getConfig(w, r)
}

func (h *AdminHandler) getPricing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, toPricing(h.admin.Pricing()))
}

func (h *AdminHandler) patchPricing(w http.ResponseWriter, r *http.Request) {
	var body map[string]PricingEntry
	if err := proxy.DecodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	entries := make(map[string]costs.Entry, len(body))
	for model, p := range body {
		entries[model] = costs.Entry{
			Model:           model,
			InputCostPer1K:  p.Input,
			OutputCostPer1K: p.Output,
			MaxUnits:        p.MaxUnits,
		}
	}
	if err := h.admin.UpdateCostTable(entries); err != nil {
		h.writeError(w, r, &proxy.RequestError{
			Message: err.Error(),
			Code:    types.CodeInvalidValue,
			Param:   "pricing",
		})
		return
	}
	h.audit(r, "pricing updated through admin API", "models", len(entries))
	h.getPricing(w, r)
}

// audit logs a state-changing admin call with the fingerprint of the key
// that made it.
func (h *AdminHandler) audit(r *http.Request, msg string, args ...any) {
	if id, ok := auth.ClientIDFromContext(r.Context()); ok {
		args = append(args, "operator", id)
	}
	logging.FromContext(r.Context(), h.logger).Info(msg, args...)
}

// records serves GET /admin/records?since=<RFC3339>&limit=<n>&format=json|csv.
func (h *AdminHandler) records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.writeError(w, r, &proxy.RequestError{
				Message: "since must be an RFC 3339 timestamp",
				Code:    types.CodeInvalidValue,
				Param:   "since",
			})
			return
		}
		since = t
	}

	limit := DefaultRecordsLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, r, &proxy.RequestError{
				Message: "limit must be a non-negative integer",
				Code:    types.CodeInvalidValue,
				Param:   "limit",
			})
			return
		}
		limit = n
	}

	exp, err := export.New(q.Get("format"))
	if err != nil {
		h.writeError(w, r, &proxy.RequestError{
			Message: err.Error(),
			Code:    types.CodeInvalidValue,
			Param:   "format",
		})
		return
	}

	records, err := h.admin.ListUsageRecords(r.Context(), since, limit)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to list usage records", "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServiceUnavailableError("usage records are unavailable"))
		return
	}

	w.Header().Set("Content-Type", exp.ContentType())
	if err := exp.Export(r.Context(), records, w); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to export usage records", "error", err)
	}
}

func (h *AdminHandler) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	if err := proxy.WriteJSONResponse(w, code, v); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to write response", "error", err)
	}
}

func (h *AdminHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if werr := proxy.WriteErrorResponse(w, proxy.HandleError(err)); werr != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to write error response", "error", werr)
	}
}

func toPricing(entries map[string]costs.Entry) map[string]PricingEntry {
	out := make(map[string]PricingEntry, len(entries))
	for model, e := range entries {
		out[model] = PricingEntry{
			Input:    e.InputCostPer1K,
			Output:   e.OutputCostPer1K,
			MaxUnits: e.MaxUnits,
		}
	}
	return out
}
