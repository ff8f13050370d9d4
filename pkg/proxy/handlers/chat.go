package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/tollgate/pkg/gateway"
	"mercator-hq/tollgate/pkg/proxy"
	"mercator-hq/tollgate/pkg/proxy/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// ChatHandler serves POST /v1/chat/completions.
type ChatHandler struct {
	gateway Executor
	logger  *slog.Logger
	now     func() time.Time
}

// NewChatHandler creates a chat handler backed by gw.
func NewChatHandler(gw Executor, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		gateway: gw,
		logger:  logger.With("component", "chat_handler"),
		now:     time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.logger)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, log, types.NewErrorResponse(
			"method "+r.Method+" not allowed, use POST",
			types.ErrorTypeMethodNotAllowed, "method", "",
		))
		return
	}

	chatReq, err := proxy.ParseChatCompletionRequest(r)
	if err != nil {
		log.Warn("rejected chat completion request", "error", err)
		h.writeError(w, log, proxy.HandleError(err))
		return
	}

	res, err := h.gateway.Execute(ctx, proxy.ToCompletionRequest(chatReq))
	if err != nil {
		if gateway.IsQuotaExceeded(err) {
			log.Info("chat completion refused", "model", chatReq.Model, "reason", err)
		} else {
			log.Warn("chat completion failed", "model", chatReq.Model, "error", err)
		}
		if werr := proxy.WriteError(w, err); werr != nil {
			log.Error("failed to write error response", "error", werr)
		}
		return
	}

	proxy.SetResultHeaders(w, res)
	if err := proxy.WriteJSONResponse(w, http.StatusOK, proxy.FormatChatCompletionResponse(res, h.now())); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, log *slog.Logger, errResp *types.ErrorResponse) {
	if err := proxy.WriteErrorResponse(w, errResp); err != nil {
		log.Error("failed to write error response", "error", err)
	}
}
