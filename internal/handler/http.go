package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type httpHandler struct {
	counter Counter
	logger  *zap.Logger
}

// NewHTTPHandler serves POST (increment) and GET (read) on any path.
func NewHTTPHandler(c Counter, logger *zap.Logger) http.Handler {
	return &httpHandler{counter: c, logger: logger}
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var n int64
	var err error
	switch r.Method {
	case http.MethodGet:
		n, err = h.counter.Read(r.Context())
	case http.MethodPost:
		n, err = h.counter.HandleRequest(r.Context(), r.URL.Path)
	case http.MethodOptions:
		for k, v := range corsHeaders() {
			w.Header().Set(k, v)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", allowedMethods)
		h.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	if err != nil {
		h.logger.Error("count failed", zap.String("method", r.Method), zap.Error(err))
		h.writeJSON(w, StatusCode(err), ErrorResponse{Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", zap.Int("status", code), zap.Error(err))
	}
}
