package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/notify-service/internal/domain"
	"github.com/cwrk-planet/notify-service/pkg/logger"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{"data": data})
}

// writeError maps err onto a status via domain.ToHTTP. 5xx details are
// logged, not returned.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := domain.ToHTTP(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).ErrorContext(ctx, "request failed", "err", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, envelope{"error": envelope{"message": msg}})
}
