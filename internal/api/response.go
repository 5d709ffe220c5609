package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/srd-gateway/pkg/client"
	"github.com/Sternrassler/srd-gateway/pkg/filter"
	"github.com/rs/zerolog/hlog"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, detail any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}

// statusOf maps a gateway error to the HTTP status served for it.
func statusOf(err error) (int, string) {
	var upstreamErr *client.UpstreamError
	switch {
	case client.IsNotFound(err):
		return http.StatusNotFound, "not found"
	case errors.Is(err, filter.ErrInvalidFilter):
		return http.StatusBadRequest, "invalid query"
	case errors.As(err, &upstreamErr) && upstreamErr.Timeout():
		return http.StatusGatewayTimeout, "upstream timeout"
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, "upstream error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeError(w, status, msg, err.Error())
}
