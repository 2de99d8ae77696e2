package web

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mcprelay/gateway/internal/mcpgw"
)

// traceID is attached to every error body writeError produces. Success
// responses and SSE events carry no trace id.
func traceID() string {
	return uuid.NewString()
}

// statusFor maps an mcpgw error kind to the HTTP status spec.md §6
// mandates. Non-mcpgw errors map to 500.
func statusFor(err error) int {
	var e *mcpgw.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case mcpgw.KindNotFound:
		return http.StatusNotFound
	case mcpgw.KindInvalidConfig, mcpgw.KindInvalidArgs:
		return http.StatusBadRequest
	case mcpgw.KindNotReady, mcpgw.KindDisabled:
		return http.StatusConflict
	case mcpgw.KindConnectionTimeout:
		return http.StatusGatewayTimeout
	case mcpgw.KindConnectionError, mcpgw.KindToolExecutionError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encodeJSON(w, errorBody{Error: err.Error(), TraceID: traceID()})
}
