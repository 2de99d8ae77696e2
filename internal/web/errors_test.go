package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcprelay/gateway/internal/mcpgw"
)

func TestStatusFor_InvalidConfigIsBadRequest(t *testing.T) {
	err := mcpgw.NewInvalidConfigError("svc", "bad catalog entry", nil)
	if got := statusFor(err); got != http.StatusBadRequest {
		t.Errorf("statusFor(InvalidConfig) = %d, want 400", got)
	}
}

func TestStatusFor_WrappedMcpgwErrorStillMaps(t *testing.T) {
	err := mcpgw.NewInvalidConfigError("svc", "bad catalog entry", nil)
	wrapped := &wrapError{err}
	if got := statusFor(wrapped); got != http.StatusBadRequest {
		t.Errorf("statusFor(wrapped InvalidConfig) = %d, want 400 (errors.As should unwrap)", got)
	}
}

type wrapError struct{ err error }

func (w *wrapError) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapError) Unwrap() error { return w.err }

func TestStatusFor_NonMcpgwErrorIs500(t *testing.T) {
	if got := statusFor(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("statusFor(plain error) = %d, want 500", got)
	}
}

func TestWriteError_IncludesTraceID(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, mcpgw.NewInvalidConfigError("svc", "bad body", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid errorBody JSON: %v", err)
	}
	if body.TraceID == "" {
		t.Error("expected a non-empty trace id on every error response")
	}
	if body.Error == "" {
		t.Error("expected a non-empty error message")
	}
}
