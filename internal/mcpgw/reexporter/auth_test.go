package reexporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func passthroughHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireBearer_RejectsMissingHeader(t *testing.T) {
	h := requireBearer("s3cret", passthroughHandler())
	req := httptest.NewRequest(http.MethodPost, "/message", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body jsonRPCError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not the expected JSON-RPC envelope: %v", err)
	}
	if body.Error.Code != jsonRPCAuthErrorCode {
		t.Errorf("Error.Code = %d, want %d", body.Error.Code, jsonRPCAuthErrorCode)
	}
}

func TestRequireBearer_RejectsWrongToken(t *testing.T) {
	h := requireBearer("s3cret", passthroughHandler())
	req := httptest.NewRequest(http.MethodPost, "/message", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireBearer_RejectsNonBearerScheme(t *testing.T) {
	h := requireBearer("s3cret", passthroughHandler())
	req := httptest.NewRequest(http.MethodPost, "/message", nil)
	req.Header.Set("Authorization", "Basic s3cret")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireBearer_AllowsExactMatch(t *testing.T) {
	h := requireBearer("s3cret", passthroughHandler())
	req := httptest.NewRequest(http.MethodPost, "/message", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (next handler should run)", rec.Code)
	}
}
