package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_RegistersExpectedRoutes(t *testing.T) {
	h := newTestHandlers(nil)
	srv := NewServer(h)

	cases := []struct {
		method, path string
		wantNotFound bool
	}{
		{http.MethodGet, "/api/mcp/servers", false},
		{http.MethodPost, "/api/mcp/peers", false},
		{http.MethodDelete, "/api/mcp/peers/foo", false},
		{http.MethodPost, "/api/mcp/servers/foo/reload", false},
		{http.MethodPost, "/api/mcp/reload", false},
		{http.MethodPost, "/api/chat", false},
		{http.MethodGet, "/does/not/exist", true},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		srv.mux.ServeHTTP(rec, req)

		if tc.wantNotFound {
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s %s: status = %d, want 404 for an unregistered route", tc.method, tc.path, rec.Code)
			}
			continue
		}
		if rec.Code == http.StatusNotFound {
			t.Errorf("%s %s: status = 404, want the route to be registered", tc.method, tc.path)
		}
	}
}
