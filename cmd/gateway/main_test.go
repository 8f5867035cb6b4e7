package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestForwardToReplaysPathAndBody(t *testing.T) {
	var gotPath, gotBody string
	coordinator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer coordinator.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/tables", forwardTo(coordinator.URL))

	req := httptest.NewRequest(http.MethodPost, "/tables", strings.NewReader(`{"table_name":"movies"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	if gotPath != "/tables" {
		t.Fatalf("coordinator saw path %q, want /tables", gotPath)
	}
	if gotBody != `{"table_name":"movies"}` {
		t.Fatalf("coordinator saw body %q", gotBody)
	}
}

func TestForwardToSurfacesUnreachableCoordinator(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tables", forwardTo("http://127.0.0.1:1"))

	req := httptest.NewRequest(http.MethodGet, "/tables", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
