// Package main implements the Torua edge gateway: a thin HTTP front door
// that forwards table, record, and health-report requests verbatim to
// the coordinator. It does no auth, no CORS handling, and no routing
// logic of its own; anything that isn't one of those three paths gets
// a 404.
//
// Configuration:
//   - GATEWAY_ADDR: listen address (default ":8080")
//   - COORDINATOR_URL: base URL of the coordinator (required)
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dreamware/torua/internal/traceid"
)

var proxyClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	addr := getenv("GATEWAY_ADDR", ":8080")
	coordinatorURL := strings.TrimSuffix(mustGetenv("COORDINATOR_URL"), "/")

	mux := http.NewServeMux()
	mux.HandleFunc("/tables", forwardTo(coordinatorURL))
	mux.HandleFunc("/tables/", forwardTo(coordinatorURL))
	mux.HandleFunc("/records", forwardTo(coordinatorURL))
	mux.HandleFunc("/records/", forwardTo(coordinatorURL))
	mux.HandleFunc("/ops/health-report", forwardTo(coordinatorURL))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           traceid.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("gateway listening on %s, forwarding to %s", addr, coordinatorURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gateway: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("gateway: shutdown error: %v", err)
	}
	log.Println("gateway stopped")
}

// forwardTo returns a handler that replays the inbound request against
// the coordinator at the same path and copies back whatever the
// coordinator answers, unchanged. There is no retry and no circuit
// breaking here: if the coordinator is unreachable the caller sees that
// failure directly.
func forwardTo(coordinatorURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := coordinatorURL + r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, strings.NewReader(string(body)))
		if err != nil {
			http.Error(w, "failed to build proxied request", http.StatusInternalServerError)
			return
		}
		for k, vv := range r.Header {
			if k == "Host" {
				continue
			}
			for _, v := range vv {
				proxyReq.Header.Add(k, v)
			}
		}

		resp, err := proxyClient.Do(proxyReq)
		if err != nil {
			http.Error(w, "coordinator unreachable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer resp.Body.Close()

		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("gateway: required environment variable %s is not set", k)
	}
	return v
}
