// Package main implements the Torua collections service: the saga
// initiator that adds tags to items, appends the change to a
// transactional outbox, relays confirmed updates to the filter service,
// and rolls a tag back if the filter service reports a failure.
//
// Configuration:
//   - COLLECTIONS_ADDR: listen address (default ":8082")
//   - TAGS_SERVICE_URL: base URL of the external tag-validation service (required)
//   - KAFKA_BROKERS: comma-separated seed brokers (default "localhost:9092")
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dreamware/torua/internal/bus/franzbus"
	"github.com/dreamware/torua/internal/saga"
	"github.com/dreamware/torua/internal/traceid"
)

const (
	updatesTopic       = "collection-updates"
	compensationsTopic = "collection-compensations"
	compensationGroup  = "collections_saga_group"
)

func main() {
	addr := getenv("COLLECTIONS_ADDR", ":8082")
	tagsServiceURL := mustGetenv("TAGS_SERVICE_URL")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")

	messageBus := franzbus.New(brokers)
	producer, err := messageBus.Producer(updatesTopic)
	if err != nil {
		log.Fatalf("collections: opening producer: %v", err)
	}
	consumer, err := messageBus.Consumer(compensationsTopic, compensationGroup)
	if err != nil {
		log.Fatalf("collections: opening consumer: %v", err)
	}

	svc := saga.NewService(saga.NewHTTPTagValidator(tagsServiceURL), producer, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); svc.RunOutboxRelay(ctx) }()
	go func() { defer wg.Done(); svc.RunCompensationListener(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}/tags", handleGetTags(svc))
	mux.HandleFunc("POST /items/{id}/tags", handleAddTag(svc))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           traceid.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("collections listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("collections: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("collections: shutdown error: %v", err)
	}
	cancel()
	wg.Wait()
	log.Println("collections stopped")
}

func handleGetTags(svc *saga.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := svc.Tags(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
	}
}

func handleAddTag(svc *saga.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			TagName string `json:"tag_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		if err := svc.AddTag(r.Context(), r.PathValue("id"), payload.TagName); err != nil {
			writeSagaError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"tag": payload.TagName})
	}
}

func writeSagaError(w http.ResponseWriter, err error) {
	var notFound *saga.ErrItemNotFound
	var exists *saga.ErrTagExists
	var validation *saga.ValidationError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &exists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &validation):
		http.Error(w, err.Error(), validation.Status)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
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
		log.Fatalf("collections: required environment variable %s is not set", k)
	}
	return v
}
