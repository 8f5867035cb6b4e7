// Package main implements the Torua filter service: the saga's
// downstream consumer, which accepts or rejects collection updates and
// reports the accumulated history back to callers.
//
// Configuration:
//   - FILTER_ADDR: listen address (default ":8083")
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
	"syscall"
	"time"

	"github.com/dreamware/torua/internal/bus/franzbus"
	"github.com/dreamware/torua/internal/filter"
	"github.com/dreamware/torua/internal/traceid"
)

const (
	updatesTopic       = "collection-updates"
	compensationsTopic = "collection-compensations"
	consumerGroup      = "filter_group"
)

func main() {
	addr := getenv("FILTER_ADDR", ":8083")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")

	messageBus := franzbus.New(brokers)
	consumer, err := messageBus.Consumer(updatesTopic, consumerGroup)
	if err != nil {
		log.Fatalf("filter: opening consumer: %v", err)
	}
	producer, err := messageBus.Producer(compensationsTopic)
	if err != nil {
		log.Fatalf("filter: opening producer: %v", err)
	}

	svc := filter.NewService(consumer, producer)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /filter/updates/{item_id}", handleUpdates(svc))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           traceid.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("filter listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("filter: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("filter: shutdown error: %v", err)
	}
	cancel()
	log.Println("filter stopped")
}

func handleUpdates(svc *filter.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updates, err := svc.UpdatesForItem(r.PathValue("item_id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
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
