// Package main implements a Torua shard node: either the leader or a
// follower of one shard group, serving /api/v1/records/{table}/{pk} and
// replicating writes to the rest of its group over the message bus.
//
// Configuration:
//   - SHARD_ADDR: listen address (default ":8081")
//   - SHARD_ADVERTISED_URL: URL other nodes use to reach this one (required)
//   - SHARD_GROUP_ID: the shard group this node belongs to (required)
//   - SHARD_IS_LEADER: "true" to boot as leader, anything else as follower
//   - COORDINATOR_URL: base URL of the coordinator (required)
//   - KAFKA_BROKERS: comma-separated seed brokers (default "localhost:9092")
//   - KAFKA_TOPIC: replication topic (default "{group_id}-replication")
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/torua/internal/bus/franzbus"
	"github.com/dreamware/torua/internal/shardnode"
	"github.com/dreamware/torua/internal/traceid"
)

func main() {
	addr := getenv("SHARD_ADDR", ":8081")
	advertisedURL := mustGetenv("SHARD_ADVERTISED_URL")
	groupID := mustGetenv("SHARD_GROUP_ID")
	isLeader := getenv("SHARD_IS_LEADER", "false") == "true"
	coordinatorURL := mustGetenv("COORDINATOR_URL")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", groupID+"-replication")

	messageBus := franzbus.New(brokers)

	var node *shardnode.Node
	if isLeader {
		producer, err := messageBus.Producer(topic)
		if err != nil {
			log.Fatalf("shard: opening producer: %v", err)
		}
		node = shardnode.NewLeader(groupID, producer, topic)
	} else {
		consumerGroup := fmt.Sprintf("shard-%s-%s", groupID, uuid.NewString())
		consumer, err := messageBus.Consumer(topic, consumerGroup)
		if err != nil {
			log.Fatalf("shard: opening consumer: %v", err)
		}
		node = shardnode.NewFollower(groupID, consumer)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	node.Start(ctx)

	registerSelf(coordinatorURL, groupID, advertisedURL, isLeader)

	h := &handler{node: node}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("POST /api/v1/records/{table}/{pk}", h.handleCreate)
	mux.HandleFunc("GET /api/v1/records/{table}/{pk}", h.handleRead)
	mux.HandleFunc("HEAD /api/v1/records/{table}/{pk}", h.handleExists)
	mux.HandleFunc("DELETE /api/v1/records/{table}/{pk}", h.handleDelete)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           traceid.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		role := "follower"
		if isLeader {
			role = "leader"
		}
		log.Printf("shard[%s]: %s listening on %s", groupID, role, addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("shard: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shard: shutdown error: %v", err)
	}
	cancel()
	node.Stop()
	log.Printf("shard[%s]: stopped", groupID)
}

// registerSelf tells the coordinator about this node once, at boot. A
// failure here is logged, not fatal: the original service doesn't retry
// either, on the theory that an operator who sees the log line can
// re-trigger registration (e.g. by restarting the node) once the
// coordinator is reachable.
func registerSelf(coordinatorURL, groupID, advertisedURL string, isLeader bool) {
	payload, err := json.Marshal(map[string]any{
		"shard_url": advertisedURL,
		"group_id":  groupID,
		"is_leader": isLeader,
	})
	if err != nil {
		log.Printf("shard: encoding registration payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(coordinatorURL+"/_internal/register_shard", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("shard: could not register at coordinator %s: %v", coordinatorURL, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("shard: coordinator %s rejected registration: %s", coordinatorURL, resp.Status)
		return
	}

	role := "follower"
	if isLeader {
		role = "leader"
	}
	log.Printf("shard: registered at coordinator %s as %s for group %s", coordinatorURL, role, groupID)
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
		log.Fatalf("shard: required environment variable %s is not set", k)
	}
	return v
}
