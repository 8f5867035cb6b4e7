// Package main implements the Torua coordinator: the control-plane process
// that tracks table definitions and shard-group topology, and routes every
// record request to the right shard node.
//
// Configuration:
//   - COORDINATOR_ADDR: listen address (default ":8080")
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/torua/internal/coordinator"
	"github.com/dreamware/torua/internal/traceid"
)

func main() {
	addr := getenv("COORDINATOR_ADDR", ":8080")

	srv := &server{
		topology: coordinator.NewTopology(),
		tables:   coordinator.NewTableRegistry(),
	}
	srv.router = coordinator.NewRouter(srv.topology)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /_internal/register_shard", srv.handleRegisterShard)
	mux.HandleFunc("GET /ops/health-report", srv.handleHealthReport)
	mux.HandleFunc("POST /tables", srv.handleCreateTable)
	mux.HandleFunc("GET /tables", srv.handleListTables)
	mux.HandleFunc("DELETE /tables/{name}", srv.handleDeleteTable)
	mux.HandleFunc("POST /records", srv.handleCreateRecord)
	mux.HandleFunc("/records/{table}/{pk}", srv.handleRecordOp)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           traceid.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("coordinator listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("coordinator: shutdown error: %v", err)
	}
	log.Println("coordinator stopped")
}

// server holds the coordinator's in-memory state: registered tables and
// the shard-group topology, plus the router built over that topology.
type server struct {
	topology *coordinator.Topology
	tables   *coordinator.TableRegistry
	router   *coordinator.Router
}

func (s *server) handleRegisterShard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID  string `json:"group_id"`
		ShardURL string `json:"shard_url"`
		IsLeader bool   `json:"is_leader"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.GroupID == "" || req.ShardURL == "" {
		http.Error(w, "group_id and shard_url are required", http.StatusBadRequest)
		return
	}

	s.topology.RegisterShard(req.GroupID, req.ShardURL, req.IsLeader)
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	topology := s.topology.Snapshot()
	tables := s.tables.List()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "active",
		"details": map[string]any{
			"shards_count": len(topology),
			"tables_count": len(tables),
			"topology":     topology,
			"tables":       tables,
		},
	})
}

func (s *server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var table coordinator.TableDefinition
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if table.TableName == "" || table.PrimaryKey == "" {
		http.Error(w, "table_name and primary_key are required", http.StatusBadRequest)
		return
	}

	if err := s.tables.Register(table); err != nil {
		var exists *coordinator.ErrTableExists
		if errors.As(err, &exists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("coordinator: registered table %q (primary key %q)", table.TableName, table.PrimaryKey)
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tables.List())
}

func (s *server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.tables.Delete(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleCreateRecord reads the table name out of the request body itself,
// since a create has no table segment in its path: POST /records with
// body {table_name, value:{...}}.
func (s *server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var payload struct {
		TableName string         `json:"table_name"`
		Value     map[string]any `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if payload.TableName == "" {
		http.Error(w, "table_name is required", http.StatusBadRequest)
		return
	}

	def, err := s.tables.Get(payload.TableName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	primaryKeyValue, ok := payload.Value[def.PrimaryKey]
	if !ok {
		http.Error(w, "primary key '"+def.PrimaryKey+"' is missing", http.StatusBadRequest)
		return
	}
	primaryKey := toKeyString(primaryKeyValue)

	valueBody, err := json.Marshal(map[string]any{"value": payload.Value})
	if err != nil {
		http.Error(w, "failed to encode value", http.StatusInternalServerError)
		return
	}

	s.forward(w, r, payload.TableName, primaryKey, valueBody, true)
}

func (s *server) handleRecordOp(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	pk := r.PathValue("pk")

	if _, err := s.tables.Get(table); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		body = b
	}

	isWrite := r.Method == http.MethodPost || r.Method == http.MethodPut ||
		r.Method == http.MethodPatch || r.Method == http.MethodDelete
	s.forward(w, r, table, pk, body, isWrite)
}

func (s *server) forward(w http.ResponseWriter, r *http.Request, table, primaryKey string, body []byte, isWrite bool) {
	key := table + "::" + primaryKey
	target, err := s.router.TargetNode(key, isWrite)
	if err != nil {
		writeRoutingError(w, err)
		return
	}

	traceid.Logf(r.Context(), "forwarding %s to %s for %s", r.Method, target, key)

	r.Body = io.NopCloser(bytes.NewReader(body))
	path := "api/v1/records/" + table + "/" + primaryKey
	resp, err := s.router.Forward(r, target, path)
	if err != nil {
		writeRoutingError(w, err)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func writeRoutingError(w http.ResponseWriter, err error) {
	var httpErr *coordinator.HTTPError
	if errors.As(err, &httpErr) {
		http.Error(w, httpErr.Message, httpErr.Status)
		return
	}
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toKeyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
