package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dreamware/torua/internal/shardnode"
)

type handler struct {
	node *shardnode.Node
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	table, pk := r.PathValue("table"), r.PathValue("pk")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	var payload struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	if err := h.node.CreateRecord(r.Context(), table, pk, payload.Value); err != nil {
		writeNodeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordResponse(table, pk, payload.Value))
}

func (h *handler) handleRead(w http.ResponseWriter, r *http.Request) {
	table, pk := r.PathValue("table"), r.PathValue("pk")

	value, err := h.node.ReadRecord(table, pk)
	if err != nil {
		writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(table, pk, value))
}

func (h *handler) handleExists(w http.ResponseWriter, r *http.Request) {
	table, pk := r.PathValue("table"), r.PathValue("pk")

	if !h.node.ExistsRecord(table, pk) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func recordResponse(table, pk string, value json.RawMessage) map[string]any {
	return map[string]any{
		"table_name":  table,
		"primary_key": pk,
		"value":       value,
	}
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	table, pk := r.PathValue("table"), r.PathValue("pk")

	if err := h.node.DeleteRecord(r.Context(), table, pk); err != nil {
		writeNodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeNodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shardnode.ErrNotLeader):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, shardnode.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
