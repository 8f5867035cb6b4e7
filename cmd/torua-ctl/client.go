package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/torua/internal/coordinator"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(gatewayURL string) *client {
	return &client{
		baseURL: strings.TrimSuffix(gatewayURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) createTable(ctx context.Context, tableName, primaryKey string) error {
	body, err := json.Marshal(coordinator.TableDefinition{TableName: tableName, PrimaryKey: primaryKey})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/tables", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return httpStatusError(resp)
	}
	return nil
}

func (c *client) listTables(ctx context.Context) ([]coordinator.TableDefinition, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tables", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, httpStatusError(resp)
	}

	var tables []coordinator.TableDefinition
	if err := json.NewDecoder(resp.Body).Decode(&tables); err != nil {
		return nil, fmt.Errorf("decoding table list: %w", err)
	}
	return tables, nil
}

func (c *client) deleteTable(ctx context.Context, tableName string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/tables/"+tableName, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return httpStatusError(resp)
	}
	return nil
}

func (c *client) getRecord(ctx context.Context, table, primaryKey string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/records/"+table+"/"+primaryKey, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, httpStatusError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *client) putRecord(ctx context.Context, table, jsonValue string) error {
	var value any
	if err := json.Unmarshal([]byte(jsonValue), &value); err != nil {
		return fmt.Errorf("json-value is not valid JSON: %w", err)
	}
	body, err := json.Marshal(map[string]any{"table_name": table, "value": value})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/records", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return httpStatusError(resp)
	}
	return nil
}

type healthReport struct {
	Status  string `json:"status"`
	Details struct {
		ShardsCount int                                  `json:"shards_count"`
		TablesCount int                                  `json:"tables_count"`
		Topology    map[string]coordinator.GroupTopology `json:"topology"`
		Tables      []coordinator.TableDefinition        `json:"tables"`
	} `json:"details"`
}

func (c *client) healthReport(ctx context.Context) (*healthReport, error) {
	resp, err := c.do(ctx, http.MethodGet, "/ops/health-report", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, httpStatusError(resp)
	}

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding health report: %w", err)
	}
	return &report, nil
}

func (c *client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gateway at %s: %w", c.baseURL, err)
	}
	return resp, nil
}

func httpStatusError(resp *http.Response) error {
	detail, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("gateway returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
}
