package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"factory-erp/internal/core"
)

const SheetSinkName = "sheet"

// sheetPush is the body the spreadsheet script endpoint accepts.
type sheetPush struct {
	TableName core.Table     `json:"tableName"`
	Action    core.Action    `json:"action"`
	Data      map[string]any `json:"data"`
}

// SheetSink posts changes to the spreadsheet script endpoint. The endpoint
// only understands flat rows, so nested values are sent as JSON strings.
type SheetSink struct {
	url    string
	client *http.Client
}

func NewSheetSink(scriptURL string, client *http.Client) *SheetSink {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SheetSink{url: scriptURL, client: client}
}

func (s *SheetSink) Name() string { return SheetSinkName }

func (s *SheetSink) Push(ctx context.Context, ch core.Change) error {
	if !slices.Contains(core.SyncedTables, ch.Table) {
		return nil
	}
	row, err := SheetRow(ch)
	if err != nil {
		return err
	}
	body, err := json.Marshal(sheetPush{TableName: ch.Table, Action: ch.Action, Data: row})
	if err != nil {
		return fmt.Errorf("failed to encode push: %w", err)
	}

	// text/plain avoids a CORS preflight on the script endpoint.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push %s %s: %w", ch.Table, ch.RecordID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push %s %s: status %d: %s", ch.Table, ch.RecordID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// SheetRow flattens a change into one spreadsheet row. Deletes carry only the id.
func SheetRow(ch core.Change) (map[string]any, error) {
	if ch.Action == core.ActionDelete || ch.Record == nil {
		return map[string]any{"id": ch.RecordID}, nil
	}
	raw, err := json.Marshal(ch.Record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}

	row := make(map[string]any, len(fields))
	for k, v := range fields {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
			row[k] = string(trimmed)
			continue
		}
		var scalar any
		if err := json.Unmarshal(trimmed, &scalar); err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		row[k] = scalar
	}
	return row, nil
}
