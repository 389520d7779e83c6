// Package ingest reads dialogue records and validates their shape.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/curate-cli/internal/model"
	"github.com/sells-group/curate-cli/internal/pool"
)

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 64 << 20

// MalformedRecordError reports an input record that does not have the
// conversations[system, human, model] shape.
type MalformedRecordError struct {
	Line   int
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: malformed record %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest: malformed record %d: %s", e.Line, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// ReadFile reads records from path. Files ending in .json are parsed as a
// JSON array; anything else is treated as JSONL.
func ReadFile(ctx context.Context, path string, p *pool.Pool) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var records []model.Record
	if strings.EqualFold(filepath.Ext(path), ".json") {
		records, err = ReadJSONArray(ctx, f, p)
	} else {
		records, err = ReadJSONL(ctx, f, p)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("ingest: records loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// ReadJSONL reads one JSON object per line. Blank lines are skipped and do
// not consume an ordinal. Lines are decoded concurrently on p.
func ReadJSONL(ctx context.Context, r io.Reader, p *pool.Pool) ([]model.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines [][]byte
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, bytes.Clone(line))
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: scan jsonl")
	}
	return decodeAll(ctx, lines, p)
}

// ReadJSONArray reads a single JSON array of record objects.
func ReadJSONArray(ctx context.Context, r io.Reader, p *pool.Pool) ([]model.Record, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, eris.Wrap(err, "ingest: decode json array")
	}
	lines := make([][]byte, len(items))
	for i, item := range items {
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			return nil, &MalformedRecordError{Line: i, Reason: "invalid json object", Err: err}
		}
		lines[i] = buf.Bytes()
	}
	return decodeAll(ctx, lines, p)
}

func decodeAll(ctx context.Context, lines [][]byte, p *pool.Pool) ([]model.Record, error) {
	return pool.Map(ctx, p, "ingest", lines, func(_ context.Context, i int, line []byte) (model.Record, error) {
		return Decode(i, line)
	})
}

type wireRecord struct {
	Conversations []json.RawMessage `json:"conversations"`
}

type wireTurn struct {
	Value *string `json:"value"`
}

// Decode parses a single record at ordinal line.
func Decode(line int, data []byte) (model.Record, error) {
	var wr wireRecord
	if err := json.Unmarshal(data, &wr); err != nil {
		return model.Record{}, &MalformedRecordError{Line: line, Reason: "invalid json object", Err: err}
	}
	if wr.Conversations == nil {
		return model.Record{}, &MalformedRecordError{Line: line, Reason: "missing conversations"}
	}
	if len(wr.Conversations) != model.TurnCount {
		return model.Record{}, &MalformedRecordError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d turns, got %d", model.TurnCount, len(wr.Conversations)),
		}
	}

	var values [model.TurnCount]string
	for i, rawTurn := range wr.Conversations {
		var turn wireTurn
		if err := json.Unmarshal(rawTurn, &turn); err != nil {
			return model.Record{}, &MalformedRecordError{Line: line, Reason: fmt.Sprintf("turn %d", i), Err: err}
		}
		if turn.Value == nil {
			return model.Record{}, &MalformedRecordError{Line: line, Reason: fmt.Sprintf("turn %d has no value", i)}
		}
		values[i] = *turn.Value
	}

	return model.Record{
		Line:   line,
		System: values[model.TurnSystem],
		Human:  values[model.TurnHuman],
		Model:  values[model.TurnModel],
		Raw:    json.RawMessage(data),
	}, nil
}
