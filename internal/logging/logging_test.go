package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("solver", "greedy")).Debug(context.Background(), "pass scheduled",
		Int("pass_index", 2),
		Float("energy_j", 1.5),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "pass scheduled" || rec["solver"] != "greedy" || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["pass_index"] != float64(2) || rec["energy_j"] != 1.5 {
		t.Fatalf("unexpected numeric fields: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn not logged at warn level")
	}
}

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRunID returned empty id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || RunIDFromContext(ctx2) != id {
		t.Fatalf("EnsureRunID replaced existing id %q with %q", id, id2)
	}
	if RunIDFromContext(context.Background()) != "" {
		t.Fatalf("background context carries a run id")
	}
}

func TestWithRunLoggerAnnotates(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})
	ctx := ContextWithRunID(context.Background(), "run-42")

	_, log := WithRunLogger(ctx, base)
	log.Info(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["run_id"] != "run-42" {
		t.Fatalf("run_id = %v, want run-42", rec["run_id"])
	}

	if _, l := WithRunLogger(ctx, nil); l == nil {
		t.Fatalf("WithRunLogger(nil base) returned nil logger")
	}
}
