package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"pending", StatusPending},
		{"doing", StatusDoing},
		{"done", StatusDone},
		{"blocked", StatusBlocked},
		{"banana", StatusPending},
		{"", StatusPending},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.raw); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNodeRoundTripPreservesExtra(t *testing.T) {
	in := `{"number":"1","text":"do it","status":"doing","depends_on":["2"],"done_when":["works"],"children":[],"priority":7,"owner":"sam"}`

	var n Node
	if err := json.Unmarshal([]byte(in), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Extra["owner"] != "sam" {
		t.Errorf("expected extra owner preserved, got %v", n.Extra)
	}

	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(in), &first); err != nil {
		t.Fatalf("unmarshal original: %v", err)
	}
	if err := json.Unmarshal(out, &second); err != nil {
		t.Fatalf("unmarshal round-trip: %v", err)
	}
	for _, key := range []string{"number", "text", "status", "priority", "owner"} {
		if first[key] != second[key] {
			t.Errorf("key %q changed across round-trip: %v -> %v", key, first[key], second[key])
		}
	}
}

func TestNodeBlockedReasonEmittedOnlyWhenBlocked(t *testing.T) {
	n := Node{Number: "1", Text: "x", Status: StatusDoing, BlockedReason: "stale reason"}
	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "blocked_reason") {
		t.Errorf("blocked_reason emitted for non-blocked node: %s", out)
	}

	n.Status = StatusBlocked
	out, err = json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), "stale reason") {
		t.Errorf("blocked_reason missing for blocked node: %s", out)
	}

	n.BlockedReason = ""
	out, err = json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "blocked_reason") {
		t.Errorf("empty blocked_reason should not be emitted: %s", out)
	}
}

func TestNodeExtraCannotShadowKnownKeys(t *testing.T) {
	n := Node{
		Number: "1",
		Text:   "real text",
		Status: StatusPending,
		Extra:  map[string]any{"text": "shadowed", "note": "kept"},
	}
	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["text"] != "real text" {
		t.Errorf("extra key shadowed known field: %v", m["text"])
	}
	if m["note"] != "kept" {
		t.Errorf("benign extra key dropped: %v", m)
	}
}

func TestNodeDefaults(t *testing.T) {
	var n Node
	if err := json.Unmarshal([]byte(`{"number":"3","text":"t"}`), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Status != StatusPending {
		t.Errorf("expected default pending, got %q", n.Status)
	}
	if !n.Atomic() {
		t.Error("node without children should be atomic")
	}

	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"depends_on", "done_when", "children"} {
		if !strings.Contains(string(out), key) {
			t.Errorf("always-present key %q missing: %s", key, out)
		}
	}
}

func TestNodeMissingRequiredFields(t *testing.T) {
	var n Node
	if err := json.Unmarshal([]byte(`{"text":"no number"}`), &n); err == nil {
		t.Error("expected error for missing number")
	}
	if err := json.Unmarshal([]byte(`{"number":"1"}`), &n); err == nil {
		t.Error("expected error for missing text")
	}
}
