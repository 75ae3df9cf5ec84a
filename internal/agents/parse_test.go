package agents

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParsePlanPayloadValid(t *testing.T) {
	payload := json.RawMessage(`{
		"title": "  Build the thing  ",
		"items": [
			{"number": "1", "text": "First", "done_when": ["compiles"]},
			{"number": " 2 ", "text": " Second ", "depends_on": ["1"], "details": ""}
		]
	}`)
	result, err := parsePlanPayload(payload)
	if err != nil {
		t.Fatalf("parsePlanPayload() error = %v", err)
	}
	if result.Title != "Build the thing" {
		t.Errorf("Title = %q, want trimmed title", result.Title)
	}
	if len(result.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(result.Items))
	}
	if result.Items[1].Number != "2" || result.Items[1].Text != "Second" {
		t.Errorf("item 1 not trimmed: %+v", result.Items[1])
	}
	if result.Items[1].Details != "" {
		t.Errorf("empty details should stay absent, got %q", result.Items[1].Details)
	}
	if got := result.Items[1].DependsOn; len(got) != 1 || got[0] != "1" {
		t.Errorf("DependsOn = %v, want [1]", got)
	}
}

func TestParsePlanPayloadRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not an object", `[1, 2]`, "non-object"},
		{"missing items", `{"title": "x"}`, "missing required field: items"},
		{"empty items", `{"items": []}`, "at least 1 item"},
		{"item missing number", `{"items": [{"text": "x"}]}`, "number"},
		{"item blank text", `{"items": [{"number": "1", "text": "  "}]}`, "text"},
		{"depends_on not array", `{"items": [{"number": "1", "text": "x", "depends_on": "1"}]}`, "depends_on"},
		{"done_when null entry", `{"items": [{"number": "1", "text": "x", "done_when": [null]}]}`, "done_when"},
		{"done_when numbers", `{"items": [{"number": "1", "text": "x", "done_when": [3]}]}`, "done_when"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePlanPayload(json.RawMessage(tt.payload))
			if err == nil {
				t.Fatalf("parsePlanPayload() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseItemSpecAbsentVsEmptyLists(t *testing.T) {
	spec, err := parseItemSpec(json.RawMessage(`{"number": "1", "text": "x"}`))
	if err != nil {
		t.Fatalf("parseItemSpec() error = %v", err)
	}
	if spec.DependsOn != nil || spec.DoneWhen != nil {
		t.Errorf("absent lists should decode to nil, got %v / %v", spec.DependsOn, spec.DoneWhen)
	}

	spec, err = parseItemSpec(json.RawMessage(`{"number": "1", "text": "x", "depends_on": [], "done_when": ["", "ok"]}`))
	if err != nil {
		t.Fatalf("parseItemSpec() error = %v", err)
	}
	if spec.DependsOn == nil || len(spec.DependsOn) != 0 {
		t.Errorf("explicit empty depends_on should stay a present empty list, got %v", spec.DependsOn)
	}
	if len(spec.DoneWhen) != 1 || spec.DoneWhen[0] != "ok" {
		t.Errorf("blank entries should be dropped, got %v", spec.DoneWhen)
	}
}
