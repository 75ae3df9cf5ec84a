package plan

import (
	"strings"
	"testing"

	"github.com/tmcfarlane/foreman/pkg/models"
)

func sampleDoc() *Document {
	return &Document{
		Title:   "Build the widget",
		Context: "make a widget",
		Items: []models.Node{
			{Number: "1", Text: "scaffold", Status: models.StatusDone},
			{Number: "2", Text: "core", Status: models.StatusDoing, Children: []models.Node{
				{Number: "2.1", Text: "parser", Status: models.StatusPending,
					Details:  "use the line parser",
					DoneWhen: []string{"parser tests pass"}},
				{Number: "2.2", Text: "emitter", Status: models.StatusBlocked, BlockedReason: "tiers exhausted"},
			}},
		},
	}
}

func TestRenderRoot(t *testing.T) {
	out := RenderRoot(sampleDoc())
	for _, want := range []string{"# Build the widget", "## Task Context", "[✓] 1. scaffold", "[>] 2. core"} {
		if !strings.Contains(out, want) {
			t.Errorf("root render missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "2.1") {
		t.Errorf("root render should not include nested steps:\n%s", out)
	}
}

func TestRenderStepShowsPathAndCriteria(t *testing.T) {
	out, err := RenderStep(sampleDoc(), "2.1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"[✓] 1. scaffold",       // top-level siblings
		"[ ] 2.1. parser",       // siblings at the step's level
		"[✗] 2.2. emitter",      // including blocked ones
		"use the line parser",   // details of the selected path node
		"- parser tests pass",   // criteria for the target step only
	} {
		if !strings.Contains(out, want) {
			t.Errorf("step render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStepUnknownNumber(t *testing.T) {
	if _, err := RenderStep(sampleDoc(), "9.9"); err == nil {
		t.Error("expected error for unknown step")
	}
}

func TestRenderTreeIncludesBlockedReason(t *testing.T) {
	out := RenderTree(sampleDoc())
	if !strings.Contains(out, "blocked: tiers exhausted") {
		t.Errorf("tree render missing blocked reason:\n%s", out)
	}
	if !strings.Contains(out, "  [✗] 2.2. emitter") {
		t.Errorf("tree render missing indented child:\n%s", out)
	}
}

func TestAncestors(t *testing.T) {
	got := ancestors("1.2.3")
	want := []string{"1", "1.2", "1.2.3"}
	if len(got) != len(want) {
		t.Fatalf("ancestors(1.2.3) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ancestors[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
