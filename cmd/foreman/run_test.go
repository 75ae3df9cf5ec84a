package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tmcfarlane/foreman/internal/config"
)

func TestReadTaskInputLiteral(t *testing.T) {
	got, err := readTaskInput("just do the thing")
	if err != nil {
		t.Fatalf("readTaskInput() error = %v", err)
	}
	if got != "just do the thing" {
		t.Errorf("readTaskInput() = %q, want the literal back", got)
	}
}

func TestReadTaskInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.txt")
	if err := os.WriteFile(path, []byte("task from a file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readTaskInput(path)
	if err != nil {
		t.Fatalf("readTaskInput() error = %v", err)
	}
	if got != "task from a file\n" {
		t.Errorf("readTaskInput() = %q, want file contents", got)
	}
}

func TestApplyRunFlags(t *testing.T) {
	runPlannerCmd = "my-planner"
	runWorkerTiers = "a,b,c"
	t.Cleanup(func() {
		runPlannerCmd = ""
		runWorkerTiers = ""
	})

	cfg := config.Default()
	applyRunFlags(cfg)

	if len(cfg.Roles.Planner.Command) != 1 || cfg.Roles.Planner.Command[0] != "my-planner" {
		t.Errorf("planner command = %v, want flag override", cfg.Roles.Planner.Command)
	}
	if cfg.Worker.Tiers != "a,b,c" {
		t.Errorf("tiers = %q, want flag override", cfg.Worker.Tiers)
	}
	if len(cfg.Roles.Worker.Command) != 1 || cfg.Roles.Worker.Command[0] != "claude" {
		t.Errorf("worker command = %v, want untouched default", cfg.Roles.Worker.Command)
	}
}

func TestResolveAt(t *testing.T) {
	if got := resolveAt("/repo", "plan-schema.json"); got != "/repo/plan-schema.json" {
		t.Errorf("resolveAt() = %q, want anchored at root", got)
	}
	if got := resolveAt("/repo", "/abs/schema.json"); got != "/abs/schema.json" {
		t.Errorf("resolveAt() = %q, want absolute path untouched", got)
	}
}
