package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tmcfarlane/foreman/internal/agents"
	"github.com/tmcfarlane/foreman/internal/plan"
	"github.com/tmcfarlane/foreman/internal/workspace"
	"github.com/tmcfarlane/foreman/pkg/models"
)

// countingGit is an inert git client that records mutation calls.
type countingGit struct {
	resets []string
	merges []string
}

func (g *countingGit) CurrentBranch(string) (string, error)       { return "main", nil }
func (g *countingGit) BranchExists(string) (bool, error)          { return false, nil }
func (g *countingGit) Worktrees() (map[string]string, error)      { return nil, nil }
func (g *countingGit) WorktreeAdd(string, string) error           { return nil }
func (g *countingGit) WorktreeAddNewBranch(_, _, _ string) error  { return nil }
func (g *countingGit) MergeBase(_, _, _ string) (string, error)   { return "BASE", nil }
func (g *countingGit) DiffSince(_, _ string) (string, error)      { return "", nil }
func (g *countingGit) CommitsSince(_, _ string) ([]string, error) { return nil, nil }
func (g *countingGit) CommitAllIfNeeded(_, _ string) error        { return nil }

func (g *countingGit) ResetHard(_, ref string) error {
	g.resets = append(g.resets, ref)
	return nil
}

func (g *countingGit) MergeInto(_, source string) error {
	g.merges = append(g.merges, source)
	return nil
}

// singleStepPlanner plans one top-level item and refines every step into
// itself, so each plan node is atomic.
type singleStepPlanner struct {
	calls int
}

func (p *singleStepPlanner) Plan(_ context.Context, req agents.PlanRequest) (agents.PlanResult, error) {
	p.calls++
	if req.StepNumber == "" {
		return agents.PlanResult{
			Title: "One step",
			Items: []models.ItemSpec{{Number: "1", Text: "the only step", DoneWhen: []string{"done"}}},
		}, nil
	}
	return agents.PlanResult{
		Items: []models.ItemSpec{{Number: req.StepNumber, Text: "the only step", DoneWhen: []string{"done"}}},
	}, nil
}

// scriptWorker returns the scripted exit codes in order, then zeroes.
type scriptWorker struct {
	exits  []int
	spawns int
}

func (w *scriptWorker) Spawn(_ context.Context, tier models.Tier, _, _ string) (*agents.WorkerRun, error) {
	w.spawns++
	return &agents.WorkerRun{Tier: tier}, nil
}

func (w *scriptWorker) Watch(*agents.WorkerRun) (agents.WorkerOutcome, error) {
	if len(w.exits) == 0 {
		return agents.WorkerOutcome{ExitCode: 0}, nil
	}
	code := w.exits[0]
	w.exits = w.exits[1:]
	return agents.WorkerOutcome{ExitCode: code}, nil
}

// scriptVerifier returns the scripted verdicts in order, then passes.
type scriptVerifier struct {
	verdicts []agents.Verdict
}

func (v *scriptVerifier) Verify(context.Context, agents.VerifyRequest) (agents.Verdict, error) {
	if len(v.verdicts) == 0 {
		return agents.Verdict{Passed: true}, nil
	}
	verdict := v.verdicts[0]
	v.verdicts = v.verdicts[1:]
	return verdict, nil
}

type harness struct {
	orch *Orchestrator
	cfg  Config
	git  *countingGit
}

func newHarness(t *testing.T, planner agents.Planner, worker agents.Worker, verifier agents.Verifier, tiers ...models.Tier) *harness {
	t.Helper()
	root := t.TempDir()
	if len(tiers) == 0 {
		tiers = models.Ladder{"fast", "big"}
	}
	g := &countingGit{}
	cfg := Config{
		ControlRoot:       root,
		PlanPath:          filepath.Join(root, ".foreman", "plan.json"),
		HistoryDir:        filepath.Join(root, ".foreman", "plan-history"),
		PromptsDir:        filepath.Join(root, ".foreman", "prompts"),
		FailuresPath:      filepath.Join(root, ".foreman", "failures.md"),
		PlanSchemaPath:    filepath.Join(root, "plan-schema.json"),
		VerdictSchemaPath: filepath.Join(root, "verdict-schema.json"),
		Ladder:            models.Ladder(tiers),
		Planner:           planner,
		Worker:            worker,
		Verifier:          verifier,
		Git:               g,
		Workspaces:        workspace.NewDryRunManager(root),
		Log:               io.Discard,
	}
	return &harness{orch: New(cfg), cfg: cfg, git: g}
}

func (h *harness) loadPlan(t *testing.T) *plan.Document {
	t.Helper()
	doc, err := plan.Load(h.cfg.PlanPath)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	return doc
}

func TestRunFreshPlanCompletes(t *testing.T) {
	h := newHarness(t, agents.StubPlanner{}, agents.StubWorker{}, agents.StubVerifier{})

	if err := h.orch.Run(context.Background(), "build the widget", "", false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc := h.loadPlan(t)
	if !doc.IsComplete() {
		t.Errorf("plan not complete after run:\n%s", plan.RenderTree(doc))
	}
	for _, number := range []string{"1", "2"} {
		done, err := doc.IsDone(number)
		if err != nil || !done {
			t.Errorf("step %s done = %v, %v; want done", number, done, err)
		}
	}
	if len(h.git.merges) != 2 {
		t.Errorf("merges = %v, want one per top-level step", h.git.merges)
	}
	if len(h.git.resets) != 0 {
		t.Errorf("resets = %v, want none on a clean run", h.git.resets)
	}
}

func TestRunWorkerAlwaysFailsBlocksStep(t *testing.T) {
	worker := &scriptWorker{exits: []int{1, 1, 1, 1}}
	h := newHarness(t, &singleStepPlanner{}, worker, &scriptVerifier{})

	if err := h.orch.Run(context.Background(), "impossible task", "", false); err != nil {
		t.Fatalf("Run() error = %v, blocked steps must not fail the run", err)
	}

	doc := h.loadPlan(t)
	node, err := doc.Get("1")
	if err != nil {
		t.Fatal(err)
	}
	if node.Status != models.StatusBlocked {
		t.Errorf("status = %s, want blocked", node.Status)
	}
	if node.BlockedReason == "" {
		t.Error("blocked step has no reason")
	}
	if len(h.git.resets) != 2 {
		t.Errorf("resets = %v, want one rollback per tier", h.git.resets)
	}
	if len(h.git.merges) != 0 {
		t.Errorf("merges = %v, want none for a blocked step", h.git.merges)
	}

	raw, err := os.ReadFile(h.cfg.FailuresPath)
	if err != nil {
		t.Fatalf("failure log missing: %v", err)
	}
	if !strings.Contains(string(raw), "### 1 (fast)") || !strings.Contains(string(raw), "### 1 (big)") {
		t.Errorf("failure log missing per-tier entries:\n%s", raw)
	}
}

func TestRunVerifierRejectsFirstTierThenPasses(t *testing.T) {
	worker := &scriptWorker{}
	verifier := &scriptVerifier{verdicts: []agents.Verdict{{Passed: false, Note: "tests missing"}}}
	h := newHarness(t, &singleStepPlanner{}, worker, verifier)

	if err := h.orch.Run(context.Background(), "flaky task", "", false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc := h.loadPlan(t)
	done, err := doc.IsDone("1")
	if err != nil || !done {
		t.Fatalf("step 1 done = %v, %v; want done after second tier", done, err)
	}
	if len(h.git.resets) != 1 {
		t.Errorf("resets = %v, want exactly one rollback", h.git.resets)
	}
	if len(h.git.merges) != 1 {
		t.Errorf("merges = %v, want exactly one merge", h.git.merges)
	}
	if worker.spawns != 2 {
		t.Errorf("worker spawns = %d, want 2", worker.spawns)
	}

	raw, err := os.ReadFile(h.cfg.FailuresPath)
	if err != nil {
		t.Fatalf("failure log missing: %v", err)
	}
	if !strings.Contains(string(raw), "tests missing") {
		t.Errorf("verifier note not recorded:\n%s", raw)
	}
}

func TestRunSameTaskResumesWithoutReset(t *testing.T) {
	planner := &singleStepPlanner{}
	worker := &scriptWorker{}
	h := newHarness(t, planner, worker, &scriptVerifier{})

	const task = "repeatable task"
	if err := h.orch.Run(context.Background(), task, "", false); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	spawnsAfterFirst := worker.spawns

	if err := h.orch.Run(context.Background(), task, "", false); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if worker.spawns != spawnsAfterFirst {
		t.Errorf("second run re-executed done steps: spawns %d -> %d", spawnsAfterFirst, worker.spawns)
	}
	if _, err := os.Stat(h.cfg.HistoryDir); !errors.Is(err, os.ErrNotExist) {
		t.Error("second run archived the plan; matching context must resume, not reset")
	}
	if !h.loadPlan(t).IsComplete() {
		t.Error("plan no longer complete after resume")
	}
}

func TestRunDifferentTaskOnIncompletePlanFails(t *testing.T) {
	worker := &scriptWorker{exits: []int{1, 1}}
	h := newHarness(t, &singleStepPlanner{}, worker, &scriptVerifier{})

	if err := h.orch.Run(context.Background(), "original task", "", false); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if h.loadPlan(t).IsComplete() {
		t.Fatal("setup broken: plan should be incomplete (blocked step)")
	}

	err := h.orch.Run(context.Background(), "a different task", "", false)
	if !errors.Is(err, ErrTaskMismatch) {
		t.Errorf("Run() error = %v, want ErrTaskMismatch", err)
	}
}

func TestRunResetArchivesPriorPlan(t *testing.T) {
	h := newHarness(t, &singleStepPlanner{}, &scriptWorker{}, &scriptVerifier{})

	if err := h.orch.Run(context.Background(), "first task", "", false); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := h.orch.Run(context.Background(), "second task", "", true); err != nil {
		t.Fatalf("reset Run() error = %v", err)
	}

	entries, err := os.ReadDir(h.cfg.HistoryDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("history entries = %v (err %v), want exactly one archive", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "plan-") {
		t.Errorf("archive name = %q, want plan-<timestamp>.json", entries[0].Name())
	}

	doc := h.loadPlan(t)
	if doc.Context != "second task" {
		t.Errorf("plan context = %q, want the new task", doc.Context)
	}
}

func TestRunSingleStepSubtree(t *testing.T) {
	planner := &singleStepPlanner{}
	h := newHarness(t, planner, &scriptWorker{}, &scriptVerifier{})

	// Seed a two-step plan manually so --step targets one of them.
	doc := &plan.Document{
		Title:   "Seeded",
		Context: "seeded task",
		Items: []models.Node{
			{Number: "1", Text: "first", Status: models.StatusDone},
			{Number: "2", Text: "second", Status: models.StatusPending},
		},
	}
	if err := doc.Save(h.cfg.PlanPath); err != nil {
		t.Fatal(err)
	}

	if err := h.orch.Run(context.Background(), "seeded task", "2", false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc = h.loadPlan(t)
	done, err := doc.IsDone("2")
	if err != nil || !done {
		t.Errorf("step 2 done = %v, %v; want done", done, err)
	}
	if len(h.git.merges) != 1 {
		t.Errorf("merges = %v, want just the targeted step", h.git.merges)
	}
}
