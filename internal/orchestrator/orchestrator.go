// Package orchestrator drives the plan -> work -> verify -> merge loop over a
// persisted plan document and a set of git worktrees. The loop is restartable:
// every status transition is written to the plan file before the next side
// effect, and branch names are stable across runs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmcfarlane/foreman/internal/agents"
	"github.com/tmcfarlane/foreman/internal/git"
	"github.com/tmcfarlane/foreman/internal/plan"
	"github.com/tmcfarlane/foreman/internal/schedule"
	"github.com/tmcfarlane/foreman/internal/workspace"
	"github.com/tmcfarlane/foreman/pkg/models"
)

// RootBranch is the branch all top-level steps merge into. It is created from
// whatever branch Foreman is invoked on.
const RootBranch = "foreman/root"

// branchPrefix is the namespace reserved for step branches.
const branchPrefix = "foreman/"

// ErrTaskMismatch indicates the existing plan file belongs to a different,
// unfinished task.
var ErrTaskMismatch = errors.New(
	"plan file already exists for a different task and is not complete; use --reset to overwrite")

// Config wires the orchestrator's collaborators and filesystem layout.
type Config struct {
	// ControlRoot is the repository root Foreman was invoked from.
	ControlRoot string
	// PlanPath is the plan document, the single source of truth for progress.
	PlanPath string
	// HistoryDir receives archived plan files on reset.
	HistoryDir string
	// PromptsDir receives rendered role prompts.
	PromptsDir string
	// FailuresPath is the append-only failure log.
	FailuresPath string
	// PlanSchemaPath and VerdictSchemaPath are the JSON Schemas handed to the
	// planner and verifier CLIs.
	PlanSchemaPath    string
	VerdictSchemaPath string

	// Ladder is the worker escalation ladder, weakest first.
	Ladder models.Ladder

	Planner  agents.Planner
	Worker   agents.Worker
	Verifier agents.Verifier

	Git        git.Client
	Workspaces *workspace.Manager
	// Ledger records run history; nil disables recording.
	Ledger *workspace.Ledger

	// Per-role timeouts. Zero disables the deadline.
	PlannerTimeout  time.Duration
	WorkerTimeout   time.Duration
	VerifierTimeout time.Duration

	// Log receives progress lines; nil means os.Stderr.
	Log io.Writer
}

// Orchestrator executes one plan run.
type Orchestrator struct {
	cfg Config
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	return &Orchestrator{cfg: cfg}
}

// Run is the CLI entry point. taskText initializes the plan file when it does
// not exist (or on reset); startStep limits the run to one step and its
// subtree; empty startStep runs the whole plan.
//
// Blocked steps do not fail the run; planner, verifier, git, and plan-store
// failures do.
func (o *Orchestrator) Run(ctx context.Context, taskText, startStep string, reset bool) error {
	doc, err := o.loadOrInit(taskText, reset)
	if err != nil {
		return err
	}
	o.logf("plan: %s", o.cfg.PlanPath)
	o.logf("plan stats: items=%d complete=%v", len(doc.Items), doc.IsComplete())

	baseBranch, err := o.cfg.Git.CurrentBranch(o.cfg.ControlRoot)
	if err != nil {
		return err
	}
	rootWs, err := o.cfg.Workspaces.Ensure(RootBranch, baseBranch)
	if err != nil {
		return err
	}
	o.logf("root workspace: %s -> %s", rootWs.Branch, rootWs.Path)

	if startStep == "" {
		if err := o.ensurePlanned(ctx, doc, ""); err != nil {
			return err
		}
		doc, err = o.reload()
		if err != nil {
			return err
		}
		if doc.IsComplete() {
			o.logf("all steps done; nothing to do")
			return nil
		}

		run := schedule.NewRun(doc.Items, o.isDoneLive)
		for {
			batch, err := run.Next()
			if err != nil {
				return err
			}
			if batch == nil {
				return nil
			}
			for _, item := range batch {
				if err := o.runStep(ctx, doc, item.Number, RootBranch, rootWs); err != nil {
					return err
				}
				doc, err = o.reload()
				if err != nil {
					return err
				}
			}
		}
	}

	node, err := doc.Get(startStep)
	if err != nil {
		return err
	}
	parentBranch := parentBranchOf(node.Number)
	parentWs, err := o.cfg.Workspaces.Ensure(parentBranch, RootBranch)
	if err != nil {
		return err
	}
	return o.runStep(ctx, doc, node.Number, parentBranch, parentWs)
}

// runStep executes one step: plan it if needed, then either implement it
// directly (atomic) or recurse into its children and merge the subtree up.
func (o *Orchestrator) runStep(ctx context.Context, doc *plan.Document, number, parentBranch string, parentWs workspace.Workspace) error {
	current, err := doc.Get(number)
	if err != nil {
		return err
	}
	if current.Status == models.StatusDone || current.Status == models.StatusBlocked {
		return nil
	}

	tag := stepTag(number)
	o.logf("%s start", tag)
	defer o.logf("%s end", tag)

	// Mark doing before any side effect so an interrupted run is visible.
	if err := doc.SetStatus(number, models.StatusDoing); err != nil {
		return err
	}
	if err := o.save(doc); err != nil {
		return err
	}

	stepBranch := branchPrefix + number
	stepWs, err := o.cfg.Workspaces.Ensure(stepBranch, parentBranch)
	if err != nil {
		return err
	}

	if err := o.ensurePlanned(ctx, doc, number); err != nil {
		return err
	}
	doc, err = o.reload()
	if err != nil {
		return err
	}
	step, err := doc.Get(number)
	if err != nil {
		return err
	}

	if step.Atomic() {
		return o.implementAtomic(ctx, doc, step, stepWs, parentBranch, parentWs)
	}

	run := schedule.NewRun(step.Children, o.isDoneLive)
	for {
		batch, err := run.Next()
		if err != nil {
			return err
		}
		if batch == nil {
			break
		}
		for _, child := range batch {
			if err := o.runStep(ctx, doc, child.Number, stepBranch, stepWs); err != nil {
				return err
			}
			doc, err = o.reload()
			if err != nil {
				return err
			}
		}
	}

	// A subtree merges up only when every child landed; otherwise the blocked
	// children poison the parent.
	step, err = doc.Get(number)
	if err != nil {
		return err
	}
	if stuck := unfinishedChildren(step); len(stuck) > 0 {
		reason := fmt.Sprintf("Children not done: %s. Resolve them and re-run.", strings.Join(stuck, ", "))
		if err := doc.SetBlocked(number, reason); err != nil {
			return err
		}
		if err := o.save(doc); err != nil {
			return err
		}
		o.logf("%s blocked: %s", tag, reason)
		return nil
	}
	return o.mergeStepIntoParent(doc, number, stepBranch, parentBranch, parentWs)
}

// ensurePlanned runs the planner for the root task (number == "") or one
// step, unless it is already planned. A single returned item is an atomic
// refinement of the step itself; multiple items become its children.
func (o *Orchestrator) ensurePlanned(ctx context.Context, doc *plan.Document, number string) error {
	if number == "" {
		if len(doc.Items) > 0 {
			return nil
		}
	} else {
		node, err := doc.Get(number)
		if err != nil {
			return err
		}
		if len(node.Children) > 0 {
			return nil
		}
	}

	target := "root"
	if number != "" {
		target = "step " + number
	}
	o.logf("planning: %s", target)

	promptFile, err := o.writeRolePrompt(doc, number, rolePlanner)
	if err != nil {
		return err
	}

	planCtx, cancel := withTimeout(ctx, o.cfg.PlannerTimeout)
	defer cancel()
	result, err := o.cfg.Planner.Plan(planCtx, agents.PlanRequest{
		PromptFile: promptFile,
		SchemaFile: o.cfg.PlanSchemaPath,
		StepNumber: number,
	})
	if err != nil {
		return err
	}

	if number == "" {
		if result.Title != "" {
			doc.Title = result.Title
		}
		doc.Items = make([]models.Node, 0, len(result.Items))
		for _, spec := range result.Items {
			doc.Items = append(doc.Items, spec.NewNode())
		}
	} else if len(result.Items) == 1 {
		// Atomic refinement: the planner decided this step needs no breakdown.
		if err := doc.ApplySpec(number, result.Items[0]); err != nil {
			return err
		}
		node, err := doc.Get(number)
		if err != nil {
			return err
		}
		node.Children = nil
	} else {
		if err := doc.UpsertChildren(number, result.Items); err != nil {
			return err
		}
	}
	return o.save(doc)
}

// implementAtomic runs the worker/verifier ladder for a leaf step. Every
// failed attempt is reset back to the merge base so tiers never see each
// other's partial work. Exhausting the ladder blocks the step; it does not
// fail the run.
func (o *Orchestrator) implementAtomic(ctx context.Context, doc *plan.Document, step *models.Node, stepWs workspace.Workspace, parentBranch string, parentWs workspace.Workspace) error {
	baseCommit, err := o.cfg.Git.MergeBase(stepWs.Path, stepWs.Branch, parentBranch)
	if err != nil {
		return err
	}

	tag := stepTag(step.Number)
	for _, tier := range o.cfg.Ladder {
		o.logf("%s worker start tier=%s", tag, tier)
		promptFile, err := o.writeRolePrompt(doc, step.Number, roleWorker)
		if err != nil {
			return err
		}

		outcome, err := o.runWorker(ctx, tier, promptFile, stepWs.Path)
		if err != nil {
			return err
		}
		o.logf("%s worker end exit=%d", tag, outcome.ExitCode)
		if outcome.ExitCode != 0 {
			note := fmt.Sprintf(
				"Worker CLI exited non-zero.\n\n- exit_code: %d\n- action: reset worktree to base and retry with next tier\n",
				outcome.ExitCode)
			if err := o.appendFailure(step.Number, tier, note); err != nil {
				return err
			}
			if err := o.cfg.Git.ResetHard(stepWs.Path, baseCommit); err != nil {
				return err
			}
			continue
		}

		message := fmt.Sprintf("foreman: %s %s", step.Number, truncate(step.Text, 72))
		if err := o.cfg.Git.CommitAllIfNeeded(stepWs.Path, message); err != nil {
			return err
		}

		diff, err := o.cfg.Git.DiffSince(stepWs.Path, baseCommit)
		if err != nil {
			return err
		}
		commits, err := o.cfg.Git.CommitsSince(stepWs.Path, baseCommit)
		if err != nil {
			return err
		}
		verifierPrompt, err := o.writeVerifierPrompt(doc, step.Number, diff, commits)
		if err != nil {
			return err
		}

		verifyCtx, cancel := withTimeout(ctx, o.cfg.VerifierTimeout)
		verdict, err := o.cfg.Verifier.Verify(verifyCtx, agents.VerifyRequest{
			PromptFile: verifierPrompt,
			SchemaFile: o.cfg.VerdictSchemaPath,
			Diff:       diff,
			Commits:    commits,
			Node:       step,
		})
		cancel()
		if err != nil {
			return err
		}
		o.logf("%s verifier passed=%v", tag, verdict.Passed)
		if verdict.Passed {
			return o.mergeStepIntoParent(doc, step.Number, stepWs.Branch, parentBranch, parentWs)
		}

		note := verdict.Note
		if note == "" {
			note = agents.DefaultRejectionNote
		}
		if err := o.appendFailure(step.Number, tier, note); err != nil {
			return err
		}
		if err := o.cfg.Git.ResetHard(stepWs.Path, baseCommit); err != nil {
			return err
		}
	}

	reason := fmt.Sprintf("All worker tiers failed verification. See %s for notes.", o.cfg.FailuresPath)
	if err := doc.SetBlocked(step.Number, reason); err != nil {
		return err
	}
	return o.save(doc)
}

// runWorker runs one attempt to completion under the worker timeout.
func (o *Orchestrator) runWorker(ctx context.Context, tier models.Tier, promptFile, dir string) (agents.WorkerOutcome, error) {
	workCtx, cancel := withTimeout(ctx, o.cfg.WorkerTimeout)
	defer cancel()

	run, err := o.cfg.Worker.Spawn(workCtx, tier, promptFile, dir)
	if err != nil {
		return agents.WorkerOutcome{}, err
	}
	return o.cfg.Worker.Watch(run)
}

// mergeStepIntoParent merges the step branch into the parent branch in the
// parent's worktree, then marks the step done. Merge conflicts are fatal.
func (o *Orchestrator) mergeStepIntoParent(doc *plan.Document, number, stepBranch, parentBranch string, parentWs workspace.Workspace) error {
	if err := o.cfg.Git.MergeInto(parentWs.Path, stepBranch); err != nil {
		return fmt.Errorf("merge %s into %s: %w", stepBranch, parentBranch, err)
	}
	o.logf("%s merge %s -> %s", stepTag(number), stepBranch, parentBranch)
	if err := doc.SetStatus(number, models.StatusDone); err != nil {
		return err
	}
	return o.save(doc)
}

// loadOrInit returns the current plan document, initializing or resetting it
// from taskText when needed. An existing incomplete plan for a different task
// is refused unless reset is forced; a replaced plan file is archived
// best-effort under the history directory first.
func (o *Orchestrator) loadOrInit(taskText string, reset bool) (*plan.Document, error) {
	if _, err := os.Stat(o.cfg.PlanPath); err == nil {
		doc, err := plan.Load(o.cfg.PlanPath)
		if err != nil {
			return nil, err
		}
		incoming := strings.TrimSpace(taskText)
		existing := strings.TrimSpace(doc.Context)
		if !reset && (incoming == "" || incoming == existing) {
			return doc, nil
		}
		if !reset && !doc.IsComplete() && len(doc.Items) > 0 {
			return nil, ErrTaskMismatch
		}

		o.archivePlan()
		reason := "forced by --reset"
		if !reset {
			reason = "new task input and previous plan complete"
		}
		o.logf("resetting plan (%s)", reason)
		return o.initPlan(taskText)
	}
	return o.initPlan(taskText)
}

func (o *Orchestrator) initPlan(taskText string) (*plan.Document, error) {
	doc := &plan.Document{Title: titleFrom(taskText), Context: taskText}
	if err := o.save(doc); err != nil {
		return nil, err
	}
	if o.cfg.Ledger != nil {
		if err := o.cfg.Ledger.RecordRun(uuid.NewString(), doc.Title); err != nil {
			o.logf("record run: %v", err)
		}
	}
	return doc, nil
}

// archivePlan copies the current plan file under the history directory with a
// timestamped name. Failures are logged, never fatal.
func (o *Orchestrator) archivePlan() {
	data, err := os.ReadFile(o.cfg.PlanPath)
	if err != nil {
		o.logf("archive plan: %v", err)
		return
	}
	if err := os.MkdirAll(o.cfg.HistoryDir, 0755); err != nil {
		o.logf("archive plan: %v", err)
		return
	}
	name := fmt.Sprintf("plan-%s.json", time.Now().Format("20060102-150405"))
	if err := os.WriteFile(filepath.Join(o.cfg.HistoryDir, name), data, 0644); err != nil {
		o.logf("archive plan: %v", err)
	}
}

// isDoneLive answers scheduling queries against the on-disk document, not a
// cached copy, so recursive runs see each other's progress.
func (o *Orchestrator) isDoneLive(number string) (bool, error) {
	doc, err := plan.Load(o.cfg.PlanPath)
	if err != nil {
		return false, err
	}
	return doc.IsDone(number)
}

func (o *Orchestrator) reload() (*plan.Document, error) {
	return plan.Load(o.cfg.PlanPath)
}

func (o *Orchestrator) save(doc *plan.Document) error {
	return doc.Save(o.cfg.PlanPath)
}

func (o *Orchestrator) appendFailure(number string, tier models.Tier, note string) error {
	return appendFailure(o.cfg.FailuresPath, number, tier, note)
}

func (o *Orchestrator) logf(format string, args ...any) {
	fmt.Fprintf(o.cfg.Log, "[foreman] "+format+"\n", args...)
}

// parentBranchOf maps a step number to the branch its work merges into:
// top-level steps merge into the root branch, nested steps into their
// immediate ancestor's branch.
func parentBranchOf(number string) string {
	idx := strings.LastIndex(number, ".")
	if idx < 0 {
		return RootBranch
	}
	return branchPrefix + number[:idx]
}

// unfinishedChildren lists the direct children that did not reach done.
func unfinishedChildren(step *models.Node) []string {
	var stuck []string
	for _, child := range step.Children {
		if child.Status != models.StatusDone {
			stuck = append(stuck, child.Number)
		}
	}
	return stuck
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func titleFrom(taskText string) string {
	for _, line := range strings.Split(strings.TrimSpace(taskText), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return truncate(line, 512)
	}
	return "foreman task"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
