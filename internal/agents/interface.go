// Package agents defines the process-boundary contracts for the three agent
// roles Foreman coordinates: planner, worker, and verifier. Each role is a
// small interface with a deterministic stub (dry-run) and an external
// subprocess implementation, so the orchestrator never depends on any
// particular provider or CLI.
package agents

import (
	"context"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// PlanRequest carries the inputs for one planning call.
type PlanRequest struct {
	// PromptFile is the rendered planner prompt on disk.
	PromptFile string
	// SchemaFile is the JSON Schema the planner process is asked to honor.
	SchemaFile string
	// StepNumber is the step being refined; empty means root planning.
	StepNumber string
}

// PlanResult is the validated output of a planning call.
type PlanResult struct {
	// Title is an optional plan title, only meaningful at root planning.
	Title string
	// Items are the immediate children for the planned scope, one level deep.
	Items []models.ItemSpec
}

// Planner produces plan items for the root task or a specific step.
// Implementations fail loudly on process errors or malformed output; the
// orchestrator has no retry layer above this role.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResult, error)
}

// WorkerRun is an opaque handle for one in-flight worker attempt. The
// orchestrator never inspects backend internals; whatever Spawn stores here
// is private to the implementation's Watch.
type WorkerRun struct {
	// Tier is the strength level this attempt runs at.
	Tier models.Tier
	// opaque carries backend-specific state (e.g. a subprocess handle).
	opaque any
}

// WorkerOutcome is the typed result of a finished worker attempt. A nonzero
// exit code is an expected outcome driving tier retry, not an error.
type WorkerOutcome struct {
	ExitCode int
	Note     string
}

// Worker executes one implementation attempt in a step's workspace.
// Spawn must not block; Watch blocks until the attempt completes. Errors are
// reserved for invocation failure (missing executable, broken pipe) — a
// failing step is expressed through WorkerOutcome.ExitCode so the tier-retry
// state machine can run.
type Worker interface {
	Spawn(ctx context.Context, tier models.Tier, promptFile, dir string) (*WorkerRun, error)
	Watch(run *WorkerRun) (WorkerOutcome, error)
}

// VerifyRequest carries the evidence for one verification call.
type VerifyRequest struct {
	// PromptFile is the rendered verifier prompt on disk.
	PromptFile string
	// SchemaFile is the JSON Schema for the verdict shape.
	SchemaFile string
	// Diff is the unified diff since the step's merge base.
	Diff string
	// Commits are the step's commit SHAs, oldest first.
	Commits []string
	// Node is the step under verification.
	Node *models.Node
}

// Verdict is the verifier's decision. A failed verdict always carries a
// non-empty note so downstream logging has content.
type Verdict struct {
	Passed bool
	Note   string
}

// Verifier checks a step's changes against its acceptance criteria.
// Process and parse failures are loud, like the planner's.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (Verdict, error)
}

// DefaultRejectionNote is synthesized when a verifier rejects without
// explanation.
const DefaultRejectionNote = "Rejected with no note."
