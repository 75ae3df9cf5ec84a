package agents

import (
	"context"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// StubPlanner is the dry-run planner: deterministic output, no subprocess.
// Root planning yields two dependent items; refining a step yields one
// atomic child, so the run exercises recursion exactly one level deep.
type StubPlanner struct{}

// Plan returns canned items for the requested scope.
func (StubPlanner) Plan(_ context.Context, req PlanRequest) (PlanResult, error) {
	if req.StepNumber == "" {
		return PlanResult{
			Title: "Dry run",
			Items: []models.ItemSpec{
				{Number: "1", Text: "First dry-run step", DoneWhen: []string{"it is done"}},
				{Number: "2", Text: "Second dry-run step", DependsOn: []string{"1"}, DoneWhen: []string{"it is done"}},
			},
		}, nil
	}
	return PlanResult{
		Items: []models.ItemSpec{
			{Number: req.StepNumber + ".1", Text: "Dry-run substep", DoneWhen: []string{"it is done"}},
		},
	}, nil
}

// StubWorker is the dry-run worker: every attempt succeeds immediately.
type StubWorker struct{}

// Spawn records the tier and does nothing else.
func (StubWorker) Spawn(_ context.Context, tier models.Tier, _, _ string) (*WorkerRun, error) {
	return &WorkerRun{Tier: tier}, nil
}

// Watch reports instant success.
func (StubWorker) Watch(_ *WorkerRun) (WorkerOutcome, error) {
	return WorkerOutcome{ExitCode: 0}, nil
}

// StubVerifier is the dry-run verifier: every step passes.
type StubVerifier struct{}

// Verify approves unconditionally.
func (StubVerifier) Verify(_ context.Context, _ VerifyRequest) (Verdict, error) {
	return Verdict{Passed: true}, nil
}

var (
	_ Planner  = StubPlanner{}
	_ Worker   = StubWorker{}
	_ Verifier = StubVerifier{}
)
