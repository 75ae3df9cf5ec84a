package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tmcfarlane/foreman/internal/agents"
	"github.com/tmcfarlane/foreman/internal/config"
	"github.com/tmcfarlane/foreman/internal/exec"
	"github.com/tmcfarlane/foreman/internal/git"
	"github.com/tmcfarlane/foreman/internal/orchestrator"
	"github.com/tmcfarlane/foreman/internal/workspace"
)

var (
	runStep          string
	runPlanPath      string
	runReset         bool
	runPlanSchema    string
	runVerdictSchema string
	runDryRun        bool
	runPlannerCmd    string
	runWorkerCmd     string
	runVerifierCmd   string
	runWorkerTiers   string
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Plan and execute a task",
	Long: `Plan a task into a step tree and execute it step by step.

The task argument is a literal string, a path to a file containing the task,
or '-' to read the task from stdin. The task text initializes the plan file;
when a plan already exists for the same task, the run resumes from it.

A run that ends with blocked steps still exits 0; inspect 'foreman status'
and .foreman/failures.md, resolve the blockers, and run again.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runStep, "step", "", "run a single step (e.g. '2.3.1') instead of the whole plan")
	runCmd.Flags().StringVar(&runPlanPath, "plan", "", "path to the plan JSON file (default: .foreman/plan.json)")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "overwrite the plan file with a fresh plan for this task")
	runCmd.Flags().StringVar(&runPlanSchema, "plan-schema", "plan-schema.json", "JSON schema handed to the planner")
	runCmd.Flags().StringVar(&runVerdictSchema, "verdict-schema", "verdict-schema.json", "JSON schema handed to the verifier")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use stub agents and no-op git; smoke-tests orchestration only")
	runCmd.Flags().StringVar(&runPlannerCmd, "planner-cmd", "", "planner CLI executable (overrides config)")
	runCmd.Flags().StringVar(&runWorkerCmd, "worker-cmd", "", "worker CLI executable (overrides config)")
	runCmd.Flags().StringVar(&runVerifierCmd, "verifier-cmd", "", "verifier CLI executable (overrides config)")
	runCmd.Flags().StringVar(&runWorkerTiers, "worker-tiers", "", "comma-separated worker tiers, weakest first (overrides config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	taskText, err := readTaskInput(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	controlRoot, err := controlRoot()
	if err != nil {
		return err
	}

	orchCfg, cleanup, err := buildOrchestrator(cfg, controlRoot)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return orchestrator.New(orchCfg).Run(ctx, taskText, runStep, runReset)
}

// applyRunFlags lets command-line flags win over file and environment config.
func applyRunFlags(cfg *config.Config) {
	if runPlannerCmd != "" {
		cfg.Roles.Planner.Command = []string{runPlannerCmd}
	}
	if runWorkerCmd != "" {
		cfg.Roles.Worker.Command = []string{runWorkerCmd}
	}
	if runVerifierCmd != "" {
		cfg.Roles.Verifier.Command = []string{runVerifierCmd}
	}
	if runWorkerTiers != "" {
		cfg.Worker.Tiers = runWorkerTiers
	}
}

// buildOrchestrator assembles the orchestrator config for a real or dry run.
// The returned cleanup closes the run ledger.
func buildOrchestrator(cfg *config.Config, controlRoot string) (orchestrator.Config, func(), error) {
	ladder, err := cfg.Ladder()
	if err != nil {
		return orchestrator.Config{}, nil, err
	}

	controlDir := filepath.Join(controlRoot, cfg.Paths.ControlDir)
	planPath := runPlanPath
	if planPath == "" {
		planPath = filepath.Join(controlDir, "plan.json")
	} else {
		planPath = resolveAt(controlRoot, planPath)
	}

	orchCfg := orchestrator.Config{
		ControlRoot:       controlRoot,
		PlanPath:          planPath,
		HistoryDir:        filepath.Join(controlDir, "plan-history"),
		PromptsDir:        filepath.Join(controlDir, "prompts"),
		FailuresPath:      filepath.Join(controlDir, "failures.md"),
		PlanSchemaPath:    resolveAt(controlRoot, runPlanSchema),
		VerdictSchemaPath: resolveAt(controlRoot, runVerdictSchema),
		Ladder:            ladder,
		PlannerTimeout:    cfg.Timeouts.Planner,
		WorkerTimeout:     cfg.Timeouts.Worker,
		VerifierTimeout:   cfg.Timeouts.Verifier,
	}

	if runDryRun {
		orchCfg.Planner = agents.StubPlanner{}
		orchCfg.Worker = agents.StubWorker{}
		orchCfg.Verifier = agents.StubVerifier{}
		orchCfg.Git = git.NewNoopClient()
		orchCfg.Workspaces = workspace.NewDryRunManager(controlRoot)
		return orchCfg, func() {}, nil
	}

	ledger, err := workspace.OpenLedger(filepath.Join(controlDir, "foreman.db"))
	if err != nil {
		return orchestrator.Config{}, nil, err
	}

	gitClient := git.NewRunner(controlRoot)
	runner := exec.NewRunner()

	orchCfg.Planner = &agents.ExternalPlanner{
		Command: cfg.Roles.Planner.Command,
		Model:   cfg.Roles.Planner.Model,
		Runner:  runner,
		WorkDir: controlRoot,
	}
	orchCfg.Worker = &agents.ExternalWorker{
		Command: append(append([]string{}, cfg.Roles.Worker.Command...), "--dangerously-skip-permissions"),
	}
	orchCfg.Verifier = &agents.ExternalVerifier{
		Command: cfg.Roles.Verifier.Command,
		Model:   cfg.Roles.Verifier.Model,
		Runner:  runner,
		WorkDir: controlRoot,
	}
	orchCfg.Git = gitClient
	orchCfg.Workspaces = workspace.NewManager(gitClient, filepath.Join(controlRoot, cfg.Paths.WorktreesDir), ledger)
	orchCfg.Ledger = ledger

	return orchCfg, func() { ledger.Close() }, nil
}

// controlRoot is the directory all relative paths and git operations anchor
// to: FOREMAN_CONTROL_ROOT when set, the working directory otherwise.
func controlRoot() (string, error) {
	if root := os.Getenv("FOREMAN_CONTROL_ROOT"); root != "" {
		return filepath.Abs(root)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func resolveAt(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// readTaskInput resolves the task argument: '-' reads stdin, an existing file
// is read, anything else is the task text itself.
func readTaskInput(arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read task from stdin: %w", err)
		}
		return string(data), nil
	}
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("read task file: %w", err)
		}
		return string(data), nil
	}
	return arg, nil
}
