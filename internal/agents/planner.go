package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tmcfarlane/foreman/internal/exec"
)

// ExternalPlanner runs a planning CLI as a subprocess and parses its
// structured JSON output.
type ExternalPlanner struct {
	// Command is the executable plus leading arguments, e.g. ["claude"].
	Command []string
	// Model is the model identifier passed to the CLI, if any.
	Model string
	// Runner executes the subprocess.
	Runner exec.CommandRunner
	// WorkDir is the directory the planner process runs in.
	WorkDir string
}

// Plan renders the CLI invocation, runs it to completion, and validates the
// returned plan items.
func (p *ExternalPlanner) Plan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	prompt, err := os.ReadFile(req.PromptFile)
	if err != nil {
		return PlanResult{}, fmt.Errorf("read planner prompt: %w", err)
	}
	schema, err := compactSchema(req.SchemaFile)
	if err != nil {
		return PlanResult{}, err
	}

	name, args, err := roleCommand(p.Command, p.Model, string(prompt), schema)
	if err != nil {
		return PlanResult{}, fmt.Errorf("planner: %w", err)
	}
	res, err := p.Runner.Capture(ctx, p.WorkDir, name, args...)
	if err != nil {
		return PlanResult{}, fmt.Errorf("planner: %w", err)
	}
	if res.ExitCode != 0 {
		return PlanResult{}, fmt.Errorf("planner exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	payload, err := extractStructured(res.Stdout)
	if err != nil {
		return PlanResult{}, fmt.Errorf("planner output: %w", err)
	}
	result, err := parsePlanPayload(payload)
	if err != nil {
		return PlanResult{}, err
	}
	return result, nil
}

// compactSchema reads a JSON Schema file and strips insignificant whitespace
// so it fits on a command line.
func compactSchema(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("compact schema %s: %w", path, err)
	}
	return buf.String(), nil
}

// roleCommand assembles the shared CLI invocation for the structured-output
// roles: prompt via -p, JSON envelope output, and the schema inline.
func roleCommand(command []string, model, prompt, schema string) (string, []string, error) {
	if len(command) == 0 {
		return "", nil, fmt.Errorf("no command configured")
	}
	args := append([]string{}, command[1:]...)
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "-p", prompt, "--output-format", "json", "--json-schema", schema)
	return command[0], args, nil
}

var _ Planner = (*ExternalPlanner)(nil)
