package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tmcfarlane/foreman/internal/exec"
)

// ExternalVerifier runs a verification CLI as a subprocess and parses its
// verdict.
type ExternalVerifier struct {
	// Command is the executable plus leading arguments.
	Command []string
	// Model is the model identifier passed to the CLI, if any.
	Model string
	// Runner executes the subprocess.
	Runner exec.CommandRunner
	// WorkDir is the directory the verifier process runs in.
	WorkDir string
}

// Verify runs the verifier against the rendered prompt and returns its
// verdict. A rejection without a note gets DefaultRejectionNote so the
// failure log always has content.
func (v *ExternalVerifier) Verify(ctx context.Context, req VerifyRequest) (Verdict, error) {
	prompt, err := os.ReadFile(req.PromptFile)
	if err != nil {
		return Verdict{}, fmt.Errorf("read verifier prompt: %w", err)
	}
	schema, err := compactSchema(req.SchemaFile)
	if err != nil {
		return Verdict{}, err
	}

	name, args, err := roleCommand(v.Command, v.Model, string(prompt), schema)
	if err != nil {
		return Verdict{}, fmt.Errorf("verifier: %w", err)
	}
	res, err := v.Runner.Capture(ctx, v.WorkDir, name, args...)
	if err != nil {
		return Verdict{}, fmt.Errorf("verifier: %w", err)
	}
	if res.ExitCode != 0 {
		return Verdict{}, fmt.Errorf("verifier exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	payload, err := extractStructured(res.Stdout)
	if err != nil {
		return Verdict{}, fmt.Errorf("verifier output: %w", err)
	}
	return parseVerdict(payload)
}

// parseVerdict validates the verdict shape: an object with a required
// boolean "passed" and an optional string "note".
func parseVerdict(payload json.RawMessage) (Verdict, error) {
	var raw struct {
		Passed *bool   `json:"passed"`
		Note   *string `json:"note"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Verdict{}, fmt.Errorf("verifier returned non-object JSON: %w", err)
	}
	if raw.Passed == nil {
		return Verdict{}, fmt.Errorf("verifier JSON missing required boolean: passed")
	}

	verdict := Verdict{Passed: *raw.Passed}
	if raw.Note != nil {
		verdict.Note = strings.TrimSpace(*raw.Note)
	}
	if !verdict.Passed && verdict.Note == "" {
		verdict.Note = DefaultRejectionNote
	}
	return verdict, nil
}

var _ Verifier = (*ExternalVerifier)(nil)
