package agents

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tmcfarlane/foreman/internal/exec"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Verdict
		wantErr bool
	}{
		{"pass", `{"passed": true}`, Verdict{Passed: true}, false},
		{"pass with note", `{"passed": true, "note": " looks good "}`, Verdict{Passed: true, Note: "looks good"}, false},
		{"fail with note", `{"passed": false, "note": "tests missing"}`, Verdict{Passed: false, Note: "tests missing"}, false},
		{"fail without note", `{"passed": false}`, Verdict{Passed: false, Note: DefaultRejectionNote}, false},
		{"fail with blank note", `{"passed": false, "note": "   "}`, Verdict{Passed: false, Note: DefaultRejectionNote}, false},
		{"missing passed", `{"note": "x"}`, Verdict{}, true},
		{"not an object", `[true]`, Verdict{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(json.RawMessage(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVerdict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseVerdict() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExternalVerifierEndToEnd(t *testing.T) {
	promptFile, schemaFile := writeRoleFiles(t)
	runner := &fakeRunner{result: exec.Result{
		Stdout: `[{"type": "result", "structured_output": {"passed": false, "note": "no tests"}}]`,
	}}
	verifier := &ExternalVerifier{Command: []string{"agent"}, Model: "sonnet", Runner: runner}

	verdict, err := verifier.Verify(context.Background(), VerifyRequest{PromptFile: promptFile, SchemaFile: schemaFile})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Passed || verdict.Note != "no tests" {
		t.Errorf("Verify() = %+v, want rejection with note", verdict)
	}
	if !strings.Contains(strings.Join(runner.args, " "), "--model sonnet") {
		t.Errorf("model flag missing: %v", runner.args)
	}
}

func TestExternalVerifierProcessFailure(t *testing.T) {
	promptFile, schemaFile := writeRoleFiles(t)
	runner := &fakeRunner{result: exec.Result{ExitCode: 2, Stderr: "boom"}}
	verifier := &ExternalVerifier{Command: []string{"agent"}, Runner: runner}

	if _, err := verifier.Verify(context.Background(), VerifyRequest{PromptFile: promptFile, SchemaFile: schemaFile}); err == nil {
		t.Error("Verify() succeeded on nonzero exit, want error")
	}
}
