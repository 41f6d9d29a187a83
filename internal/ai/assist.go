package ai

import (
	"context"
	"fmt"
)

// Assistant issues the one-shot advisory calls that sit outside the
// translation loop: explaining a pending command and analysing a failed
// one during error recovery.
type Assistant struct {
	completer Completer
	model     string
}

func NewAssistant(completer Completer, model string) *Assistant {
	return &Assistant{completer: completer, model: model}
}

// Explain describes what a command does before the user confirms it.
func (a *Assistant) Explain(ctx context.Context, command string) (string, error) {
	return a.completer.Complete(ctx, a.model, explainSystemPrompt, command)
}

// AnalyzeFailure diagnoses a failed execution from its exit code and
// captured stderr.
func (a *Assistant) AnalyzeFailure(ctx context.Context, command string, exitCode int, stderr string) (string, error) {
	prompt := fmt.Sprintf("Command: %s\nExit code: %d\nStderr:\n%s", command, exitCode, stderr)
	return a.completer.Complete(ctx, a.model, failureAnalysisSystemPrompt, prompt)
}
