// Package categorize holds the interactive decision flows the router
// runs when a command needs user input before it can execute: the
// multi-step categorization wizard for unknown commands and the
// yes/explain/modify/cancel confirmation for AI-translated ones.
//
// Both flows are plain state machines with a single Advance entry
// point. They own no execution logic and never talk to the UI; the
// router renders Prompt() and forwards raw input lines.
package categorize

import (
	"fmt"

	"github.com/microx-shell/microx/internal/category"
)

// Step identifies the wizard state awaiting input.
type Step int

const (
	StepConfirmBase Step = iota
	StepEnterNew
	StepMainAction
	StepModifyCommand
	StepCategoryChoice
	StepDone
)

// OutcomeKind is the terminal result of a flow.
type OutcomeKind int

const (
	// OutcomePending means the flow needs more input.
	OutcomePending OutcomeKind = iota

	// OutcomeCategorize carries a final (command, category) pair for
	// the caller to persist and execute.
	OutcomeCategorize

	// OutcomeExecuteDefault requests a one-off run under the default
	// category without persisting anything.
	OutcomeExecuteDefault

	// OutcomeCancel abandons the command entirely.
	OutcomeCancel
)

// Outcome is what Advance hands back once the flow resolves.
type Outcome struct {
	Kind     OutcomeKind
	Command  string
	Category category.Category
}

// Flow is the categorization wizard for a command with no known
// category. At most one flow is active at a time; the router enforces
// that by ownership.
type Flow struct {
	proposed string // command as it arrived, possibly AI-processed
	original string // user's literal input when it differs, else empty
	working  string
	step     Step
}

// NewFlow starts a wizard for proposed. original is the user's literal
// input when the command came from AI translation; the base-selection
// step only appears when the two differ.
func NewFlow(proposed, original string) *Flow {
	f := &Flow{proposed: proposed, original: original, working: proposed}
	if original != "" && original != proposed {
		f.step = StepConfirmBase
	} else {
		f.step = StepMainAction
	}
	return f
}

// Step reports the state currently awaiting input.
func (f *Flow) Step() Step { return f.step }

// Working returns the command string the wizard is currently holding.
func (f *Flow) Working() string { return f.working }

// Prompt renders the menu for the current step.
func (f *Flow) Prompt() []string {
	switch f.step {
	case StepConfirmBase:
		return []string{
			fmt.Sprintf("Command '%s' is not categorized. Which base string do you want to use?", f.proposed),
			fmt.Sprintf("  1) processed: %s", f.proposed),
			fmt.Sprintf("  2) original:  %s", f.original),
			"  3) enter a different command",
			"  c) cancel",
		}
	case StepEnterNew:
		return []string{"Enter the command to categorize:"}
	case StepMainAction:
		return []string{
			fmt.Sprintf("Command '%s' is not categorized. Choose an action:", f.working),
			"  1) run as simple (output captured)",
			"  2) run as semi_interactive (tmux window, output captured on close)",
			"  3) run as interactive_tui (tmux window, full interaction)",
			"  m) modify the command first",
			"  d) run once with the default category, don't remember",
			"  c) cancel",
		}
	case StepModifyCommand:
		return []string{
			fmt.Sprintf("Current command: %s", f.working),
			"Enter the new command (empty keeps it unchanged):",
		}
	case StepCategoryChoice:
		return []string{
			fmt.Sprintf("Choose a category for '%s':", f.working),
			"  1) simple   2) semi_interactive   3) interactive_tui",
		}
	}
	return nil
}

// Advance feeds one input line into the wizard. Invalid input keeps the
// current step so the caller re-renders the same prompt; it never
// silently advances. done is true once a terminal outcome is reached.
func (f *Flow) Advance(input string) (Outcome, bool) {
	switch f.step {
	case StepConfirmBase:
		return f.advanceConfirmBase(input)
	case StepEnterNew:
		if input == "" {
			return Outcome{Kind: OutcomePending}, false
		}
		f.working = input
		f.step = StepMainAction
		return Outcome{Kind: OutcomePending}, false
	case StepMainAction:
		return f.advanceMainAction(input)
	case StepModifyCommand:
		if input != "" {
			f.working = input
		}
		f.step = StepCategoryChoice
		return Outcome{Kind: OutcomePending}, false
	case StepCategoryChoice:
		if cat, err := category.Parse(input); err == nil {
			return f.finish(Outcome{Kind: OutcomeCategorize, Command: f.working, Category: cat})
		}
		return Outcome{Kind: OutcomePending}, false
	}
	return Outcome{Kind: OutcomeCancel, Command: f.working}, true
}

func (f *Flow) advanceConfirmBase(input string) (Outcome, bool) {
	switch input {
	case "1":
		f.working = f.proposed
		f.step = StepMainAction
	case "2":
		f.working = f.original
		f.step = StepMainAction
	case "3":
		f.step = StepEnterNew
	case "c", "C":
		return f.finish(Outcome{Kind: OutcomeCancel, Command: f.working})
	default:
		// Re-prompt the same step.
	}
	return Outcome{Kind: OutcomePending}, false
}

func (f *Flow) advanceMainAction(input string) (Outcome, bool) {
	switch input {
	case "1", "2", "3":
		cat, _ := category.Parse(input)
		return f.finish(Outcome{Kind: OutcomeCategorize, Command: f.working, Category: cat})
	case "m", "M":
		f.step = StepModifyCommand
	case "d", "D":
		return f.finish(Outcome{Kind: OutcomeExecuteDefault, Command: f.working})
	case "c", "C":
		return f.finish(Outcome{Kind: OutcomeCancel, Command: f.working})
	default:
		// Re-prompt the same step.
	}
	return Outcome{Kind: OutcomePending}, false
}

// Cancel resolves the flow as cancelled, used when an interrupt arrives
// while the wizard is pending so it never dangles.
func (f *Flow) Cancel() Outcome {
	f.step = StepDone
	return Outcome{Kind: OutcomeCancel, Command: f.working}
}

func (f *Flow) finish(o Outcome) (Outcome, bool) {
	f.step = StepDone
	return o, true
}
