package categorize

import "fmt"

// Decision is the result of one confirmation-flow step.
type Decision int

const (
	// DecisionPending means the flow needs more input.
	DecisionPending Decision = iota

	// DecisionExecute proceeds with the flow's current command.
	DecisionExecute

	// DecisionExplain asks the router to fetch an AI explanation of the
	// pending command, then re-prompt. The flow stays active.
	DecisionExplain

	// DecisionCancel abandons the command.
	DecisionCancel
)

type confirmStep int

const (
	confirmChoice confirmStep = iota
	confirmModify
	confirmDone
)

// ConfirmFlow is the yes/explain/modify/cancel prompt shown after the
// translator produced a command. Validated marks whether the validator
// actually confirmed it, so the prompt can flag best-effort candidates.
type ConfirmFlow struct {
	command   string
	validated bool
	step      confirmStep
}

func NewConfirmFlow(command string, validated bool) *ConfirmFlow {
	return &ConfirmFlow{command: command, validated: validated}
}

// Command returns the command currently pending confirmation.
func (c *ConfirmFlow) Command() string { return c.command }

// Prompt renders the menu for the current step.
func (c *ConfirmFlow) Prompt() []string {
	if c.step == confirmModify {
		return []string{
			fmt.Sprintf("Current command: %s", c.command),
			"Enter the new command (empty keeps it unchanged):",
		}
	}
	header := fmt.Sprintf("AI suggests: %s", c.command)
	if !c.validated {
		header += "  (not confirmed by the validator)"
	}
	return []string{
		header,
		"  y) run it   e) explain   m) modify   c) cancel",
	}
}

// Advance feeds one input line. Invalid input re-prompts the same step.
func (c *ConfirmFlow) Advance(input string) (Decision, bool) {
	switch c.step {
	case confirmChoice:
		switch input {
		case "y", "Y", "yes":
			c.step = confirmDone
			return DecisionExecute, true
		case "e", "E":
			return DecisionExplain, false
		case "m", "M":
			c.step = confirmModify
			return DecisionPending, false
		case "c", "C", "n", "N":
			c.step = confirmDone
			return DecisionCancel, true
		}
		return DecisionPending, false
	case confirmModify:
		if input != "" {
			c.command = input
		}
		c.step = confirmDone
		return DecisionExecute, true
	}
	return DecisionCancel, true
}

// Cancel resolves the flow as cancelled on interrupt.
func (c *ConfirmFlow) Cancel() Decision {
	c.step = confirmDone
	return DecisionCancel
}
