// Package category persists the mapping from literal command strings to
// execution categories. Two JSON layers back the store: a read-only
// default file shipped with the install and a user file rewritten on
// every mutation. The user layer always wins in the merged view.
package category

import "fmt"

// Category is the execution strategy assigned to a command.
type Category string

const (
	// Simple commands are spawned directly with captured output.
	Simple Category = "simple"

	// SemiInteractive commands run in a tmux window with their output
	// teed to a transient log that is read back after the window closes.
	SemiInteractive Category = "semi_interactive"

	// InteractiveTUI commands take over the terminal in a tmux window
	// until they exit; no output is captured.
	InteractiveTUI Category = "interactive_tui"

	// Unknown means the command has no stored category yet.
	Unknown Category = ""
)

// All lists the assignable categories in menu order (1, 2, 3).
var All = []Category{Simple, SemiInteractive, InteractiveTUI}

// Parse accepts a category name or its 1-based menu index.
func Parse(s string) (Category, error) {
	switch s {
	case "1", string(Simple):
		return Simple, nil
	case "2", string(SemiInteractive):
		return SemiInteractive, nil
	case "3", string(InteractiveTUI):
		return InteractiveTUI, nil
	}
	return Unknown, fmt.Errorf("unknown category %q (want simple, semi_interactive, interactive_tui or 1-3)", s)
}

// Index returns the 1-based menu index shown to the user.
func (c Category) Index() int {
	switch c {
	case Simple:
		return 1
	case SemiInteractive:
		return 2
	case InteractiveTUI:
		return 3
	}
	return 0
}
