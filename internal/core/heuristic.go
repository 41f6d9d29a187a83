package core

import "strings"

// LooksLikeNaturalLanguage is the default phrase heuristic: it guesses
// whether an uncategorized input line is a request to translate rather
// than a literal command. The thresholds are deliberately loose and
// tunable; the router takes the heuristic as a pluggable function.
func LooksLikeNaturalLanguage(input string) bool {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return false
	}

	first := fields[0]
	// Path-like or flag-like leading tokens are commands.
	if strings.HasPrefix(first, "-") || strings.HasPrefix(first, "./") ||
		strings.HasPrefix(first, "/") || strings.HasPrefix(first, "~") {
		return false
	}
	// Shell metacharacters anywhere mean the user is writing shell.
	if strings.ContainsAny(input, "|<>&$`*?;=") {
		return false
	}
	// Flags after the first word mean the user knows the command.
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "-") {
			return false
		}
	}
	return true
}

// HasCommandShape is the counterweight heuristic layered over the
// validator's yes: flags, path prefixes, or embedded variables make a
// validator-confirmed string trustworthy as a literal command.
func HasCommandShape(input string) bool {
	if strings.ContainsAny(input, "$|/") {
		return true
	}
	for _, f := range strings.Fields(input) {
		if strings.HasPrefix(f, "-") {
			return true
		}
	}
	return false
}
