// Package security implements the pattern-based denylist that every
// command must pass immediately before execution.
package security

import (
	"regexp"

	"go.uber.org/zap"
)

// Rule pairs a compiled pattern with a short identifier used in logs and
// user-facing block messages.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// defaultRules covers irreversible or system-destroying operations.
// Order matters: the first match wins, so the most specific destructive
// patterns come first.
var defaultRules = []Rule{
	{"recursive-root-delete", regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rR][a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*[rR][a-zA-Z]*)\s+(--no-preserve-root|/\*?(\s|$))`)},
	{"recursive-root-delete-split", regexp.MustCompile(`\brm\s+(-[rR]\s+-f|-f\s+-[rR])\s+(/|/\*)(\s|$)`)},
	{"filesystem-format", regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b`)},
	{"raw-device-write", regexp.MustCompile(`\bdd\b.*\bof=/dev/(sd|hd|nvme|mmcblk|vd)`)},
	{"device-overwrite", regexp.MustCompile(`>\s*/dev/(sd|hd|nvme|mmcblk|vd)[a-z0-9]*\b`)},
	{"fork-bomb", regexp.MustCompile(`:\(\)\s*{\s*:\|:\s*&\s*}\s*;?\s*:`)},
	{"shutdown-reboot", regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`)},
	{"pipe-to-shell", regexp.MustCompile(`\b(curl|wget)\b[^|;]*\|\s*(sudo\s+)?(ba)?sh\b`)},
	{"partition-table", regexp.MustCompile(`\b(fdisk|parted|sgdisk)\b.*/dev/`)},
	{"chmod-root", regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*[0-7]{3,4}\s+/\s*$`)},
}

// Sanitizer checks candidate commands against an ordered denylist.
type Sanitizer struct {
	rules  []Rule
	logger *zap.Logger
}

// NewSanitizer builds a sanitizer with the default rule set.
func NewSanitizer(logger *zap.Logger) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{rules: defaultRules, logger: logger}
}

// NewSanitizerWithRules builds a sanitizer with a caller-supplied rule
// set, evaluated in the given order.
func NewSanitizerWithRules(rules []Rule, logger *zap.Logger) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{rules: rules, logger: logger}
}

// Check reports whether command may run. When blocked, the name of the
// matching rule is returned so callers can tell the user what fired.
func (s *Sanitizer) Check(command string) (allowed bool, matchedRule string) {
	for _, r := range s.rules {
		if r.Pattern.MatchString(command) {
			s.logger.Warn("command blocked by sanitizer",
				zap.String("rule", r.Name),
				zap.String("command", command))
			return false, r.Name
		}
	}
	return true, ""
}
