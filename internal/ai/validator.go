package ai

import (
	"context"
	"regexp"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TriState is the validator's verdict. It is advice only: callers layer
// their own heuristics on top before trusting a Yes.
type TriState int

const (
	Unknown TriState = iota
	Yes
	No
)

func (t TriState) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	}
	return "unknown"
}

const (
	minValidateLen = 2
	maxValidateLen = 200
)

var (
	yesToken = regexp.MustCompile(`(?i)\byes\b`)
	noToken  = regexp.MustCompile(`(?i)\bno\b`)
)

// Validator asks the validator role whether a string is a plausible
// shell command, several times, and majority-votes the answers.
type Validator struct {
	completer Completer
	model     string
	attempts  int
	delay     time.Duration
	logger    *zap.Logger
}

// NewValidator builds a validator. attempts <= 0 falls back to 3.
func NewValidator(completer Completer, model string, attempts int, logger *zap.Logger) *Validator {
	if attempts <= 0 {
		attempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		completer: completer,
		model:     model,
		attempts:  attempts,
		delay:     250 * time.Millisecond,
		logger:    logger,
	}
}

// Validate majority-votes v.attempts independent model calls. Strings
// too short or too long to judge reliably return Unknown without any
// model call. Model errors count as an unclear attempt, not a failure
// of the whole vote.
func (v *Validator) Validate(ctx context.Context, text string) TriState {
	if n := utf8.RuneCountInString(text); n < minValidateLen || n > maxValidateLen {
		return Unknown
	}

	majority := v.attempts/2 + 1
	yesCount, noCount := 0, 0

	for i := 0; i < v.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Unknown
			case <-time.After(v.delay):
			}
		}

		resp, err := v.completer.Complete(ctx, v.model, validatorSystemPrompt,
			"Is this a plausible shell command? "+text)
		if err != nil {
			v.logger.Warn("validator attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			continue
		}

		switch parseVerdict(resp) {
		case Yes:
			yesCount++
		case No:
			noCount++
		}

		// The vote cannot change once a side holds a majority.
		if yesCount >= majority || noCount >= majority {
			break
		}
	}

	v.logger.Debug("validator vote",
		zap.String("text", text), zap.Int("yes", yesCount), zap.Int("no", noCount))

	switch {
	case yesCount >= majority:
		return Yes
	case noCount >= majority:
		return No
	default:
		return Unknown
	}
}

// parseVerdict looks for an unambiguous standalone yes or no token.
// Both present, or neither, counts as unclear.
func parseVerdict(resp string) TriState {
	hasYes := yesToken.MatchString(resp)
	hasNo := noToken.MatchString(resp)
	switch {
	case hasYes && !hasNo:
		return Yes
	case hasNo && !hasYes:
		return No
	default:
		return Unknown
	}
}
