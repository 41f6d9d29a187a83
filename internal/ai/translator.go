package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrTranslationRefused is returned when the translator judged the
// request unsafe or untranslatable. No further cycles run.
var ErrTranslationRefused = errors.New("translation refused")

// ErrTranslationFailed is returned when no candidate at all survived
// every cycle.
var ErrTranslationFailed = errors.New("no command produced")

// Translation is the outcome of a Translate call. Validated is false
// when the pipeline exhausted its cycles and is handing back its last
// cleaned-but-unconfirmed candidate as a best-effort suggestion.
type Translation struct {
	Command   string
	Validated bool
	Raw       string // first raw model output, for diagnostics and the categorization flow
}

var unsafePattern = regexp.MustCompile(`(?s)<unsafe>(.*?)</unsafe>`)

// extractPatterns is the ordered extraction table for tagged model
// output. First matching non-empty group wins. Kept as data rather
// than code so new tag shapes are one line to add.
var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<cmd>\s*'(.*?)'\s*</cmd>`),
	regexp.MustCompile(`(?s)<cmd>\s*"(.*?)"\s*</cmd>`),
	regexp.MustCompile(`(?s)<cmd>(.*?)</cmd>`),
	regexp.MustCompile("(?s)```(?:bash|sh|shell)?\\s*\n(.*?)```"),
	regexp.MustCompile("```(?:bash|sh|shell)?\\s*(.*?)```"),
	regexp.MustCompile("`([^`\n]+)`"),
}

// refusalPhrases mark prose the model emitted instead of a command.
var refusalPhrases = []string{
	"sorry", "i cannot", "i can't", "unable to", "as an ai", "cannot assist",
}

var separatorPattern = regexp.MustCompile(`;|&&|\|\|`)

// Translator loops the two translator roles and the validator until a
// confirmed command emerges or the cycle limit is reached.
type Translator struct {
	completer      Completer
	primaryModel   string
	secondaryModel string // optional plain-output fallback role
	validator      *Validator
	cycles         int
	cycleDelay     time.Duration
	logger         *zap.Logger
}

// NewTranslator builds a translator. secondaryModel may be empty.
// cycles <= 0 falls back to 3.
func NewTranslator(completer Completer, primaryModel, secondaryModel string, validator *Validator, cycles int, logger *zap.Logger) *Translator {
	if cycles <= 0 {
		cycles = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		completer:      completer,
		primaryModel:   primaryModel,
		secondaryModel: secondaryModel,
		validator:      validator,
		cycles:         cycles,
		cycleDelay:     300 * time.Millisecond,
		logger:         logger,
	}
}

// Translate turns a natural language query into a shell command. See
// Translation for the fallback semantics when validation never passes.
func (t *Translator) Translate(ctx context.Context, query string) (*Translation, error) {
	var lastCandidate, firstRaw string

	for cycle := 0; cycle < t.cycles; cycle++ {
		if cycle > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(t.cycleDelay):
			}
		}

		candidate, raw, err := t.primaryAttempt(ctx, query)
		if err != nil {
			if errors.Is(err, ErrTranslationRefused) || errors.Is(err, ErrModelUnavailable) {
				// Refusal and an unreachable service both end the
				// request; further cycles cannot change either.
				return nil, err
			}
			// Translation failure for this cycle only.
			t.logger.Warn("primary translator failed", zap.Int("cycle", cycle+1), zap.Error(err))
		}
		if firstRaw == "" {
			firstRaw = raw
		}
		if candidate != "" {
			lastCandidate = candidate
			if t.validator.Validate(ctx, candidate) == Yes {
				return &Translation{Command: candidate, Validated: true, Raw: firstRaw}, nil
			}
		}

		if t.secondaryModel == "" {
			continue
		}
		candidate, err = t.secondaryAttempt(ctx, query)
		if err != nil {
			t.logger.Warn("secondary translator failed", zap.Int("cycle", cycle+1), zap.Error(err))
			continue
		}
		if candidate != "" {
			lastCandidate = candidate
			if t.validator.Validate(ctx, candidate) == Yes {
				return &Translation{Command: candidate, Validated: true, Raw: firstRaw}, nil
			}
		}
	}

	if lastCandidate != "" {
		t.logger.Info("translation exhausted cycles, returning unvalidated candidate",
			zap.String("candidate", lastCandidate))
		return &Translation{Command: lastCandidate, Validated: false, Raw: firstRaw}, nil
	}
	return nil, ErrTranslationFailed
}

// primaryAttempt runs one tagged-output translation and returns the
// cleaned candidate (possibly empty) plus the raw model text.
func (t *Translator) primaryAttempt(ctx context.Context, query string) (candidate, raw string, err error) {
	raw, err = t.completer.Complete(ctx, t.primaryModel, translatorSystemPrompt, query)
	if err != nil {
		return "", "", err
	}

	if m := unsafePattern.FindStringSubmatch(raw); m != nil {
		reason := strings.TrimSpace(m[1])
		if reason == "" {
			reason = "request judged unsafe"
		}
		return "", raw, fmt.Errorf("%w: %s", ErrTranslationRefused, reason)
	}

	extracted, ok := ExtractCommand(raw)
	if !ok {
		return "", raw, nil
	}
	cleaned, ok := CleanCommand(extracted)
	if !ok {
		return "", raw, nil
	}
	return cleaned, raw, nil
}

// secondaryAttempt runs the plain-output fallback role. Its answer is
// the whole response, cleaned directly.
func (t *Translator) secondaryAttempt(ctx context.Context, query string) (string, error) {
	raw, err := t.completer.Complete(ctx, t.secondaryModel, directTranslatorSystemPrompt, query)
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToUpper(raw), "UNSAFE") {
		return "", nil
	}
	// The plain role sometimes fences its answer anyway.
	if extracted, ok := ExtractCommand(raw); ok {
		raw = extracted
	} else if i := strings.IndexByte(strings.TrimSpace(raw), '\n'); i >= 0 {
		// Bare multi-line output: only the first line can be a command.
		raw = strings.TrimSpace(raw)[:i]
	}
	cleaned, ok := CleanCommand(raw)
	if !ok {
		return "", nil
	}
	return cleaned, nil
}

// ExtractCommand walks the extraction table in order and returns the
// first non-empty capture.
func ExtractCommand(raw string) (string, bool) {
	for _, p := range extractPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			if candidate := strings.TrimSpace(m[1]); candidate != "" {
				return candidate, true
			}
		}
	}
	return "", false
}

// CleanCommand normalises an extracted candidate. The steps are
// idempotent on their own output. ok is false when the candidate must
// be discarded entirely.
func CleanCommand(s string) (cleaned string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	s = stripSurroundingQuotes(s)
	s = stripInterpreterWrapper(s)
	s = stripLeadingSlashArtifact(s)

	s, ok = truncateAtSeparator(s)
	if !ok {
		return "", false
	}

	if looksLikeRefusal(s) {
		return "", false
	}
	return s, true
}

// stripSurroundingQuotes removes one layer of matching quote or
// backtick characters.
func stripSurroundingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '\'' || first == '"' || first == '`') {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner != "" {
			return inner
		}
	}
	return s
}

// stripInterpreterWrapper unwraps `sh -c '...'` style wrappers when the
// payload contains no further shell metacharacters; the wrapper adds
// nothing because the engine already runs commands through a shell.
var interpreterWrapper = regexp.MustCompile(`^(?:ba|z|da)?sh\s+-c\s+(.+)$`)

func stripInterpreterWrapper(s string) string {
	m := interpreterWrapper.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	payload := stripSurroundingQuotes(strings.TrimSpace(m[1]))
	if strings.ContainsAny(payload, "|&;<>$`") {
		return s
	}
	return payload
}

// stripLeadingSlashArtifact drops a spurious leading slash the model
// fabricated from a bare word, e.g. "/ls -la". A real absolute path has
// more than one path segment, so those are left alone.
func stripLeadingSlashArtifact(s string) string {
	if !strings.HasPrefix(s, "/") {
		return s
	}
	firstToken := s[1:]
	if i := strings.IndexByte(firstToken, ' '); i >= 0 {
		firstToken = firstToken[:i]
	}
	if firstToken == "" || strings.Contains(firstToken, "/") {
		return s
	}
	return s[1:]
}

// truncateAtSeparator keeps only the leading segment before the first
// command separator. The engine executes a single command per cycle; if
// no clean leading segment exists, the candidate is discarded.
func truncateAtSeparator(s string) (string, bool) {
	loc := separatorPattern.FindStringIndex(s)
	if loc == nil {
		return s, true
	}
	head := strings.TrimSpace(s[:loc[0]])
	if head == "" {
		return "", false
	}
	return head, true
}

func looksLikeRefusal(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
