package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/ai"
	"github.com/microx-shell/microx/internal/categorize"
	"github.com/microx-shell/microx/internal/category"
	"github.com/microx-shell/microx/internal/config"
	"github.com/microx-shell/microx/internal/eventbus"
	"github.com/microx-shell/microx/internal/executil"
	"github.com/microx-shell/microx/internal/models"
	"github.com/microx-shell/microx/internal/security"
)

// Executor runs a finalised command under a category.
type Executor interface {
	Execute(ctx context.Context, command string, cat category.Category, workdir string) (*executil.Result, error)
}

// Translator is the AI translation pipeline surface.
type Translator interface {
	Translate(ctx context.Context, query string) (*ai.Translation, error)
}

// Validator is the AI yes/no advice surface.
type Validator interface {
	Validate(ctx context.Context, text string) ai.TriState
}

// Assistant issues the advisory explain/analyze calls.
type Assistant interface {
	Explain(ctx context.Context, command string) (string, error)
	AnalyzeFailure(ctx context.Context, command string, exitCode int, stderr string) (string, error)
}

// failedRun holds what ERROR_RECOVERY needs to offer AI analysis.
type failedRun struct {
	command  string
	exitCode int
	stderr   string
}

// Router is the top-level control loop: it classifies raw input,
// drives translation, categorization, sanitizing and execution in
// order, and owns all in-flight request state. Exactly one request is
// in flight at a time; input arriving while busy is either routed to
// the active decision flow or rejected.
type Router struct {
	cfg       *config.Config
	bus       *eventbus.EventBus
	state     *StateManager
	store     *category.Store
	sanitizer *security.Sanitizer
	trans     Translator
	validator Validator
	assistant Assistant
	engine    Executor
	logger    *zap.Logger

	// phraseHeuristic decides whether an uncategorized line reads as a
	// natural-language request. Pluggable; defaults to
	// LooksLikeNaturalLanguage.
	phraseHeuristic func(string) bool

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	flow            *categorize.Flow
	confirm         *categorize.ConfirmFlow
	confirmOriginal string
	caution         string
	recovery        *failedRun
	reqCancel       context.CancelFunc
}

// NewRouter wires the pipeline components together. Any nil logger is
// replaced with a no-op.
func NewRouter(
	cfg *config.Config,
	bus *eventbus.EventBus,
	state *StateManager,
	store *category.Store,
	sanitizer *security.Sanitizer,
	trans Translator,
	validator Validator,
	assistant Assistant,
	engine Executor,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		cfg:             cfg,
		bus:             bus,
		state:           state,
		store:           store,
		sanitizer:       sanitizer,
		trans:           trans,
		validator:       validator,
		assistant:       assistant,
		engine:          engine,
		logger:          logger,
		phraseHeuristic: LooksLikeNaturalLanguage,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// SetPhraseHeuristic swaps the natural-language detection function.
func (r *Router) SetPhraseHeuristic(f func(string) bool) {
	if f != nil {
		r.phraseHeuristic = f
	}
}

// Start announces readiness and runs the event loop in a goroutine.
func (r *Router) Start() {
	r.state.Transition(models.StateIdle)
	r.sayWelcome()
	r.pushState()
	go r.eventLoop()
}

func (r *Router) Stop() {
	r.cancel()
}

// IsReady reports whether the AI pipeline is configured. Literal
// commands still work without it.
func (r *Router) IsReady() bool {
	return r.cfg.IsValid()
}

func (r *Router) eventLoop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case event, ok := <-r.bus.UIToCore():
			if !ok {
				return
			}
			r.handleUIEvent(event)
		}
	}
}

func (r *Router) handleUIEvent(event eventbus.UIEvent) {
	switch e := event.(type) {
	case eventbus.SubmitInputEvent:
		r.HandleInput(e.Line)
	case eventbus.InterruptEvent:
		r.handleInterrupt()
	}
}

// HandleInput routes one raw input line according to the current state.
func (r *Router) HandleInput(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	r.say(models.User, line)

	switch r.state.State() {
	case models.StateConfirmation:
		r.advanceConfirm(line)
	case models.StateCategorization:
		r.advanceFlow(line)
	case models.StateCaution:
		r.advanceCaution(line)
	case models.StateErrorRecovery:
		r.advanceRecovery(line)
	case models.StateProcessing, models.StateExecuting:
		r.say(models.Program, "Busy with the previous request. Press Ctrl+C to interrupt it.")
	case models.StateIdle:
		r.startRequest(line)
	default:
		r.say(models.Program, "Not ready yet.")
	}
}

// startRequest begins a fresh request from IDLE: builtins first, then
// classification, then the AI path for whatever remains.
func (r *Router) startRequest(line string) {
	switch {
	case line == "exit" || line == "quit":
		r.quit()
		return
	case line == "help" || line == "/help":
		r.sayHelp()
		return
	case line == "cd" || strings.HasPrefix(line, "cd "):
		r.handleCd(strings.TrimSpace(strings.TrimPrefix(line, "cd")))
		return
	case line == "/command" || strings.HasPrefix(line, "/command "):
		r.handleCategoryBuiltin(strings.TrimSpace(strings.TrimPrefix(line, "/command")))
		return
	case line == "/ai" || strings.HasPrefix(line, "/ai "):
		if !r.IsReady() {
			r.say(models.Error, "No AI profile configured. Run 'microx profile add' first.")
			return
		}
		query := strings.TrimSpace(strings.TrimPrefix(line, "/ai"))
		if query == "" {
			r.say(models.Program, "Usage: /ai <natural language request>")
			return
		}
		r.beginProcessing(func(ctx context.Context) { r.runTranslation(ctx, query, query) })
		return
	case strings.HasPrefix(line, "!"):
		r.startForcedDirect(strings.TrimSpace(line[1:]))
		return
	}

	// First, conceptual sanitizer pass on the literal input; the
	// decisive pass runs again on the expanded string before spawn.
	if ok, rule := r.sanitizer.Check(line); !ok {
		r.sayBlocked(rule)
		return
	}

	if cat := r.store.Classify(line); cat != category.Unknown {
		r.execute(line, cat)
		return
	}

	if r.phraseHeuristic(line) && r.IsReady() {
		r.beginProcessing(func(ctx context.Context) { r.resolvePhrase(ctx, line) })
		return
	}

	// Literal but unknown: ask the user how to run it.
	r.startCategorization(line, "")
}

// startForcedDirect handles the "!" prefix, which bypasses translation.
// A forced line that still reads like a phrase gets one caution prompt.
func (r *Router) startForcedDirect(cmd string) {
	if cmd == "" {
		r.say(models.Program, "Usage: !<command>")
		return
	}
	if ok, rule := r.sanitizer.Check(cmd); !ok {
		r.sayBlocked(rule)
		return
	}
	if r.phraseHeuristic(cmd) {
		r.mu.Lock()
		r.caution = cmd
		r.mu.Unlock()
		r.state.Transition(models.StateCaution)
		r.pushState()
		r.say(models.Prompt,
			fmt.Sprintf("'%s' looks like a phrase, not a command. Run it anyway? [y/n]", cmd))
		return
	}
	r.executeClassifiedOrDefault(cmd)
}

// resolvePhrase runs in a request goroutine: the validator plus shape
// heuristics may rescue the line as a literal command; otherwise it
// goes through translation.
func (r *Router) resolvePhrase(ctx context.Context, line string) {
	if r.validator.Validate(ctx, line) == ai.Yes && HasCommandShape(line) {
		r.startCategorization(line, "")
		return
	}
	r.runTranslation(ctx, line, line)
}

// runTranslation drives the translator and lands in CONFIRMATION on
// success. Translation failure falls back to offering the literal
// input for categorization; an unreachable model service aborts the
// request outright.
func (r *Router) runTranslation(ctx context.Context, query, original string) {
	r.say(models.Program, "Translating...")

	res, err := r.trans.Translate(ctx, query)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, ai.ErrTranslationRefused):
			r.say(models.Error, "Translator refused: "+err.Error())
			r.toIdle()
		case errors.Is(err, ai.ErrModelUnavailable):
			r.say(models.Error, "AI model service unreachable: "+err.Error())
			r.toIdle()
		default:
			r.logger.Warn("translation failed, falling back to literal input", zap.Error(err))
			r.say(models.Program, "No command could be translated; treating your input as a literal command.")
			r.startCategorization(original, "")
		}
		return
	}

	r.mu.Lock()
	r.confirm = categorize.NewConfirmFlow(res.Command, res.Validated)
	r.confirmOriginal = original
	prompt := r.confirm.Prompt()
	r.mu.Unlock()

	r.state.Transition(models.StateConfirmation)
	r.pushState()
	r.say(models.Prompt, prompt...)
}

func (r *Router) advanceConfirm(line string) {
	// The flow is advanced under the mutex so the explain goroutine
	// never reads it mid-mutation.
	r.mu.Lock()
	confirm := r.confirm
	if confirm == nil {
		r.mu.Unlock()
		r.toIdle()
		return
	}
	decision, _ := confirm.Advance(line)
	cmd := confirm.Command()
	original := r.confirmOriginal
	r.mu.Unlock()

	switch decision {
	case categorize.DecisionExplain:
		ctx := r.beginRequestContext()
		go func() {
			explanation, err := r.assistant.Explain(ctx, cmd)

			// The user may have resolved the flow while the model was
			// thinking; a stale prompt would be unanswerable.
			r.mu.Lock()
			stillPending := r.confirm == confirm
			var prompt []string
			if stillPending {
				prompt = confirm.Prompt()
			}
			r.mu.Unlock()
			if !stillPending || ctx.Err() != nil {
				return
			}

			if err != nil {
				r.say(models.Error, "Explain failed: "+err.Error())
			} else {
				r.say(models.Output, explanation)
			}
			r.say(models.Prompt, prompt...)
		}()
	case categorize.DecisionExecute:
		r.mu.Lock()
		r.confirm = nil
		r.confirmOriginal = ""
		r.mu.Unlock()
		if cat := r.store.Classify(cmd); cat != category.Unknown {
			r.execute(cmd, cat)
			return
		}
		r.startCategorization(cmd, original)
	case categorize.DecisionCancel:
		r.mu.Lock()
		r.confirm = nil
		r.confirmOriginal = ""
		r.mu.Unlock()
		r.say(models.Program, "Cancelled.")
		r.toIdle()
	default:
		r.mu.Lock()
		prompt := confirm.Prompt()
		r.mu.Unlock()
		r.say(models.Prompt, prompt...)
	}
}

// startCategorization opens the wizard for an uncategorized command.
// Only one flow may exist; ownership of the field enforces that.
func (r *Router) startCategorization(proposed, original string) {
	r.mu.Lock()
	r.flow = categorize.NewFlow(proposed, original)
	prompt := r.flow.Prompt()
	r.mu.Unlock()

	r.state.Transition(models.StateCategorization)
	r.pushState()
	r.say(models.Prompt, prompt...)
}

func (r *Router) advanceFlow(line string) {
	r.mu.Lock()
	flow := r.flow
	r.mu.Unlock()
	if flow == nil {
		r.toIdle()
		return
	}

	outcome, done := flow.Advance(line)
	if !done {
		r.say(models.Prompt, flow.Prompt()...)
		return
	}

	r.mu.Lock()
	r.flow = nil
	r.mu.Unlock()

	switch outcome.Kind {
	case categorize.OutcomeCategorize:
		alreadySet, err := r.store.Add(outcome.Command, outcome.Category)
		switch {
		case err != nil:
			r.say(models.Error, "Failed to save category: "+err.Error())
		case alreadySet:
			r.say(models.Program, fmt.Sprintf("'%s' already set as %s.", outcome.Command, outcome.Category))
		default:
			r.say(models.Program, fmt.Sprintf("Saved '%s' as %s.", outcome.Command, outcome.Category))
		}
		r.execute(outcome.Command, outcome.Category)
	case categorize.OutcomeExecuteDefault:
		cat := r.defaultCategory()
		r.say(models.Program, fmt.Sprintf("Running once as %s (not saved).", cat))
		r.execute(outcome.Command, cat)
	default:
		r.say(models.Program, "Cancelled.")
		r.toIdle()
	}
}

func (r *Router) advanceCaution(line string) {
	r.mu.Lock()
	cmd := r.caution
	r.mu.Unlock()

	switch strings.ToLower(line) {
	case "y", "yes":
		r.mu.Lock()
		r.caution = ""
		r.mu.Unlock()
		r.executeClassifiedOrDefault(cmd)
	case "n", "no", "c":
		r.mu.Lock()
		r.caution = ""
		r.mu.Unlock()
		r.say(models.Program, "Cancelled.")
		r.toIdle()
	default:
		r.say(models.Prompt, fmt.Sprintf("Run '%s'? [y/n]", cmd))
	}
}

func (r *Router) advanceRecovery(line string) {
	r.mu.Lock()
	failed := r.recovery
	r.mu.Unlock()
	if failed == nil {
		r.toIdle()
		return
	}

	switch strings.ToLower(line) {
	case "y", "yes":
		r.mu.Lock()
		r.recovery = nil
		r.mu.Unlock()
		r.state.Transition(models.StateProcessing)
		r.pushState()
		ctx := r.beginRequestContext()
		go func() {
			analysis, err := r.assistant.AnalyzeFailure(ctx, failed.command, failed.exitCode, failed.stderr)
			if err != nil {
				r.say(models.Error, "Analysis failed: "+err.Error())
			} else {
				r.say(models.Output, analysis)
			}
			r.toIdle()
		}()
	case "n", "no":
		r.mu.Lock()
		r.recovery = nil
		r.mu.Unlock()
		r.toIdle()
	default:
		r.say(models.Prompt, "Analyze the failure with AI? [y/n]")
	}
}

// executeClassifiedOrDefault runs a command under its stored category,
// or once under the default category without persisting anything.
func (r *Router) executeClassifiedOrDefault(cmd string) {
	cat := r.store.Classify(cmd)
	if cat == category.Unknown {
		cat = r.defaultCategory()
	}
	r.execute(cmd, cat)
}

// execute is the final stage: expand, decisively sanitize, and run in a
// cancellable request goroutine.
func (r *Router) execute(cmd string, cat category.Category) {
	r.state.Transition(models.StateExecuting)
	r.pushState()

	ctx := r.beginRequestContext()
	go func() {
		cwd := r.state.Cwd()
		expanded := executil.ExpandCWD(cmd, cwd)

		// The decisive check runs on the expanded string: expansion can
		// reveal a dangerous target the raw string concealed.
		if ok, rule := r.sanitizer.Check(expanded); !ok {
			r.sayBlocked(rule)
			r.toIdle()
			return
		}

		res, err := r.engine.Execute(ctx, expanded, cat, cwd)
		if ctx.Err() != nil {
			// The interrupt path already resolved this request;
			// whatever came back is from a killed process.
			return
		}
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, executil.ErrTmuxMissing):
				r.say(models.Error, "tmux is required for this category but was not found in PATH.")
				r.toIdle()
			default:
				r.enterRecovery(expanded, -1, err.Error())
			}
			return
		}
		r.reportResult(expanded, cat, res)
	}()
}

func (r *Router) reportResult(cmd string, cat category.Category, res *executil.Result) {
	if res.TimedOut {
		r.say(models.Program, "Command still running after the timeout; showing whatever output was captured.")
	}
	if out := strings.TrimRight(res.Stdout, "\n"); out != "" {
		r.say(models.Output, out)
	}
	if errOut := strings.TrimRight(res.Stderr, "\n"); errOut != "" {
		r.say(models.Error, errOut)
	}
	// Interactive runs are capture-free; an empty log is not news.
	if res.Stdout == "" && res.Stderr == "" && !res.TimedOut && cat != category.InteractiveTUI {
		r.say(models.Program, "(no output)")
	}

	if res.ExitCode != 0 {
		r.enterRecovery(cmd, res.ExitCode, res.Stderr)
		return
	}
	r.toIdle()
}

func (r *Router) enterRecovery(cmd string, exitCode int, stderr string) {
	r.mu.Lock()
	r.recovery = &failedRun{command: cmd, exitCode: exitCode, stderr: stderr}
	r.mu.Unlock()

	r.say(models.Error, fmt.Sprintf("Command failed (exit %d).", exitCode))
	r.state.Transition(models.StateErrorRecovery)
	r.pushState()
	if r.IsReady() {
		r.say(models.Prompt, "Analyze the failure with AI? [y/n]")
	} else {
		r.mu.Lock()
		r.recovery = nil
		r.mu.Unlock()
		r.toIdle()
	}
}

// handleInterrupt resolves whatever is pending as cancelled. With
// nothing pending it terminates the application.
func (r *Router) handleInterrupt() {
	switch r.state.State() {
	case models.StateCategorization:
		r.mu.Lock()
		if r.flow != nil {
			r.flow.Cancel()
			r.flow = nil
		}
		r.mu.Unlock()
		r.say(models.Program, "Categorization cancelled.")
		r.toIdle()
	case models.StateConfirmation:
		r.mu.Lock()
		if r.confirm != nil {
			r.confirm.Cancel()
			r.confirm = nil
		}
		r.mu.Unlock()
		r.say(models.Program, "Cancelled.")
		r.toIdle()
	case models.StateCaution, models.StateErrorRecovery:
		r.mu.Lock()
		r.caution = ""
		r.recovery = nil
		r.mu.Unlock()
		r.say(models.Program, "Cancelled.")
		r.toIdle()
	case models.StateProcessing, models.StateExecuting:
		r.mu.Lock()
		if r.reqCancel != nil {
			r.reqCancel()
			r.reqCancel = nil
		}
		r.mu.Unlock()
		r.say(models.Program, "Interrupted.")
		r.toIdle()
	default:
		r.quit()
	}
}

// handleCd intercepts cd before the rest of the pipeline: it only
// updates the engine's working directory and is never translated,
// categorized, or sanitized.
func (r *Router) handleCd(arg string) {
	target := arg
	switch {
	case target == "" || target == "~":
		home, err := os.UserHomeDir()
		if err != nil {
			r.say(models.Error, "Cannot determine home directory: "+err.Error())
			return
		}
		target = home
	case strings.HasPrefix(target, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			r.say(models.Error, "Cannot determine home directory: "+err.Error())
			return
		}
		target = filepath.Join(home, target[2:])
	case !filepath.IsAbs(target):
		target = filepath.Join(r.state.Cwd(), target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		r.say(models.Error, "Not a directory: "+target)
		return
	}
	r.state.SetCwd(target)
	r.pushState()
	r.say(models.Program, target)
}

// handleCategoryBuiltin implements /command add|remove|move|list.
func (r *Router) handleCategoryBuiltin(rest string) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		r.sayCategoryUsage()
		return
	}

	switch fields[0] {
	case "list":
		listed := r.store.List()
		var lines []string
		for _, cat := range category.All {
			lines = append(lines, fmt.Sprintf("%s:", cat))
			for _, cmd := range listed[cat] {
				lines = append(lines, "  "+cmd)
			}
		}
		r.say(models.Output, lines...)
	case "add", "move":
		if len(fields) < 3 {
			r.sayCategoryUsage()
			return
		}
		cat, err := category.Parse(fields[1])
		if err != nil {
			r.say(models.Error, err.Error())
			return
		}
		withoutVerb := strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		cmd := strings.TrimSpace(strings.TrimPrefix(withoutVerb, fields[1]))
		alreadySet, err := r.store.Add(cmd, cat)
		switch {
		case err != nil:
			r.say(models.Error, err.Error())
		case alreadySet:
			r.say(models.Program, fmt.Sprintf("'%s' already set as %s.", cmd, cat))
		default:
			r.say(models.Program, fmt.Sprintf("Saved '%s' as %s.", cmd, cat))
		}
	case "remove":
		if len(fields) < 2 {
			r.sayCategoryUsage()
			return
		}
		cmd := strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		removed, err := r.store.Remove(cmd)
		switch {
		case err != nil:
			r.say(models.Error, err.Error())
		case removed:
			r.say(models.Program, fmt.Sprintf("Removed '%s'.", cmd))
		default:
			r.say(models.Program, fmt.Sprintf("'%s' was not in your categories.", cmd))
		}
	default:
		r.sayCategoryUsage()
	}
}

// beginProcessing moves to PROCESSING and runs fn in a cancellable
// request goroutine.
func (r *Router) beginProcessing(fn func(ctx context.Context)) {
	r.state.Transition(models.StateProcessing)
	r.pushState()
	ctx := r.beginRequestContext()
	go fn(ctx)
}

// beginRequestContext replaces the per-request cancellation token.
func (r *Router) beginRequestContext() context.Context {
	ctx, cancel := context.WithCancel(r.ctx)
	r.mu.Lock()
	r.reqCancel = cancel
	r.mu.Unlock()
	return ctx
}

func (r *Router) defaultCategory() category.Category {
	cat, err := category.Parse(r.cfg.Engine.DefaultCategory)
	if err != nil {
		return category.Simple
	}
	return cat
}

func (r *Router) toIdle() {
	r.state.Transition(models.StateIdle)
	r.pushState()
}

func (r *Router) quit() {
	if err := r.bus.SendToUI(eventbus.QuitEvent{}); err != nil {
		r.logger.Warn("failed to send quit event", zap.Error(err))
	}
}

func (r *Router) pushState() {
	state := r.state.State()
	if err := r.bus.SendToUI(eventbus.StateChangeEvent{
		State: state,
		Cwd:   r.state.Cwd(),
		Busy:  state == models.StateProcessing || state == models.StateExecuting,
	}); err != nil {
		r.logger.Warn("failed to push state to UI", zap.Error(err))
	}
}

func (r *Router) say(kind models.MessageType, lines ...string) {
	msgs := make([]models.Message, 0, len(lines))
	for _, l := range lines {
		msgs = append(msgs, models.Message{Content: l, Type: kind})
	}
	if err := r.bus.SendToUI(eventbus.OutputEvent{Messages: msgs}); err != nil {
		r.logger.Warn("failed to send output to UI", zap.Error(err))
	}
}

func (r *Router) sayBlocked(rule string) {
	r.say(models.Error, fmt.Sprintf("Blocked by the security filter (%s).", rule))
}

func (r *Router) sayWelcome() {
	r.say(models.Program, "-- micro_X --")
	if r.IsReady() {
		r.say(models.Program, fmt.Sprintf("Active profile: %s", r.cfg.ActiveProfile))
		r.say(models.Program, "Type a command, or describe what you want in plain language.")
	} else {
		r.say(models.Program, fmt.Sprintf("Active profile: %s [AI NOT CONFIGURED]", r.cfg.ActiveProfile))
		r.say(models.Program, "Literal commands work; configure a profile to enable translation:")
		r.say(models.Program, "  microx profile add <name>")
	}
	r.say(models.Program, "Builtins: cd, /ai <request>, /command list|add|remove|move, help, exit")
	r.say(models.Program, "")
}

func (r *Router) sayHelp() {
	r.say(models.Output,
		"cd <dir>                     change the working directory",
		"/ai <request>                force AI translation of a request",
		"!<command>                   force direct execution, skip translation",
		"/command list                show categorized commands",
		"/command add <cat> <cmd>     categorize a command (1|2|3 or name)",
		"/command move <cat> <cmd>    move a command to another category",
		"/command remove <cmd>        forget a command's category",
		"exit | quit                  leave micro_X",
	)
}

func (r *Router) sayCategoryUsage() {
	r.say(models.Program,
		"Usage: /command list | add <cat> <cmd> | move <cat> <cmd> | remove <cmd>")
}
