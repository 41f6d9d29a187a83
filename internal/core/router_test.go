package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/ai"
	"github.com/microx-shell/microx/internal/category"
	"github.com/microx-shell/microx/internal/config"
	"github.com/microx-shell/microx/internal/eventbus"
	"github.com/microx-shell/microx/internal/executil"
	"github.com/microx-shell/microx/internal/models"
	"github.com/microx-shell/microx/internal/security"
)

type execCall struct {
	command string
	cat     category.Category
	workdir string
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []execCall
	result *executil.Result
	err    error

	// blockUntilCancel mimics a long run that only ends when the
	// request context is cancelled, reporting the exit status of the
	// killed process the way a real shell spawn would.
	blockUntilCancel bool
}

func (f *fakeExecutor) Execute(ctx context.Context, command string, cat category.Category, workdir string) (*executil.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, execCall{command: command, cat: cat, workdir: workdir})
	block := f.blockUntilCancel
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return &executil.Result{ExitCode: -1}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &executil.Result{Stdout: "ok\n"}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) lastCall() execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeTranslator struct {
	mu     sync.Mutex
	calls  int
	result *ai.Translation
	err    error
}

func (f *fakeTranslator) Translate(ctx context.Context, query string) (*ai.Translation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeValidator struct{ verdict ai.TriState }

func (f *fakeValidator) Validate(ctx context.Context, text string) ai.TriState { return f.verdict }

type fakeAssistant struct {
	mu        sync.Mutex
	analyzed  []string
	explained []string

	// explainGate, when set, holds Explain open until closed.
	explainGate chan struct{}
}

func (f *fakeAssistant) Explain(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.explained = append(f.explained, command)
	gate := f.explainGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return "it lists files", nil
}

func (f *fakeAssistant) AnalyzeFailure(ctx context.Context, command string, exitCode int, stderr string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, command)
	return "the binary is missing", nil
}

// uiRecorder drains the core-to-UI channel so the bus never backs up,
// keeping everything the router said.
type uiRecorder struct {
	mu   sync.Mutex
	msgs []models.Message
	quit bool
}

func recordUI(bus *eventbus.EventBus) *uiRecorder {
	rec := &uiRecorder{}
	go func() {
		for event := range bus.CoreToUI() {
			rec.mu.Lock()
			switch e := event.(type) {
			case eventbus.OutputEvent:
				rec.msgs = append(rec.msgs, e.Messages...)
			case eventbus.QuitEvent:
				rec.quit = true
			}
			rec.mu.Unlock()
		}
	}()
	return rec
}

func (r *uiRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

func (r *uiRecorder) count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if strings.Contains(m.Content, substr) {
			n++
		}
	}
	return n
}

func (r *uiRecorder) sawQuit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quit
}

type routerFixture struct {
	router    *Router
	state     *StateManager
	store     *category.Store
	exec      *fakeExecutor
	trans     *fakeTranslator
	validator *fakeValidator
	assistant *fakeAssistant
	rec       *uiRecorder
	bus       *eventbus.EventBus
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	t.Setenv("MICROX_HOME", t.TempDir())

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.NoError(t, category.EnsureDefaultFile(cfg.DefaultCategoriesPath()))
	store, err := category.NewStore(cfg.DefaultCategoriesPath(), cfg.UserCategoriesPath(), zap.NewNop())
	require.NoError(t, err)

	bus := eventbus.NewEventBus()
	t.Cleanup(bus.Close)
	rec := recordUI(bus)

	state := NewStateManager(zap.NewNop())
	exec := &fakeExecutor{}
	trans := &fakeTranslator{result: &ai.Translation{Command: "ls -la", Validated: true}}
	validator := &fakeValidator{verdict: ai.No}
	assistant := &fakeAssistant{}

	router := NewRouter(cfg, bus, state, store, security.NewSanitizer(zap.NewNop()),
		trans, validator, assistant, exec, zap.NewNop())
	router.Start()
	t.Cleanup(router.Stop)

	return &routerFixture{
		router: router, state: state, store: store, exec: exec,
		trans: trans, validator: validator, assistant: assistant,
		rec: rec, bus: bus,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func (f *routerFixture) waitIdle(t *testing.T) {
	t.Helper()
	waitFor(t, func() bool { return f.state.State() == models.StateIdle })
}

func TestKnownCommandExecutesDirectly(t *testing.T) {
	f := newRouterFixture(t)
	_, err := f.store.Add("htop", category.SemiInteractive)
	require.NoError(t, err)

	f.router.HandleInput("htop")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)

	call := f.exec.lastCall()
	assert.Equal(t, "htop", call.command)
	assert.Equal(t, category.SemiInteractive, call.cat)
}

func TestUnknownLiteralEntersCategorization(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("mycustomtool --serve")
	assert.Equal(t, models.StateCategorization, f.state.State())

	// Main action 2: categorize as semi_interactive and run.
	f.router.HandleInput("2")

	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)

	assert.Equal(t, category.SemiInteractive, f.exec.lastCall().cat)
	assert.Equal(t, category.SemiInteractive, f.store.Classify("mycustomtool --serve"))
}

func TestCategorizationExecuteOnceDoesNotPersist(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("mycustomtool --serve")
	f.router.HandleInput("d") // run once with the default category

	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)

	assert.Equal(t, category.Simple, f.exec.lastCall().cat)
	assert.Equal(t, category.Unknown, f.store.Classify("mycustomtool --serve"))
}

func TestPhraseGoesThroughTranslationAndConfirmation(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.result = &ai.Translation{Command: "ls -la", Validated: true}

	f.router.HandleInput("show me all the files here")
	waitFor(t, func() bool { return f.state.State() == models.StateConfirmation })

	f.router.HandleInput("y")
	// ls -la ships in the default category layer as simple, so this
	// executes straight away.
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)

	assert.Equal(t, "ls -la", f.exec.lastCall().command)
}

func TestConfirmationModifyExecutesModifiedCommand(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.result = &ai.Translation{Command: "ls", Validated: false}

	f.router.HandleInput("show me the files")
	waitFor(t, func() bool { return f.state.State() == models.StateConfirmation })

	f.router.HandleInput("m")
	f.router.HandleInput("ls -lh")

	// ls -lh ships categorized, so the edit goes straight to execution.
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	assert.Equal(t, "ls -lh", f.exec.lastCall().command)
}

func TestConfirmationCancel(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.result = &ai.Translation{Command: "ls", Validated: true}

	f.router.HandleInput("show me the files")
	waitFor(t, func() bool { return f.state.State() == models.StateConfirmation })

	f.router.HandleInput("c")
	f.waitIdle(t)

	assert.Zero(t, f.exec.callCount())
	waitFor(t, func() bool { return f.rec.contains("Cancelled") })
}

func TestTranslationRefusedReturnsToIdle(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.err = ai.ErrTranslationRefused

	f.router.HandleInput("please delete absolutely everything")
	f.waitIdle(t)

	assert.Zero(t, f.exec.callCount())
	waitFor(t, func() bool { return f.rec.contains("refused") })
}

func TestTranslationFailureFallsBackToLiteral(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.err = ai.ErrTranslationFailed

	f.router.HandleInput("do a thing with the files")
	waitFor(t, func() bool { return f.state.State() == models.StateCategorization })

	// The literal phrase is now the candidate command.
	f.router.HandleInput("1")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	assert.Equal(t, "do a thing with the files", f.exec.lastCall().command)
}

func TestModelUnavailableAbortsRequest(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.err = ai.ErrModelUnavailable

	f.router.HandleInput("show me the files")
	f.waitIdle(t)

	assert.Zero(t, f.exec.callCount())
	waitFor(t, func() bool { return f.rec.contains("unreachable") })
}

func TestValidatorRescuesCommandShapedPhrase(t *testing.T) {
	f := newRouterFixture(t)
	f.validator.verdict = ai.Yes

	// Phrase-like but carries a path, so the shape counterweight plus
	// validator consensus treats it as a literal command.
	f.router.HandleInput("cat /etc/hostname somewhere")
	waitFor(t, func() bool { return f.state.State() == models.StateCategorization })
}

func TestDangerousInputBlockedBeforePipeline(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("rm -rf /")
	assert.Equal(t, models.StateIdle, f.state.State())
	assert.Zero(t, f.exec.callCount())
	waitFor(t, func() bool { return f.rec.contains("Blocked by the security filter") })
}

func TestExpansionRevealsDangerAtFinalCheck(t *testing.T) {
	f := newRouterFixture(t)
	f.state.SetCwd("/")
	_, err := f.store.Add("rm -rf $CWD", category.Simple)
	require.NoError(t, err)

	f.router.HandleInput("rm -rf $CWD")
	f.waitIdle(t)

	assert.Zero(t, f.exec.callCount())
	waitFor(t, func() bool { return f.rec.contains("Blocked by the security filter") })
}

func TestCwdExpansionBeforeExecution(t *testing.T) {
	f := newRouterFixture(t)
	f.state.SetCwd("/tmp")
	_, err := f.store.Add("echo $CWD", category.Simple)
	require.NoError(t, err)

	f.router.HandleInput("echo $CWD")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	assert.Equal(t, "echo /tmp", f.exec.lastCall().command)
}

func TestForcedDirectPhrasePromptsCaution(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("!show me the files please")
	assert.Equal(t, models.StateCaution, f.state.State())

	f.router.HandleInput("y")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)
	assert.Equal(t, "show me the files please", f.exec.lastCall().command)
}

func TestForcedDirectCautionDeclined(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("!show me the files please")
	f.router.HandleInput("n")

	f.waitIdle(t)
	assert.Zero(t, f.exec.callCount())
}

func TestForcedDirectCommandSkipsTranslation(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("!mytool --flag")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	assert.Equal(t, "mytool --flag", f.exec.lastCall().command)
	assert.Equal(t, category.Simple, f.exec.lastCall().cat)
}

func TestForcedAITranslation(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.result = &ai.Translation{Command: "ls -la", Validated: true}

	// "ls" alone would never trip the phrase heuristic, but /ai forces
	// the translator anyway.
	f.router.HandleInput("/ai ls")
	waitFor(t, func() bool { return f.state.State() == models.StateConfirmation })
}

func TestCdChangesWorkingDirectory(t *testing.T) {
	f := newRouterFixture(t)
	dir := t.TempDir()

	f.router.HandleInput("cd " + dir)
	assert.Equal(t, dir, f.state.Cwd())
	assert.Zero(t, f.exec.callCount())

	f.router.HandleInput("cd /definitely/not/a/real/dir")
	assert.Equal(t, dir, f.state.Cwd())
	waitFor(t, func() bool { return f.rec.contains("Not a directory") })
}

func TestCategoryBuiltins(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("/command add 2 kubetool watch")
	assert.Equal(t, category.SemiInteractive, f.store.Classify("kubetool watch"))

	f.router.HandleInput("/command move 3 kubetool watch")
	assert.Equal(t, category.InteractiveTUI, f.store.Classify("kubetool watch"))

	f.router.HandleInput("/command remove kubetool watch")
	assert.Equal(t, category.Unknown, f.store.Classify("kubetool watch"))

	f.router.HandleInput("/command list")
	waitFor(t, func() bool { return f.rec.contains("simple:") })
}

func TestSlashPrefixNeedsExactBuiltinWord(t *testing.T) {
	f := newRouterFixture(t)

	// Near-miss builtins are ordinary unknown literals, not AI queries.
	f.router.HandleInput("/aix do something")
	assert.Equal(t, models.StateCategorization, f.state.State())
	assert.Zero(t, f.trans.callCount())
	f.router.handleInterrupt()
	f.waitIdle(t)

	f.router.HandleInput("/commands foo")
	assert.Equal(t, models.StateCategorization, f.state.State())
	f.router.handleInterrupt()
	f.waitIdle(t)

	// The bare words still work.
	f.router.HandleInput("/command")
	waitFor(t, func() bool { return f.rec.contains("Usage: /command") })
	f.router.HandleInput("/ai")
	waitFor(t, func() bool { return f.rec.contains("Usage: /ai") })
	assert.Equal(t, models.StateIdle, f.state.State())
}

func TestInteractiveRunSkipsNoOutputNote(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.result = &executil.Result{}
	_, err := f.store.Add("editor", category.InteractiveTUI)
	require.NoError(t, err)

	f.router.HandleInput("editor")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, f.rec.contains("(no output)"))
}

func TestSimpleRunReportsEmptyOutput(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.result = &executil.Result{}
	_, err := f.store.Add("true", category.Simple)
	require.NoError(t, err)

	f.router.HandleInput("true")
	waitFor(t, func() bool { return f.exec.callCount() == 1 })
	f.waitIdle(t)

	waitFor(t, func() bool { return f.rec.contains("(no output)") })
}

func TestFailureOffersRecoveryAnalysis(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.result = &executil.Result{Stderr: "command not found\n", ExitCode: 127}
	_, err := f.store.Add("brokentool", category.Simple)
	require.NoError(t, err)

	f.router.HandleInput("brokentool")
	waitFor(t, func() bool { return f.state.State() == models.StateErrorRecovery })

	f.router.HandleInput("y")
	f.waitIdle(t)

	f.assistant.mu.Lock()
	analyzed := len(f.assistant.analyzed)
	f.assistant.mu.Unlock()
	assert.Equal(t, 1, analyzed)
	assert.True(t, f.rec.contains("the binary is missing"))
}

func TestFailureRecoveryDeclined(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.result = &executil.Result{ExitCode: 1}
	_, err := f.store.Add("brokentool", category.Simple)
	require.NoError(t, err)

	f.router.HandleInput("brokentool")
	waitFor(t, func() bool { return f.state.State() == models.StateErrorRecovery })

	f.router.HandleInput("n")
	f.waitIdle(t)

	f.assistant.mu.Lock()
	analyzed := len(f.assistant.analyzed)
	f.assistant.mu.Unlock()
	assert.Zero(t, analyzed)
}

func TestSpawnFailureEntersRecovery(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.err = errors.New("tmux window died")
	_, err := f.store.Add("htop", category.SemiInteractive)
	require.NoError(t, err)

	f.router.HandleInput("htop")
	waitFor(t, func() bool { return f.state.State() == models.StateErrorRecovery })
}

func TestTmuxMissingReportedDirectly(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.err = executil.ErrTmuxMissing
	_, err := f.store.Add("htop", category.SemiInteractive)
	require.NoError(t, err)

	f.router.HandleInput("htop")
	f.waitIdle(t)
	waitFor(t, func() bool { return f.rec.contains("tmux is required") })
}

func TestInterruptCancelsCategorization(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("mycustomtool --serve")
	require.Equal(t, models.StateCategorization, f.state.State())

	f.router.handleInterrupt()
	f.waitIdle(t)
	assert.Zero(t, f.exec.callCount())
	waitFor(t, func() bool { return f.rec.contains("Categorization cancelled") })
}

func TestInterruptWhileExecutingIsNotAFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.exec.blockUntilCancel = true
	_, err := f.store.Add("sleeper", category.Simple)
	require.NoError(t, err)

	f.router.HandleInput("sleeper")
	require.Equal(t, models.StateExecuting, f.state.State())

	f.router.handleInterrupt()
	f.waitIdle(t)

	// Give the abandoned request goroutine a chance to misbehave.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, f.rec.contains("Interrupted"))
	assert.False(t, f.rec.contains("Command failed"))
	assert.False(t, f.rec.contains("Analyze the failure"))
	assert.Equal(t, models.StateIdle, f.state.State())

	// The next input starts fresh instead of feeding a stale prompt.
	f.router.HandleInput("y")
	assert.Equal(t, models.StateCategorization, f.state.State())
	f.router.handleInterrupt()
	f.waitIdle(t)
}

func TestInterruptAtIdleQuits(t *testing.T) {
	f := newRouterFixture(t)
	f.waitIdle(t)

	f.router.handleInterrupt()
	waitFor(t, f.rec.sawQuit)
}

func TestExitBuiltinQuits(t *testing.T) {
	f := newRouterFixture(t)

	f.router.HandleInput("exit")
	waitFor(t, f.rec.sawQuit)
}

func TestExplainDuringConfirmation(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.result = &ai.Translation{Command: "mytool --flag", Validated: true}

	f.router.HandleInput("run my tool with the flag")
	waitFor(t, func() bool { return f.state.State() == models.StateConfirmation })

	f.router.HandleInput("e")
	waitFor(t, func() bool { return f.rec.contains("it lists files") })
	assert.Equal(t, models.StateConfirmation, f.state.State())

	f.router.HandleInput("c")
	f.waitIdle(t)
}

func TestExplainAbandonedWhenFlowResolvesFirst(t *testing.T) {
	f := newRouterFixture(t)
	f.trans.result = &ai.Translation{Command: "mytool --flag", Validated: true}
	f.assistant.explainGate = make(chan struct{})

	f.router.HandleInput("run my tool with the flag")
	waitFor(t, func() bool { return f.state.State() == models.StateConfirmation })
	firstPrompts := f.rec.count("AI suggests")

	f.router.HandleInput("e")
	// Resolve the flow while the explanation is still in flight.
	f.router.HandleInput("y")
	waitFor(t, func() bool { return f.state.State() == models.StateCategorization })

	close(f.assistant.explainGate)
	time.Sleep(50 * time.Millisecond)

	// The stale explanation is dropped and the confirmation prompt is
	// not re-shown over the wizard.
	assert.False(t, f.rec.contains("it lists files"))
	assert.Equal(t, firstPrompts, f.rec.count("AI suggests"))
	assert.Equal(t, models.StateCategorization, f.state.State())
}
