package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/ai"
	"github.com/microx-shell/microx/internal/category"
	"github.com/microx-shell/microx/internal/config"
	"github.com/microx-shell/microx/internal/core"
	"github.com/microx-shell/microx/internal/dispatcher"
	"github.com/microx-shell/microx/internal/eventbus"
	"github.com/microx-shell/microx/internal/executil"
	"github.com/microx-shell/microx/internal/logging"
	"github.com/microx-shell/microx/internal/models"
	"github.com/microx-shell/microx/internal/security"
)

// Application manages the complete application lifecycle.
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	eventBus   *eventbus.EventBus
	dispatcher *dispatcher.EventDispatcher
	router     *core.Router
	model      *AppModel
}

func NewApplication() (*Application, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Dir(), cfg.Debug)
	if err != nil {
		logger = logging.Nop()
	}

	if err := category.EnsureDefaultFile(cfg.DefaultCategoriesPath()); err != nil {
		logger.Warn("failed to seed default categories", zap.Error(err))
	}
	store, err := category.NewStore(cfg.DefaultCategoriesPath(), cfg.UserCategoriesPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load category store: %w", err)
	}

	eb := eventbus.NewEventBus()
	disp := dispatcher.NewEventDispatcher(eb)

	// AI components are always constructed; the router gates their use
	// on a valid profile.
	client := ai.NewClient(cfg.GetAPIKey(), cfg.GetBaseURL(), logger)
	validator := ai.NewValidator(client, cfg.GetValidatorModel(), cfg.Engine.ValidatorAttempts, logger)
	translator := ai.NewTranslator(client, cfg.GetTranslatorModel(), cfg.GetDirectTranslatorModel(),
		validator, cfg.Engine.TranslationCycles, logger)
	assistant := ai.NewAssistant(client, cfg.GetTranslatorModel())

	tmux := executil.NewTmuxClient(logger)
	engine := executil.NewEngine(tmux, time.Duration(cfg.Engine.SemiInteractiveTimeoutSec)*time.Second, logger)

	state := core.NewStateManager(logger)
	router := core.NewRouter(cfg, eb, state, store, security.NewSanitizer(logger),
		translator, validator, assistant, engine, logger)

	model := &AppModel{
		appModel:   createInitialAppModel(router, state),
		dispatcher: disp,
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		eventBus:   eb,
		dispatcher: disp,
		router:     router,
		model:      model,
	}, nil
}

func (app *Application) Start() error {
	app.router.Start()

	p := tea.NewProgram(app.model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (app *Application) Stop() {
	app.router.Stop()
	app.dispatcher.Stop()
	app.eventBus.Close()
	_ = app.logger.Sync()
}

func createInitialAppModel(router *core.Router, state *core.StateManager) models.AppModel {
	// Messages come from the core as the single source of truth; the UI
	// starts empty.
	return models.AppModel{
		Messages:    make([]models.Message, 0),
		Status:      models.StateBooting.String(),
		State:       models.StateBooting,
		Cwd:         state.Cwd(),
		EngineReady: router.IsReady(),
	}
}
