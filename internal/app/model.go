package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/microx-shell/microx/internal/dispatcher"
	"github.com/microx-shell/microx/internal/models"
	"github.com/microx-shell/microx/internal/update"
	"github.com/microx-shell/microx/ui/components"
)

type AppModel struct {
	appModel   models.AppModel
	dispatcher *dispatcher.EventDispatcher
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		update.TickCmd(),
		m.dispatcher.ListenForUIEvents(),
	)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle core events and re-arm the listener.
	if coreEvent, ok := msg.(dispatcher.CoreEventMsg); ok {
		cmd := update.HandleCoreEvent(&m.appModel, coreEvent)
		return m, tea.Batch(cmd, m.dispatcher.ListenForUIEvents())
	}

	cmd := update.HandleUpdate(&m.appModel, msg, m.dispatcher.GetEventBus())
	return m, cmd
}

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(components.RenderMessages(m.appModel.Messages))
	b.WriteString(components.RenderInput(m.appModel.Input, m.appModel.State, m.appModel.Width))
	b.WriteString("\n")
	b.WriteString(components.RenderStatus(m.appModel.Status, m.appModel.Cwd, m.appModel.Busy, m.appModel.LoadingDots, m.appModel.Width))

	return b.String()
}
