package update

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/microx-shell/microx/internal/eventbus"
	"github.com/microx-shell/microx/internal/models"
)

// HandleUpdate routes Bubble Tea messages to their handlers. Core
// events are handled by the app model directly so it can re-arm the
// listener command.
func HandleUpdate(appModel *models.AppModel, msg tea.Msg, eb *eventbus.EventBus) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return HandleKeyMsg(appModel, msg, eb)
	case tea.WindowSizeMsg:
		HandleWindowSizeMsg(appModel, msg)
		return nil
	case TickMsg:
		return HandleTickMsg(appModel)
	}
	return nil
}
