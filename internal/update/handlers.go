package update

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/microx-shell/microx/internal/dispatcher"
	"github.com/microx-shell/microx/internal/eventbus"
	"github.com/microx-shell/microx/internal/models"
)

// HandleKeyMsg handles keyboard input. All semantics live in the core;
// the UI only edits the input line and forwards submissions.
func HandleKeyMsg(appModel *models.AppModel, keyMsg tea.KeyMsg, eb *eventbus.EventBus) tea.Cmd {
	switch keyMsg.String() {
	case "ctrl+c":
		// The core decides: cancel whatever is pending, or quit when
		// idle. It answers with QuitEvent in the latter case.
		if err := eb.SendToCore(eventbus.InterruptEvent{}); err != nil {
			return tea.Quit
		}
	case "ctrl+d":
		return tea.Quit
	case "enter":
		line := appModel.Input
		appModel.Input = ""
		if strings.TrimSpace(line) == "" {
			return nil
		}
		if err := eb.SendToCore(eventbus.SubmitInputEvent{Line: line}); err != nil {
			appModel.Status = "Error sending input: " + err.Error()
		}
	case "backspace":
		if len(appModel.Input) > 0 {
			appModel.Input = appModel.Input[:len(appModel.Input)-1]
		}
	case "ctrl+u":
		appModel.Input = ""
	case " ":
		appModel.Input += " "
	default:
		if keyMsg.Type == tea.KeyRunes {
			appModel.Input += string(keyMsg.Runes)
		}
	}
	return nil
}

// HandleCoreEvent processes one event coming out of the core loop.
func HandleCoreEvent(appModel *models.AppModel, msg dispatcher.CoreEventMsg) tea.Cmd {
	switch event := msg.Event.(type) {
	case eventbus.OutputEvent:
		appModel.Messages = append(appModel.Messages, event.Messages...)
	case eventbus.StateChangeEvent:
		appModel.State = event.State
		appModel.Cwd = event.Cwd
		appModel.Busy = event.Busy
		appModel.Status = event.State.String()
	case eventbus.QuitEvent:
		return tea.Quit
	}
	return nil
}

type TickMsg time.Time

func TickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func HandleWindowSizeMsg(appModel *models.AppModel, sizeMsg tea.WindowSizeMsg) {
	appModel.Width = sizeMsg.Width
	appModel.Height = sizeMsg.Height
}

func HandleTickMsg(appModel *models.AppModel) tea.Cmd {
	// Only drives the busy animation.
	if appModel.Busy {
		appModel.LoadingDots = (appModel.LoadingDots + 1) % 4
	}
	return TickCmd()
}
