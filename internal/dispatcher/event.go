package dispatcher

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/microx-shell/microx/internal/eventbus"
)

// CoreEventMsg wraps a core event for Bubble Tea.
type CoreEventMsg struct {
	Event eventbus.CoreEvent
}

// EventDispatcher bridges the event bus into the Bubble Tea runtime.
type EventDispatcher struct {
	eventBus *eventbus.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewEventDispatcher(eventBus *eventbus.EventBus) *EventDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventDispatcher{
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (ed *EventDispatcher) Stop() {
	ed.cancel()
}

func (ed *EventDispatcher) GetEventBus() *eventbus.EventBus {
	return ed.eventBus
}

// ListenForUIEvents waits for the next core event and hands it to the
// UI as a message. The model re-issues the command after each delivery,
// so there is exactly one reader draining the channel.
func (ed *EventDispatcher) ListenForUIEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ed.ctx.Done():
			return nil
		case event, ok := <-ed.eventBus.CoreToUI():
			if !ok {
				return nil
			}
			return CoreEventMsg{Event: event}
		}
	}
}
