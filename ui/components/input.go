package components

import (
	"github.com/microx-shell/microx/internal/models"
	"github.com/microx-shell/microx/ui/styles"
)

func RenderInput(input string, state models.AppState, width int) string {
	prefix := "$ "
	if state.AwaitingDecision() {
		prefix = "? "
	}
	return styles.InputStyle(width).Render(prefix + input)
}
