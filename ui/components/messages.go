package components

import (
	"strings"

	"github.com/microx-shell/microx/internal/models"
	"github.com/microx-shell/microx/ui/styles"
)

func RenderMessages(messages []models.Message) string {
	var b strings.Builder

	userStyle := styles.UserStyle()
	outputStyle := styles.OutputStyle()
	promptStyle := styles.PromptStyle()
	programStyle := styles.ProgramStyle()
	errorStyle := styles.ErrorStyle()

	for _, msg := range messages {
		switch msg.Type {
		case models.User:
			b.WriteString(userStyle.Render("> "+msg.Content) + "\n")
		case models.Output:
			b.WriteString(outputStyle.Render(msg.Content) + "\n")
		case models.Prompt:
			b.WriteString(promptStyle.Render(msg.Content) + "\n")
		case models.Error:
			b.WriteString(errorStyle.Render(msg.Content) + "\n")
		default:
			b.WriteString(programStyle.Render(msg.Content) + "\n")
		}
	}

	return b.String()
}
