package components

import (
	"strings"

	"github.com/microx-shell/microx/ui/styles"
)

func RenderStatus(status, cwd string, busy bool, loadingDots int, width int) string {
	content := status
	if cwd != "" {
		content += "  " + cwd
	}
	if busy {
		content += "  " + strings.Repeat(".", loadingDots)
	}
	return styles.StatusStyle(width).Render(content)
}
