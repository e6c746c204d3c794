package welcome

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/prawko/prawko/internal/ui/theme"
)

var bannerRows = []string{
	"██████╗ ██████╗  █████╗ ██╗    ██╗██╗  ██╗ ██████╗ ",
	"██╔══██╗██╔══██╗██╔══██╗██║    ██║██║ ██╔╝██╔═══██╗",
	"██████╔╝██████╔╝███████║██║ █╗ ██║█████╔╝ ██║   ██║",
	"██╔═══╝ ██╔══██╗██╔══██║██║███╗██║██╔═██╗ ██║   ██║",
	"██║     ██║  ██║██║  ██║╚███╔███╔╝██║  ██╗╚██████╔╝",
	"╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝ ╚══╝╚══╝ ╚═╝  ╚═╝ ╚═════╝ ",
}

// RenderBanner draws the block-letter logo, shading the upper rows in the
// primary colour and the lower rows in the secondary one. Terminals too
// narrow for the art get spaced capitals instead.
func RenderBanner(width int) string {
	if width < lipgloss.Width(bannerRows[0])+4 {
		return lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("P R A W K O")
	}
	rows := make([]string, len(bannerRows))
	for i, r := range bannerRows {
		c := theme.Primary
		if i >= len(bannerRows)/2 {
			c = theme.Secondary
		}
		rows[i] = lipgloss.NewStyle().Foreground(c).Bold(true).Render(r)
	}
	return strings.Join(rows, "\n")
}
