// Package ui provides terminal rendering helpers shared by the CLI
// commands.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mdejong/klusjes/internal/types"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderAccent renders s in the accent color
func RenderAccent(s string) string {
	return accentStyle.Render(s)
}

// RenderPass renders s in the success color
func RenderPass(s string) string {
	return passStyle.Render(s)
}

// RenderWarn renders s in the warning color
func RenderWarn(s string) string {
	return warnStyle.Render(s)
}

// RenderErr renders s in the error color
func RenderErr(s string) string {
	return errStyle.Render(s)
}

// RenderDim renders s dimmed
func RenderDim(s string) string {
	return dimStyle.Render(s)
}

// RenderBold renders s bold
func RenderBold(s string) string {
	return boldStyle.Render(s)
}

// RenderStatus renders a task status with its conventional color
func RenderStatus(status types.Status) string {
	switch status {
	case types.StatusTodo:
		return dimStyle.Render(string(status))
	case types.StatusInProgress:
		return accentStyle.Render(string(status))
	case types.StatusWaiting:
		return warnStyle.Render(string(status))
	case types.StatusCompleted:
		return passStyle.Render(string(status))
	default:
		return string(status)
	}
}

// StatusGlyph returns the one-character marker for a task status
func StatusGlyph(status types.Status) string {
	switch status {
	case types.StatusTodo:
		return dimStyle.Render("○")
	case types.StatusInProgress:
		return accentStyle.Render("◐")
	case types.StatusWaiting:
		return warnStyle.Render("◑")
	case types.StatusCompleted:
		return passStyle.Render("●")
	default:
		return "?"
	}
}

// RoomSwatch renders a colored block in the room's configured color
func RoomSwatch(color string) string {
	if color == "" {
		return "  "
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("■ ")
}
