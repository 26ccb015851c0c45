// Package cli renders cardwise output for the terminal using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles shared by the renderers. Colors live inline; nothing else reads them.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))
	SubtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	// BorderStyle colors box and table borders.
	BorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))

	TableHeaderStyle = TitleStyle.UnsetMargins().Padding(0, 1)
	TableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	CardIcon    = "💳"
	ChartIcon   = "📊"
	TargetIcon  = "🎯"
)

func withIcon(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

// FormatSuccess marks a completed action.
func FormatSuccess(message string) string { return withIcon(SuccessStyle, SuccessIcon, message) }

// FormatError marks a failure.
func FormatError(message string) string { return withIcon(ErrorStyle, ErrorIcon, message) }

// FormatWarning marks something the user should look at.
func FormatWarning(message string) string { return withIcon(WarningStyle, WarningIcon, message) }

// FormatInfo marks a neutral status line.
func FormatInfo(message string) string { return withIcon(InfoStyle, InfoIcon, message) }

// FormatTitle renders a section title.
func FormatTitle(title string) string { return withIcon(TitleStyle, CardIcon, title) }

// FormatPrompt renders a question awaiting input.
func FormatPrompt(prompt string) string {
	return TitleStyle.UnsetMargins().Render(prompt + " → ")
}

// RenderBox renders content under a title inside a rounded border.
func RenderBox(title, content string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, TitleStyle.UnsetMargins().Render(title), content)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderStyle.GetForeground()).
		Padding(1, 2).
		Render(body)
}
