package ui

import (
	"dictengine/pkg/ui/base"

	"github.com/charmbracelet/lipgloss"
)

var (
	palette = base.DarkPalette

	primaryColor   = palette.Primary
	secondaryColor = palette.Secondary
	accentColor    = palette.Accent
	warningColor   = palette.Warning
	errorColor     = palette.Error
	textMuted      = palette.Muted

	bgDark        = lipgloss.Color("#0F172A")
	bgLight       = lipgloss.Color("#334155")
	textPrimary   = lipgloss.Color("#F8FAFC")
	textSecondary = lipgloss.Color("#CBD5E1")
)

var (
	titleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B5CF6")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 2)

	stepStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	sessionBadgeStyle = lipgloss.NewStyle().
				Background(secondaryColor).
				Foreground(bgDark).
				Bold(true).
				Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Background(accentColor).
			Foreground(bgDark).
			Bold(true).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Background(warningColor).
			Foreground(bgDark).
			Bold(true).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Background(errorColor).
			Foreground(textPrimary).
			Bold(true).
			Padding(0, 1)

	headerCellStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	cellStyle = lipgloss.NewStyle().
			Foreground(textSecondary)

	nullCellStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Italic(true)

	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(bgLight).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(textMuted)
)
