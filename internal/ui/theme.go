// Package ui holds the Lip Gloss styles used by studyctl.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	IconStar    = "⭐"
	IconBook    = "📚"
	IconFire    = "🔥"
	IconTrophy  = "🏆"
	IconBolt    = "⚡"
	IconCoin    = "🪙"
	IconSync    = "🔄"
	IconWarn    = "⚠️"
	IconError   = "🧨"
	IconSparkle = "✨"
)

var (
	cPrimary = lipgloss.Color("#3b82f6")
	cAccent  = lipgloss.Color("#a855f7")
	cGood    = lipgloss.Color("#22c55e")
	cWarn    = lipgloss.Color("#d97706")
	cBad     = lipgloss.Color("#dc2626")
	cMuted   = lipgloss.Color("#6b7280")
	cGold    = lipgloss.Color("#f59e0b")
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	Panel = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
)

func Heading(icon, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// Bar renders a width-cell progress bar for pct in [0,1], coloured by how
// far along it is.
func Bar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	pct = max(0, min(pct, 1))
	filled := int(pct*float64(width) + 0.5)

	color := cBad
	switch {
	case pct >= 0.8:
		color = cGood
	case pct >= 0.5:
		color = cWarn
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	return bar + Muted.Render(strings.Repeat("░", width-filled))
}

// Signed renders a point delta with its sign, green for gains and red for
// losses.
func Signed(n int) string {
	switch {
	case n > 0:
		return Good.Render(fmt.Sprintf("+%d", n))
	case n < 0:
		return Bad.Render(fmt.Sprintf("%d", n))
	default:
		return Muted.Render("±0")
	}
}
