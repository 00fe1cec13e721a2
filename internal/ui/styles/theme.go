// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Mode selects the theme variant.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeDark, ModeLight:
		return Mode(s), nil
	}
	return ModeAuto, fmt.Errorf("unknown theme %q", s)
}

// Theme holds all the styled components of the client.
type Theme struct {
	IsDark bool

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	Sidebar       lipgloss.Style
	SidebarTitle  lipgloss.Style
	SidebarItem   lipgloss.Style
	SidebarActive lipgloss.Style
	SidebarCursor lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble  lipgloss.Style
	BotBubble   lipgloss.Style
	ErrorBubble lipgloss.Style
	Sender      lipgloss.Style
	Timestamp   lipgloss.Style

	// ==========================================================================
	// CHARTS
	// ==========================================================================

	ChartTitle lipgloss.Style
	ChartLabel lipgloss.Style
	ChartValue lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	Spinner        lipgloss.Style
	StatusBar      lipgloss.Style
	StatusError    lipgloss.Style
	Help           lipgloss.Style
	Muted          lipgloss.Style
}

// NewTheme creates a theme. ModeAuto follows the terminal background.
func NewTheme(mode Mode) *Theme {
	isDark := true
	switch mode {
	case ModeLight:
		isDark = false
	case ModeDark:
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{}
	t.SetDark(isDark)
	return t
}

// SetDark switches the variant and rebuilds every style.
func (t *Theme) SetDark(dark bool) {
	t.IsDark = dark
	t.initStyles()
}

// Toggle flips between the dark and light variants.
func (t *Theme) Toggle() {
	t.SetDark(!t.IsDark)
}

// Mode returns the current variant.
func (t *Theme) Mode() Mode {
	if t.IsDark {
		return ModeDark
	}
	return ModeLight
}

// GlamourStyle names the glamour standard style matching the variant.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// Color resolves an adaptive color for the current variant.
func (t *Theme) Color(c lipgloss.AdaptiveColor) lipgloss.Color {
	if t.IsDark {
		return lipgloss.Color(c.Dark)
	}
	return lipgloss.Color(c.Light)
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	c := t.Color

	// Header
	t.Header = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Accent))
	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(c(TextSecondary)).
		Italic(true)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(c(Border)).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(TextSecondary)).
		MarginBottom(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(c(TextPrimary))
	t.SidebarActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Accent))
	t.SidebarCursor = lipgloss.NewStyle().
		Reverse(true)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(c(UserBubbleFg)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c(UserBubbleBorder)).
		Padding(0, 1).
		MarginLeft(4)
	t.BotBubble = lipgloss.NewStyle().
		Foreground(c(BotBubbleFg)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c(BotBubbleBorder)).
		Padding(0, 1).
		MarginRight(4)
	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(c(ErrorBubbleFg)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c(ErrorBubbleBorder)).
		Padding(0, 1).
		MarginRight(4)
	t.Sender = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(TextSecondary))
	t.Timestamp = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	// Charts
	t.ChartTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(TextPrimary))
	t.ChartLabel = lipgloss.NewStyle().
		Foreground(c(TextSecondary))
	t.ChartValue = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(c(Border)).
		Padding(0, 1)
	t.Spinner = lipgloss.NewStyle().
		Foreground(c(Accent))
	t.StatusBar = lipgloss.NewStyle().
		Foreground(c(TextSecondary)).
		Padding(0, 1)
	t.StatusError = lipgloss.NewStyle().
		Foreground(c(Danger)).
		Bold(true)
	t.Help = lipgloss.NewStyle().
		Foreground(c(TextMuted))
	t.Muted = lipgloss.NewStyle().
		Foreground(c(TextMuted))
}
