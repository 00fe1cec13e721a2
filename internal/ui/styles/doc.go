// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and Lip Gloss styles of the terminal
client.

# Colors (colors.go)

Every color is a lipgloss.AdaptiveColor pair. The Theme, not the terminal,
decides which half is used, so the dark/light toggle works at runtime:

	Accent       - headers, active sidebar entry, spinner
	UserBubble*  - user messages
	BotBubble*   - bot messages
	ErrorBubble* - synthetic error messages
	Text*        - body, secondary and muted text

ChartPalette is the fallback series palette for datasets without a color.

# Theme (theme.go)

	theme := styles.NewTheme(styles.ModeAuto)
	theme.Toggle()
	title := theme.HeaderTitle.Render("n8n Chat")

ModeAuto asks termenv whether the terminal background is dark.
*/
package styles
