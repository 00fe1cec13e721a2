// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer caches one glamour renderer per style and wrap width.
// Shared by pointer across Model copies; only the update loop uses it.
type markdownRenderer struct {
	style string
	width int
	tr    *glamour.TermRenderer
}

// render renders markdown, falling back to the raw text when glamour
// fails.
func (r *markdownRenderer) render(content, style string, width int) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	if r.tr == nil || r.style != style || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		r.tr, r.style, r.width = tr, style, width
	}

	out, err := r.tr.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// renderMessage renders one message as a bubble no wider than width.
// spinner is shown in place of an empty bot message.
func renderMessage(theme *styles.Theme, md *markdownRenderer, msg model.Message, width int, spinner string) string {
	// Border and margin take six columns.
	inner := max(width-6, 10)

	header := theme.Sender.Render(msg.Sender.DisplayName()) + " " +
		theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))

	var body string
	switch {
	case msg.Sender == model.SenderUser:
		body = msg.Text
	case msg.IsError():
		body = msg.Text
	case msg.IsEmpty():
		body = spinner
	default:
		body = md.render(msg.Text, theme.GlamourStyle(), inner)
	}

	if msg.HasChart() {
		chart := RenderChart(theme, msg.ChartData, inner)
		if body == "" {
			body = chart
		} else {
			body += "\n\n" + chart
		}
	}

	bubble := theme.BotBubble
	switch {
	case msg.Sender == model.SenderUser:
		bubble = theme.UserBubble
	case msg.IsError():
		bubble = theme.ErrorBubble
	}
	return header + "\n" + bubble.Width(inner).Render(body)
}
