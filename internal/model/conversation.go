// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/ssutikno/chat-node-n8n/internal/util"
)

// DefaultTitle is the title of a conversation with no user message yet.
const DefaultTitle = "New Chat"

// MaxTitleRunes is how many characters of the first user message make up
// a conversation title.
const MaxTitleRunes = 40

// titleEllipsis marks a truncated title.
const titleEllipsis = "..."

// conversationIDPrefix is the prefix of generated conversation IDs. The
// backend uses the ID as its session key.
const conversationIDPrefix = "session_"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one entry of the conversation list. Its messages are
// owned by the session store and refetched from the backend on load.
type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NewConversation creates a conversation with a fresh ID and the default
// title.
func NewConversation() Conversation {
	return Conversation{
		ID:    generateID(conversationIDPrefix),
		Title: DefaultTitle,
	}
}

// DeriveTitle builds a conversation title from the first user message:
// its first MaxTitleRunes characters, with an ellipsis when cut.
func DeriveTitle(text string) string {
	title := util.TruncateRunesNoEllipsis(text, MaxTitleRunes)
	if util.RuneLen(text) > MaxTitleRunes {
		title += titleEllipsis
	}
	return title
}

// SingleLine collapses line breaks so a title fits on one row.
func SingleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
