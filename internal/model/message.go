// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Bot"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat message.
//
// Text is replaced wholesale by the stream reconciler while a response is
// in flight; Timestamp never changes after creation.
type Message struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Sender    Sender     `json:"sender"`
	Timestamp time.Time  `json:"timestamp"`
	ChartData *ChartData `json:"chartData,omitempty"`
}

// ID prefixes used for generated messages.
const (
	userIDPrefix  = "msg_"
	botIDPrefix   = "bot_"
	errorIDPrefix = "err_"
)

// NewMessage creates a message with a generated ID.
func NewMessage(sender Sender, text string) Message {
	prefix := userIDPrefix
	if sender == SenderBot {
		prefix = botIDPrefix
	}
	return Message{
		ID:        generateID(prefix),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) Message {
	return NewMessage(SenderUser, text)
}

// NewBotMessage creates a new bot message.
func NewBotMessage(text string) Message {
	return NewMessage(SenderBot, text)
}

// NewErrorMessage creates a synthetic bot message reporting a failure.
func NewErrorMessage(text string) Message {
	msg := NewMessage(SenderBot, text)
	msg.ID = generateID(errorIDPrefix)
	return msg
}

// HasChart reports whether the message carries a chart payload.
func (m Message) HasChart() bool {
	return m.ChartData != nil
}

// IsError reports whether the message was created by NewErrorMessage.
func (m Message) IsError() bool {
	return m.Sender == SenderBot && strings.HasPrefix(m.ID, errorIDPrefix)
}

// IsEmpty returns true if the message has neither text nor chart.
func (m Message) IsEmpty() bool {
	return m.Text == "" && m.ChartData == nil
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.ChartData != nil {
		m.ChartData = m.ChartData.Clone()
	}
	return m
}

// generateID creates a unique ID with the given prefix.
func generateID(prefix string) string {
	return prefix + uuid.NewString()
}
