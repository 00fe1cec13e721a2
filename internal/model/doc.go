// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one chat message (user or bot) with optional chart payload
//   - ChartData: bar, line or pie chart attached to a bot message
//   - Dataset: one chart series; unknown keys are kept as display attributes
//   - Conversation: id and title of an entry in the conversation list
//
// # Usage
//
//	msg := model.NewUserMessage("Show me last month's sales")
//	conv := model.NewConversation()
//	conv.Title = model.DeriveTitle(msg.Text)
//
// Message and Conversation are plain values; the session store hands out
// copies so callers never share mutable state with it.
package model
