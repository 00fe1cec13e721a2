// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea model of the terminal client.
//
// The model never owns chat state. It renders snapshots of the session
// store and redraws whenever the store reports a change, so a streamed
// answer grows on screen exactly as the reconciler updates the store.
//
// Layout:
//
//	+-----------------+---------------------------------+
//	| Conversations   | messages (viewport)             |
//	| > New Chat      |                                 |
//	|   Sales report  |                                 |
//	+-----------------+---------------------------------+
//	| > input                                           |
//	| status / key help                                 |
//	+---------------------------------------------------+
//
// Bot messages are rendered as Markdown with glamour; charts are drawn as
// labelled horizontal bars (bar, line) or share percentages (pie).
package chat
