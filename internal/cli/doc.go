// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the chatn8n command tree.
//
// # Commands
//
//   - chatn8n: interactive chat (default)
//   - chatn8n ask <text>: send one message and print the answer
//   - chatn8n sessions list|new|use <id>: manage the conversation list
//   - chatn8n history [id]: print the backend history of a conversation
//   - chatn8n config show|path|init|set: inspect and edit the config file
//
// Every command except the config file helpers loads the configuration
// and builds the logger in the root's PersistentPreRunE. The interactive
// chat never logs to the console because it owns the terminal.
package cli
