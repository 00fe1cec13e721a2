// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the structured logger used across the client.
//
// Entries are JSON lines written to a size-rotated file. An optional
// console core mirrors them to stderr in human-readable form; it stays off
// while the TUI owns the terminal.
//
// Every call names the module that emitted it and carries a details map:
//
//	log.Warn("webhook", "history fetch failed", map[string]interface{}{
//		"session_id": id,
//		"error":      err.Error(),
//	})
//
// Nop returns a Logger that discards everything, for tests and callers
// that do not care.
package logging
