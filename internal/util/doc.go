// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat client.
//
// # Key Functions
//
// Strings:
//   - TruncateRunesNoEllipsis: character-safe truncation
//   - TruncateWidth, PadWidth, StringWidth: terminal column aware layout
//
// Files:
//   - AtomicWriteFile: crash-safe replacement of state files
//
// # Usage
//
//	title := util.TruncateRunesNoEllipsis(text, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
