// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the small key-value store that keeps the
// conversation list across restarts.
//
// Values are opaque JSON documents addressed by a fixed namespace key.
// Two backends implement KV:
//
//   - FileKV: one <key>.json file per key, replaced atomically
//   - SQLiteKV: a single kv table in a pure-Go SQLite database
//
// Open picks a backend by name:
//
//	kv, err := storage.Open("sqlite", "~/.chatn8n/state")
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
// Get returns ErrNotFound for a key that was never written.
package storage
