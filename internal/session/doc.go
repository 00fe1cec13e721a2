// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the client's in-memory chat state: the message
// list of the active conversation, the conversation list, the pending
// input text and the loading flag.
//
// A Store is created once by the entry point and passed to whoever needs
// it. Only conversation identifiers are persisted; message bodies are
// refetched from the backend.
//
// # Usage
//
//	store := session.NewStore(session.Options{KV: kv, Logger: log})
//	defer store.Close()
//	activeID, err := store.Initialize()
//
//	unsubscribe := store.Subscribe(func(c session.Change) { ... })
//	defer unsubscribe()
//
// Every method is safe for concurrent use. Subscribers run after the
// store's lock is released, one at a time, in mutation order; they may
// read from the store but must not mutate it.
package session
