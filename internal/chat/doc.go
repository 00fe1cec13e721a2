// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the send and load flows that tie the session
// store, the webhook client and the stream reconciler together.
//
// A send records the user's message, posts it, and turns the answer into
// one bot message. Streamed answers grow that message in place as chunks
// arrive; every update goes through the store so the UI only ever renders
// store snapshots.
//
// # Usage
//
//	svc := chat.NewService(chat.Options{Store: store, Transport: client})
//	if _, err := svc.Initialize(ctx); err != nil {
//	    return err
//	}
//	err := svc.Send(ctx, "Show me last month's sales")
//
// Only one send runs at a time; a second returns ErrSendInFlight.
package chat
