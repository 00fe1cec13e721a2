// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package webhook is the HTTP client for the chat workflow backend.
//
// Two endpoints are used:
//
//   - GET <history_url>?sessionId=<id> returns {"messages": [...]}.
//   - POST <webhook_url> with {"sessionId", "message", "timestamp"}
//     answers with a whole JSON object or a streamed body.
//
// FetchHistory never fails; it logs and returns an empty slice. Send
// returns *ClientError values that can be checked with IsNotConfigured,
// IsTimeout, IsCanceled and IsStatus. Nothing is retried.
//
// Example:
//
//	client := webhook.NewClient(&webhook.ClientConfig{WebhookURL: url}, log)
//	resp, err := client.Send(ctx, webhook.SendRequest{SessionID: id, Message: text})
//	if err != nil {
//	    return err
//	}
//	defer resp.Close()
package webhook
