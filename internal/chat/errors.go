// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "errors"

var (
	// ErrSendInFlight is returned by Send while another send is running.
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrNoActiveConversation is returned when the store has no active
	// conversation, i.e. Initialize was not called.
	ErrNoActiveConversation = errors.New("no active conversation")
)

// Messages shown to the user in place of a bot answer.
const (
	NotConfiguredText = "Error: The webhook URL is not configured. Please check the configuration."
	SendFailedText    = "Failed to get response from the bot. Please check the logs for details."
)
