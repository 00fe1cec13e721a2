// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/session"
)

// errHistoryNotConfigured is returned when no history URL is set.
var errHistoryNotConfigured = errors.New("history URL is not configured (set backend.history_url or CHAT_HISTORY_URL)")

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Print the stored messages of a conversation",
		Long: `Print the messages the backend stores for a conversation.

Without an id the active conversation is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := root.newClient()
			if !client.HistoryConfigured() {
				return errHistoryNotConfigured
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				err := withStore(root, func(store *session.Store) error {
					id = store.ActiveConversationID()
					return nil
				})
				if err != nil {
					return err
				}
			}

			messages := client.FetchHistory(cmd.Context(), id)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(messages)
			}
			printHistory(cmd.OutOrStdout(), messages)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print messages as JSON")
	return cmd
}

func printHistory(out io.Writer, messages []model.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages.")
		return
	}
	for _, msg := range messages {
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Local().Format("2006-01-02 15:04"),
			msg.Sender.DisplayName(), msg.Text)
		if msg.ChartData != nil {
			fmt.Fprintf(out, "    (%s chart, %d labels)\n", msg.ChartData.Type, len(msg.ChartData.Labels))
		}
	}
}
