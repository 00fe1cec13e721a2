// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/session"
	"github.com/ssutikno/chat-node-n8n/internal/util"
)

// titleWidth is the column width of titles in the session list.
const titleWidth = 48

func newSessionsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage the conversation list",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(root, func(store *session.Store) error {
				printSessions(cmd.OutOrStdout(), store)
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations; the active one is marked with *",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(root, func(store *session.Store) error {
					printSessions(cmd.OutOrStdout(), store)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Start a new conversation and make it active",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(root, func(store *session.Store) error {
					conv := store.NewConversation()
					fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "use <id>",
			Short: "Make a conversation active",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(root, func(store *session.Store) error {
					if err := store.SwitchConversation(args[0]); err != nil {
						return err
					}
					conv, _ := store.ActiveConversation()
					fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s (%s)\n", conv.ID, conv.Title)
					return nil
				})
			},
		},
	)
	return cmd
}

// withStore opens and initializes the store for the duration of fn.
func withStore(root *rootOptions, fn func(*session.Store) error) error {
	store, err := root.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Initialize(); err != nil {
		return err
	}
	return fn(store)
}

func printSessions(out io.Writer, store *session.Store) {
	active := store.ActiveConversationID()
	for _, conv := range store.Conversations() {
		marker := " "
		if conv.ID == active {
			marker = "*"
		}
		title := util.TruncateWidth(model.SingleLine(conv.Title), titleWidth)
		fmt.Fprintf(out, "%s %s  %s\n", marker, conv.ID, title)
	}
}
