// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	uichat "github.com/ssutikno/chat-node-n8n/internal/ui/chat"
	"github.com/ssutikno/chat-node-n8n/internal/ui/styles"
)

// runTUI starts the interactive chat in the alternate screen.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	mode, err := styles.ParseMode(opts.cfg.UI.Theme)
	if err != nil {
		return err
	}

	svc, err := opts.openService()
	if err != nil {
		return err
	}
	defer svc.Store().Close()

	model := uichat.New(uichat.Options{
		Service:  svc,
		Theme:    styles.NewTheme(mode),
		MaxWidth: opts.cfg.UI.Width,
		Logger:   opts.logger,
	})

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	final, err := p.Run()
	if m, ok := final.(uichat.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	if err != nil {
		return fmt.Errorf("chat UI: %w", err)
	}
	return nil
}
