// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssutikno/chat-node-n8n/internal/chat"
	"github.com/ssutikno/chat-node-n8n/internal/config"
	"github.com/ssutikno/chat-node-n8n/internal/logging"
	"github.com/ssutikno/chat-node-n8n/internal/session"
	"github.com/ssutikno/chat-node-n8n/internal/storage"
	"github.com/ssutikno/chat-node-n8n/internal/stream"
	"github.com/ssutikno/chat-node-n8n/internal/webhook"
)

// Version information (set at build time).
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const logModule = "cli"

// skipConfig marks commands that work on the config file itself and must
// run even when the current configuration does not validate.
const skipConfig = "chatn8n/skip-config"

// =============================================================================
// ROOT COMMAND
// =============================================================================

// rootOptions is shared by every command of one invocation.
type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *logging.ZapLogger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chatn8n",
		Short: "Terminal chat client for n8n webhook workflows",
		Long: `chatn8n talks to a chat workflow behind an n8n webhook.

Run without arguments for the interactive chat, or use "ask" to send a
single message from scripts. Answers may arrive as one JSON object or as a
stream of text and JSON fragments; both are shown as they arrive.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" || cmd.Name() == "help" {
				return nil
			}
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.chatn8n/config.toml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging, mirrored to stderr outside the interactive chat")

	cmd.AddCommand(
		newAskCmd(opts),
		newSessionsCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads the configuration and builds the logger.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := cfg.Logging.Level
	if o.verbose {
		level = "debug"
	}
	interactive := cmd == cmd.Root()

	logger, err := logging.New(logging.Options{
		File:          cfg.Logging.File,
		Level:         level,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxBackups:    cfg.Logging.MaxBackups,
		MaxAgeDays:    cfg.Logging.MaxAgeDays,
		Console:       !interactive && (cfg.Logging.Console || o.verbose),
		ConsoleWriter: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger = logger
	logger.Debug(logModule, "command started", map[string]interface{}{
		"command": cmd.CommandPath(),
		"backend": cfg.State.Backend,
	})
	for _, warn := range cfg.Warnings() {
		logger.Warn(logModule, "config: "+warn, nil)
	}
	return nil
}

// =============================================================================
// WIRING
// =============================================================================

// openStore opens the configured state backend and wraps it in a store.
// Closing the store closes the backend.
func (o *rootOptions) openStore() (*session.Store, error) {
	kv, err := storage.Open(o.cfg.State.Backend, o.cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}
	return session.NewStore(session.Options{
		KV:      kv,
		Variant: session.Variant(o.cfg.State.Variant),
		Logger:  o.logger,
	}), nil
}

func (o *rootOptions) newClient() *webhook.Client {
	return webhook.NewClient(&webhook.ClientConfig{
		WebhookURL: o.cfg.Backend.WebhookURL,
		HistoryURL: o.cfg.Backend.HistoryURL,
		Timeout:    o.cfg.Backend.Timeout(),
		UserAgent:  "chatn8n/" + Version,
	}, o.logger)
}

// openService builds the store, the webhook client and the chat service
// from the loaded configuration. The caller closes the store.
func (o *rootOptions) openService() (*chat.Service, error) {
	boundary, err := stream.ParseBoundary(o.cfg.Stream.Boundary)
	if err != nil {
		return nil, err
	}
	store, err := o.openStore()
	if err != nil {
		return nil, err
	}
	return chat.NewService(chat.Options{
		Store:     store,
		Transport: o.newClient(),
		Boundary:  boundary,
		ReadSize:  o.cfg.Stream.ReadSize,
		CacheTTL:  o.cfg.History.CacheTTL(),
		Sample:    o.cfg.UI.Sample,
		Logger:    o.logger,
	}), nil
}
