// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/session"
	uichat "github.com/ssutikno/chat-node-n8n/internal/ui/chat"
	"github.com/ssutikno/chat-node-n8n/internal/ui/styles"
)

const defaultWidth = 80

type askOptions struct {
	newConversation bool
	raw             bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the answer",
		Long: `Send one message to the active conversation and print the answer.

On a terminal the answer is rendered as markdown once it is complete.
Otherwise, or with --raw, text is written as it streams in.`,
		Example: `  chatn8n ask "Show me last month's sales"
  chatn8n ask --new --raw What is the weather like | tee answer.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().BoolVarP(&opts.newConversation, "new", "n", false, "start a new conversation first")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print plain text as it streams, without markdown rendering")
	return cmd
}

func runAsk(cmd *cobra.Command, root *rootOptions, opts *askOptions, text string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, err := root.openService()
	if err != nil {
		return err
	}
	store := svc.Store()
	defer store.Close()

	if _, err := svc.Initialize(ctx); err != nil {
		return err
	}
	if opts.newConversation {
		svc.NewConversation()
	}

	out := cmd.OutOrStdout()
	render := !opts.raw && isTerminalWriter(out)

	seen := make(map[string]bool)
	for _, msg := range store.Messages() {
		seen[msg.ID] = true
	}

	var printer *streamPrinter
	if !render {
		printer = &streamPrinter{out: out, store: store, seen: seen}
		unsubscribe := store.Subscribe(printer.onChange)
		defer unsubscribe()
	}

	sendErr := svc.Send(ctx, text)

	reply, found := newestReply(store.Messages(), seen)
	switch {
	case !found:
	case reply.IsError():
		if printer != nil {
			printer.finish()
		}
		fmt.Fprintln(cmd.ErrOrStderr(), reply.Text)
	case render:
		theme := newTheme(root.cfg.UI.Theme)
		width := terminalWidth(out, defaultWidth)
		fmt.Fprint(out, renderMarkdown(reply.Text, width, theme.GlamourStyle()))
		printChart(out, theme, reply, width)
	default:
		printer.finish()
		printChart(out, newTheme(root.cfg.UI.Theme), reply, defaultWidth)
	}
	return sendErr
}

// newestReply returns the last bot message that was not in seen.
func newestReply(messages []model.Message, seen map[string]bool) (model.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Sender == model.SenderBot && !seen[msg.ID] {
			return msg, true
		}
	}
	return model.Message{}, false
}

// =============================================================================
// STREAMED OUTPUT
// =============================================================================

// streamPrinter writes the growing text of the reply as it changes.
type streamPrinter struct {
	out     io.Writer
	store   *session.Store
	seen    map[string]bool
	id      string
	printed string
}

func (p *streamPrinter) onChange(change session.Change) {
	if change != session.ChangeMessages {
		return
	}
	reply, ok := newestReply(p.store.Messages(), p.seen)
	if !ok || reply.IsError() {
		return
	}
	if p.id != reply.ID {
		p.id = reply.ID
		p.printed = ""
	}
	p.write(reply.Text)
}

// write prints what text adds to the printed prefix. A rewrite that does
// not extend the prefix is printed on a new line.
func (p *streamPrinter) write(text string) {
	switch {
	case text == p.printed:
		return
	case strings.HasPrefix(text, p.printed):
		fmt.Fprint(p.out, text[len(p.printed):])
	default:
		fmt.Fprint(p.out, "\n"+text)
	}
	p.printed = text
}

// finish terminates the streamed text with a newline.
func (p *streamPrinter) finish() {
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.out)
	}
}

// =============================================================================
// RENDERING
// =============================================================================

// newTheme builds the theme named in the config. Unknown names fall back
// to terminal detection.
func newTheme(name string) *styles.Theme {
	mode, err := styles.ParseMode(name)
	if err != nil {
		mode = styles.ModeAuto
	}
	return styles.NewTheme(mode)
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func renderMarkdown(text string, width int, style string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text + "\n"
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return rendered
}

func printChart(out io.Writer, theme *styles.Theme, msg model.Message, width int) {
	if msg.ChartData == nil {
		return
	}
	fmt.Fprintln(out, uichat.RenderChart(theme, msg.ChartData, width))
}
