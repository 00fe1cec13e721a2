// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chatsvc "github.com/ssutikno/chat-node-n8n/internal/chat"
	"github.com/ssutikno/chat-node-n8n/internal/logging"
	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/session"
	"github.com/ssutikno/chat-node-n8n/internal/ui/styles"
	"github.com/ssutikno/chat-node-n8n/internal/util"
	"github.com/ssutikno/chat-node-n8n/internal/webhook"
)

const logModule = "ui"

// Layout constants.
const (
	sidebarWidth    = 28
	minSidebarTotal = 70
	inputHeight     = 3
	headerHeight    = 1
	statusHeight    = 1
)

// =============================================================================
// MESSAGES
// =============================================================================

// storeChangedMsg is sent when the session store reports a change.
type storeChangedMsg struct{}

// initDoneMsg is sent when the chat service finished initializing.
type initDoneMsg struct {
	activeID string
	err      error
}

// sendDoneMsg is sent when a send finished.
type sendDoneMsg struct{ err error }

// switchDoneMsg is sent when a conversation switch finished.
type switchDoneMsg struct{ err error }

// =============================================================================
// MODEL
// =============================================================================

// Options configures the chat screen.
type Options struct {
	Service *chatsvc.Service
	Theme   *styles.Theme

	// MaxWidth caps the message column. 0 follows the terminal.
	MaxWidth int

	Logger logging.Logger
}

// Model is the chat screen.
type Model struct {
	svc    *chatsvc.Service
	store  *session.Store
	theme  *styles.Theme
	logger logging.Logger

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	md       *markdownRenderer

	changes     chan struct{}
	unsubscribe func()
	cancelMgr   *cancelManager

	width    int
	height   int
	maxWidth int
	ready    bool
	spinning bool

	sidebarOpen  bool
	sidebarFocus bool
	cursor       int

	status    string
	statusErr bool
	showHelp  bool
}

// New creates the chat screen and subscribes it to the store.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeAuto)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your message..."
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	store := opts.Service.Store()

	// The channel coalesces bursts of changes into one redraw.
	changes := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(session.Change) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	m := Model{
		svc:         opts.Service,
		store:       store,
		theme:       opts.Theme,
		logger:      opts.Logger,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		viewport:    viewport.New(80, 20),
		input:       ti,
		spinner:     sp,
		md:          &markdownRenderer{},
		changes:     changes,
		unsubscribe: unsubscribe,
		cancelMgr:   newCancelManager(),
		maxWidth:    opts.MaxWidth,
		sidebarOpen: true,
	}
	m.applyTheme()
	return m
}

// Close cancels any in-flight send and detaches from the store.
func (m Model) Close() {
	m.cancelMgr.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// waitForChange blocks until the store changes.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the service initialization and the change listener.
func (m Model) Init() tea.Cmd {
	svc := m.svc
	return tea.Batch(
		textinput.Blink,
		waitForChange(m.changes),
		func() tea.Msg {
			id, err := svc.Initialize(context.Background())
			return initDoneMsg{activeID: id, err: err}
		},
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case storeChangedMsg:
		m.refresh()
		cmds = append(cmds, waitForChange(m.changes))
		if m.store.Loading() && !m.spinning {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.store.Loading() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case initDoneMsg:
		if msg.err != nil {
			m.setStatus("Failed to initialize: "+msg.err.Error(), true)
		}
		m.syncCursor()
		return m, nil

	case sendDoneMsg:
		m.cancelMgr.cancel()
		m.handleSendError(msg.err)
		return m, nil

	case switchDoneMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleSendError turns a send result into a status line.
func (m *Model) handleSendError(err error) {
	switch {
	case err == nil:
		m.setStatus("", false)
	case errors.Is(err, chatsvc.ErrSendInFlight):
		m.setStatus("Wait for the current response to finish.", true)
	case webhook.IsCanceled(err):
		m.setStatus("Response stopped.", false)
	case webhook.IsNotConfigured(err):
		m.setStatus("Set backend.webhook_url or CHAT_WEBHOOK_URL.", true)
	case webhook.IsTimeout(err):
		m.logger.Warn(logModule, "Send timed out", map[string]interface{}{"error": err.Error()})
		m.setStatus("The backend did not answer in time (backend.timeout_secs).", true)
	case webhook.IsStatus(err):
		m.logger.Warn(logModule, "Send rejected", map[string]interface{}{"error": err.Error()})
		m.setStatus("The backend rejected the message: "+err.Error(), true)
	default:
		m.logger.Warn(logModule, "Send failed", map[string]interface{}{"error": err.Error()})
		m.setStatus("Send failed: "+err.Error(), true)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.cancelMgr.cancel() {
			return m, nil
		}
		if m.sidebarFocus {
			m.setSidebarFocus(false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		m.theme.Toggle()
		m.applyTheme()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.sidebarOpen = !m.sidebarOpen
		if !m.sidebarOpen {
			m.setSidebarFocus(false)
		}
		m.layout()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		if m.svc.Sending() {
			m.setStatus("Wait for the current response to finish.", true)
			return m, nil
		}
		m.svc.NewConversation()
		m.input.Reset()
		m.cursor = 0
		m.setStatus("", false)
		return m, nil

	case key.Matches(msg, m.keys.FocusSidebar):
		if m.sidebarOpen {
			m.setSidebarFocus(!m.sidebarFocus)
			m.syncCursor()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.sidebarFocus {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.store.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.store.Conversations()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(convs)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Submit):
		if m.cursor >= len(convs) {
			return m, nil
		}
		if m.svc.Sending() {
			m.setStatus("Wait for the current response to finish.", true)
			return m, nil
		}
		id := convs[m.cursor].ID
		m.setSidebarFocus(false)
		if id == m.store.ActiveConversationID() {
			return m, nil
		}
		svc := m.svc
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			return switchDoneMsg{err: svc.SwitchConversation(ctx, id)}
		}
	}
	return m, nil
}

// submit sends the input text in the background.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	if m.svc.Sending() {
		m.setStatus("Wait for the current response to finish.", true)
		return m, nil
	}
	m.input.Reset()
	m.setStatus("", false)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)
	svc := m.svc
	return m, func() tea.Msg {
		return sendDoneMsg{err: svc.Send(ctx, text)}
	}
}

func (m *Model) setSidebarFocus(focus bool) {
	m.sidebarFocus = focus
	if focus {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
}

// syncCursor points the sidebar cursor at the active conversation.
func (m *Model) syncCursor() {
	active := m.store.ActiveConversationID()
	for i, c := range m.store.Conversations() {
		if c.ID == active {
			m.cursor = i
			return
		}
	}
	m.cursor = 0
}

// =============================================================================
// LAYOUT AND RENDERING
// =============================================================================

func (m *Model) applyTheme() {
	m.spinner.Style = m.theme.Spinner
	m.input.PromptStyle = m.theme.HeaderTitle
	m.input.PlaceholderStyle = m.theme.Muted
	m.help.Styles.ShortKey = m.theme.HeaderMeta
	m.help.Styles.ShortDesc = m.theme.Help
	m.help.Styles.FullKey = m.theme.HeaderMeta
	m.help.Styles.FullDesc = m.theme.Help
}

func (m *Model) showSidebar() bool {
	return m.sidebarOpen && m.width >= minSidebarTotal
}

// mainWidth is the width of the message column.
func (m *Model) mainWidth() int {
	w := m.width
	if m.showSidebar() {
		w -= sidebarWidth + 1
	}
	return max(w, 20)
}

func (m *Model) layout() {
	if !m.ready {
		return
	}
	footer := statusHeight
	if m.showHelp {
		footer = lipgloss.Height(m.help.View(m.keys))
	}
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = max(m.height-headerHeight-inputHeight-footer, 3)
	m.input.Width = max(m.width-6, 10)
	m.help.Width = m.width
}

// refresh re-renders the messages from a store snapshot, keeping the view
// pinned to the bottom when it was there.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0

	width := m.viewport.Width
	if m.maxWidth > 0 {
		width = min(width, m.maxWidth)
	}

	messages := m.store.Messages()
	loading := m.store.Loading()
	parts := make([]string, 0, len(messages)+1)
	for i, msg := range messages {
		// Only the message being streamed shows the spinner while empty.
		spin := ""
		if loading && i == len(messages)-1 {
			spin = m.spinner.View()
		}
		parts = append(parts, renderMessage(m.theme, m.md, msg, width, spin))
	}
	if loading && (len(messages) == 0 || messages[len(messages)-1].Sender == model.SenderUser) {
		parts = append(parts, m.spinner.View()+" "+m.theme.Muted.Render("Bot is typing..."))
	}
	if len(parts) == 0 {
		parts = append(parts, m.theme.Muted.Render("No messages yet. Say hello!"))
	}

	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.renderHeader()

	main := m.viewport.View()
	if m.showSidebar() {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	}

	input := m.theme.InputContainer.Width(max(m.width-2, 10)).Render(m.input.View())

	var footer string
	switch {
	case m.showHelp:
		footer = m.help.View(m.keys)
	case m.status != "":
		style := m.theme.StatusBar
		if m.statusErr {
			style = m.theme.StatusError
		}
		footer = style.Render(util.TruncateWidth(m.status, m.width-2))
	default:
		footer = m.theme.StatusBar.Render(m.help.View(m.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, main, input, footer)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("n8n Chat")
	meta := ""
	if conv, ok := m.store.ActiveConversation(); ok {
		meta = model.SingleLine(conv.Title)
	}
	if m.store.Loading() {
		meta += "  " + m.spinner.View()
	}
	room := max(m.width-lipgloss.Width(title)-4, 0)
	line := title + "  " + m.theme.HeaderMeta.Render(util.TruncateWidth(meta, room))
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderSidebar() string {
	inner := sidebarWidth - 2
	active := m.store.ActiveConversationID()

	lines := []string{m.theme.SidebarTitle.Render("Conversations")}
	for i, c := range m.store.Conversations() {
		marker := "  "
		style := m.theme.SidebarItem
		if c.ID == active {
			marker = "● "
			style = m.theme.SidebarActive
		}
		title := util.PadWidth(util.TruncateWidth(model.SingleLine(c.Title), inner-2), inner-2)
		line := style.Render(marker + title)
		if m.sidebarFocus && i == m.cursor {
			line = m.theme.SidebarCursor.Render(marker + title)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", m.theme.Help.Render("C-n new chat"))

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(strings.Join(lines, "\n"))
}
