// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ssutikno/chat-node-n8n/internal/logging"
	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/storage"
)

const logModule = "session"

// Persistence keys.
const (
	KeyConversations = "chat-sessions-list"
	KeySession       = "chat-session"
)

// Variant selects what is persisted.
type Variant string

const (
	// VariantMulti keeps a conversation list and the active id.
	VariantMulti Variant = "multi"
	// VariantSingle keeps one session id and no list.
	VariantSingle Variant = "single"
)

// ErrUnknownConversation is returned when switching to an id that is not
// in the conversation list.
var ErrUnknownConversation = errors.New("unknown conversation")

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// Change tells subscribers which part of the state moved.
type Change int

const (
	ChangeMessages Change = iota
	ChangeConversations
	ChangeInput
	ChangeLoading
)

// String returns the string representation of the change.
func (c Change) String() string {
	switch c {
	case ChangeMessages:
		return "messages"
	case ChangeConversations:
		return "conversations"
	case ChangeInput:
		return "input"
	case ChangeLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// =============================================================================
// STORE
// =============================================================================

// Options configures a Store.
type Options struct {
	// KV persists conversation identifiers. Nil keeps state in memory.
	KV storage.KV

	// Variant defaults to VariantMulti.
	Variant Variant

	Logger logging.Logger
}

// Patch is a partial message update. Nil fields are left unchanged.
type Patch struct {
	Text      *string
	ChartData *model.ChartData
}

// Store is the chat state container.
type Store struct {
	mu            sync.RWMutex
	messages      []model.Message
	conversations []model.Conversation
	activeID      string
	input         string
	loading       bool
	closed        bool
	initialized   bool

	// notifyMu serializes subscriber delivery in mutation order.
	notifyMu    sync.Mutex
	subscribers map[int]func(Change)
	nextSubID   int

	kv      storage.KV
	variant Variant
	logger  logging.Logger
}

// NewStore creates an empty store. Call Initialize before use.
func NewStore(opts Options) *Store {
	if opts.Variant == "" {
		opts.Variant = VariantMulti
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Store{
		subscribers: make(map[int]func(Change)),
		kv:          opts.KV,
		variant:     opts.Variant,
		logger:      opts.Logger,
	}
}

// Initialize loads persisted identifiers and makes sure one conversation
// is active: a fresh one when the list is empty, otherwise the first.
// It returns the active conversation id. Later calls only return it.
func (s *Store) Initialize() (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New("session store is closed")
	}
	if s.initialized {
		activeID := s.activeID
		s.mu.Unlock()
		return activeID, nil
	}
	s.initialized = true

	s.load()

	created := false
	if s.activeID == "" {
		if len(s.conversations) == 0 {
			conv := model.NewConversation()
			s.conversations = []model.Conversation{conv}
			created = true
		}
		s.activeID = s.conversations[0].ID
		s.messages = nil
		s.persist()
	}
	activeID := s.activeID
	s.notifyLocked(ChangeConversations, ChangeMessages)

	s.logger.Info(logModule, "Session initialized", map[string]interface{}{
		"active_id":     activeID,
		"conversations": len(s.Conversations()),
		"created":       created,
		"variant":       string(s.variant),
	})
	return activeID, nil
}

// Close releases the persistence backend. Later mutations stay in memory.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	kv := s.kv
	s.mu.Unlock()

	s.notifyMu.Lock()
	s.subscribers = make(map[int]func(Change))
	s.notifyMu.Unlock()

	if kv == nil {
		return nil
	}
	return kv.Close()
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.subscribers, id)
	}
}

// notifyLocked hands delivery over from s.mu to notifyMu: the state lock
// is released only once notifyMu is held, so deliveries keep the order of
// the mutations that caused them. Must be called with s.mu held; returns
// with it released.
func (s *Store) notifyLocked(changes ...Change) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, c := range changes {
		for _, fn := range s.subscribers {
			fn(c)
		}
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends msg to the active conversation's messages. The first
// user message names the active conversation.
func (s *Store) AddMessage(msg model.Message) {
	s.mu.Lock()
	firstUser := msg.Sender == model.SenderUser && !s.hasUserMessage()
	s.messages = append(s.messages, msg.Clone())

	if !firstUser || s.activeID == "" {
		s.notifyLocked(ChangeMessages)
		return
	}
	s.setTitle(s.activeID, model.DeriveTitle(msg.Text))
	s.notifyLocked(ChangeMessages, ChangeConversations)
}

func (s *Store) hasUserMessage() bool {
	for _, m := range s.messages {
		if m.Sender == model.SenderUser {
			return true
		}
	}
	return false
}

// SetMessages replaces the message list.
func (s *Store) SetMessages(messages []model.Message) {
	s.mu.Lock()
	s.messages = cloneMessages(messages)
	s.notifyLocked(ChangeMessages)
}

// UpdateMessage applies p to the message with the given id. It reports
// whether the message was found.
func (s *Store) UpdateMessage(id string, p Patch) bool {
	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if p.Text != nil {
			s.messages[i].Text = *p.Text
		}
		if p.ChartData != nil {
			s.messages[i].ChartData = p.ChartData.Clone()
		}
		s.notifyLocked(ChangeMessages)
		return true
	}
	s.mu.Unlock()
	return false
}

// Messages returns a copy of the active conversation's messages.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

func cloneMessages(in []model.Message) []model.Message {
	out := make([]model.Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

// =============================================================================
// INPUT AND LOADING
// =============================================================================

// SetInput replaces the pending input text.
func (s *Store) SetInput(text string) {
	s.mu.Lock()
	if s.input == text {
		s.mu.Unlock()
		return
	}
	s.input = text
	s.notifyLocked(ChangeInput)
}

// Input returns the pending input text.
func (s *Store) Input() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	if s.loading == loading {
		s.mu.Unlock()
		return
	}
	s.loading = loading
	s.notifyLocked(ChangeLoading)
}

// Loading reports whether a response is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation creates a conversation, puts it first in the list, makes
// it active and clears the messages.
func (s *Store) NewConversation() model.Conversation {
	conv := model.NewConversation()

	s.mu.Lock()
	if s.variant == VariantSingle {
		s.conversations = []model.Conversation{conv}
	} else {
		s.conversations = append([]model.Conversation{conv}, s.conversations...)
	}
	s.activeID = conv.ID
	s.messages = nil
	s.persist()
	s.notifyLocked(ChangeConversations, ChangeMessages)

	s.logger.Info(logModule, "Conversation created", map[string]interface{}{
		"conversation_id": conv.ID,
	})
	return conv
}

// SwitchConversation makes id active and clears the messages before any
// history for it is loaded.
func (s *Store) SwitchConversation(id string) error {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	s.activeID = id
	s.messages = nil
	s.persist()
	s.notifyLocked(ChangeConversations, ChangeMessages)
	return nil
}

// SetConversationTitle renames a conversation. Unknown ids are ignored.
func (s *Store) SetConversationTitle(id, title string) {
	s.mu.Lock()
	if !s.setTitle(id, title) {
		s.mu.Unlock()
		return
	}
	s.notifyLocked(ChangeConversations)
}

func (s *Store) setTitle(id, title string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.conversations[i].Title = title
	s.persist()
	return true
}

func (s *Store) indexOf(id string) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Conversations returns a copy of the conversation list, newest first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Conversation(nil), s.conversations...)
}

// ActiveConversationID returns the active conversation id, or "" before
// Initialize.
func (s *Store) ActiveConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveConversation returns the active conversation.
func (s *Store) ActiveConversation() (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(s.activeID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.conversations[i], true
}
