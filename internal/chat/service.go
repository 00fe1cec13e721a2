// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ssutikno/chat-node-n8n/internal/logging"
	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/session"
	"github.com/ssutikno/chat-node-n8n/internal/stream"
	"github.com/ssutikno/chat-node-n8n/internal/webhook"
)

const logModule = "chat"

// Transport is the part of the webhook client the service uses.
type Transport interface {
	Configured() bool
	FetchHistory(ctx context.Context, sessionID string) []model.Message
	Send(ctx context.Context, req webhook.SendRequest) (*webhook.Response, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Options configures a Service.
type Options struct {
	Store     *session.Store
	Transport Transport

	// Boundary and ReadSize configure the stream reconciler.
	Boundary stream.Boundary
	ReadSize int

	// CacheTTL keeps fetched histories this long. 0 disables the cache.
	CacheTTL time.Duration

	// Sample seeds the demonstration conversation instead of loading
	// history.
	Sample bool

	Logger logging.Logger
}

// Service runs the chat flows against one store.
type Service struct {
	store     *session.Store
	transport Transport
	boundary  stream.Boundary
	readSize  int
	sample    bool
	logger    logging.Logger

	// history caches fetched messages by conversation id. Nil when off.
	history *cache.Cache

	sending atomic.Bool
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	svc := &Service{
		store:     opts.Store,
		transport: opts.Transport,
		boundary:  opts.Boundary,
		readSize:  opts.ReadSize,
		sample:    opts.Sample,
		logger:    opts.Logger,
	}
	if opts.CacheTTL > 0 {
		svc.history = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return svc
}

// Store returns the session store the service drives.
func (s *Service) Store() *session.Store {
	return s.store
}

// Sending reports whether a send is in flight.
func (s *Service) Sending() bool {
	return s.sending.Load()
}

// Initialize resolves the active conversation and fills its messages,
// either from the backend or with the sample conversation. It returns the
// active conversation id.
func (s *Service) Initialize(ctx context.Context) (string, error) {
	id, err := s.store.Initialize()
	if err != nil {
		return "", err
	}
	if s.sample {
		s.store.SetMessages(SampleMessages())
		return id, nil
	}
	s.LoadHistory(ctx, id)
	return id, nil
}

// NewConversation starts an empty conversation and makes it active.
func (s *Service) NewConversation() model.Conversation {
	return s.store.NewConversation()
}

// SwitchConversation activates id, clearing the visible messages at once,
// then loads its history.
func (s *Service) SwitchConversation(ctx context.Context, id string) error {
	if err := s.store.SwitchConversation(id); err != nil {
		return err
	}
	if !s.sample {
		s.LoadHistory(ctx, id)
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

// LoadHistory fetches the messages of conversation id and installs them if
// id is still the active conversation. It reports whether they were
// installed.
func (s *Service) LoadHistory(ctx context.Context, id string) bool {
	messages, cached := s.cachedHistory(id)
	if !cached {
		messages = s.transport.FetchHistory(ctx, id)
		if len(messages) > 0 && s.history != nil {
			s.history.SetDefault(id, messages)
		}
	}

	if active := s.store.ActiveConversationID(); active != id {
		s.logger.Debug(logModule, "Discarding history for inactive conversation", map[string]interface{}{
			"conversation_id": id,
			"active_id":       active,
		})
		return false
	}
	s.store.SetMessages(messages)
	return true
}

func (s *Service) cachedHistory(id string) ([]model.Message, bool) {
	if s.history == nil {
		return nil, false
	}
	v, ok := s.history.Get(id)
	if !ok {
		return nil, false
	}
	messages, ok := v.([]model.Message)
	return messages, ok
}

func (s *Service) invalidate(id string) {
	if s.history != nil {
		s.history.Delete(id)
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send posts text as a user message in the active conversation and
// records the answer as a bot message. Blank text is ignored.
//
// Failures are also shown to the user as a bot message, except
// cancellation, which keeps whatever text had arrived.
func (s *Service) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !s.sending.CompareAndSwap(false, true) {
		return ErrSendInFlight
	}
	defer s.sending.Store(false)

	sessionID := s.store.ActiveConversationID()
	if sessionID == "" {
		return ErrNoActiveConversation
	}

	userMsg := model.NewUserMessage(text)
	s.store.AddMessage(userMsg)
	s.store.SetInput("")

	if !s.transport.Configured() {
		s.logger.Warn(logModule, "Webhook URL is not configured", nil)
		s.store.AddMessage(model.NewErrorMessage(NotConfiguredText))
		return webhook.ErrNotConfigured
	}

	s.store.SetLoading(true)
	defer s.store.SetLoading(false)
	defer s.invalidate(sessionID)

	resp, err := s.transport.Send(ctx, webhook.SendRequest{
		SessionID: sessionID,
		Message:   text,
		Timestamp: userMsg.Timestamp,
	})
	if err != nil {
		return s.fail(sessionID, err)
	}
	defer resp.Close()

	if resp.IsJSON() {
		if interp, ok := stream.InterpretBytes(resp.Body); ok {
			bot := model.NewBotMessage(interp.Text)
			bot.ChartData = interp.ChartData
			s.store.AddMessage(bot)
			s.logger.Debug(logModule, "JSON response", map[string]interface{}{
				"session_id": sessionID,
				"kind":       interp.Kind.String(),
				"bytes":      len(resp.Body),
			})
			return nil
		}
		return s.reconcile(ctx, sessionID, io.NopCloser(bytes.NewReader(resp.Body)))
	}
	return s.reconcile(ctx, sessionID, resp.Stream)
}

// reconcile grows one bot message from body until it ends.
func (s *Service) reconcile(ctx context.Context, sessionID string, body io.ReadCloser) error {
	bot := model.NewBotMessage("")
	s.store.AddMessage(bot)

	rec := stream.NewReconciler(stream.Options{
		Boundary: s.boundary,
		ReadSize: s.readSize,
	})
	_, err := rec.Reconcile(ctx, body, func(u stream.Update) {
		text := u.Text
		s.store.UpdateMessage(bot.ID, session.Patch{Text: &text, ChartData: u.ChartData})
	})

	details := rec.Stats().Fields()
	details["session_id"] = sessionID
	details["message_id"] = bot.ID
	s.logger.Info(logModule, "Stream finished", details)

	if err == nil {
		return nil
	}
	return s.fail(sessionID, &webhook.ClientError{
		Type:    webhook.ErrTypeConnection,
		Message: "failed to read response stream",
		Cause:   err,
	})
}

// fail logs err and, unless the caller cancelled, shows the generic
// failure message.
func (s *Service) fail(sessionID string, err error) error {
	details := map[string]interface{}{
		"session_id": sessionID,
		"error":      err.Error(),
	}
	if webhook.IsCanceled(err) {
		s.logger.Info(logModule, "Send cancelled", details)
		return err
	}
	s.logger.Error(logModule, "Failed to get response", details)
	s.store.AddMessage(model.NewErrorMessage(SendFailedText))
	return err
}
