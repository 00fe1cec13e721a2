// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/storage"
)

// listState is the persisted form of VariantMulti.
type listState struct {
	Conversations        []model.Conversation `json:"conversations"`
	ActiveConversationID *string              `json:"activeConversationId"`
}

// singleState is the persisted form of VariantSingle.
type singleState struct {
	SessionID string `json:"sessionId"`
}

func (s *Store) key() string {
	if s.variant == VariantSingle {
		return KeySession
	}
	return KeyConversations
}

// load reads persisted identifiers. Missing or unreadable state leaves the
// store empty. Caller holds s.mu.
func (s *Store) load() {
	if s.kv == nil {
		return
	}
	data, err := s.kv.Get(s.key())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn(logModule, "Failed to load session state", map[string]interface{}{
				"key":   s.key(),
				"error": err.Error(),
			})
		}
		return
	}

	if s.variant == VariantSingle {
		var st singleState
		if err := json.Unmarshal(data, &st); err != nil || st.SessionID == "" {
			s.discard(data, err)
			return
		}
		s.conversations = []model.Conversation{{ID: st.SessionID, Title: model.DefaultTitle}}
		s.activeID = st.SessionID
		return
	}

	var st listState
	if err := json.Unmarshal(data, &st); err != nil {
		s.discard(data, err)
		return
	}
	for _, c := range st.Conversations {
		if c.ID == "" {
			continue
		}
		if c.Title == "" {
			c.Title = model.DefaultTitle
		}
		s.conversations = append(s.conversations, c)
	}
	if st.ActiveConversationID != nil && s.indexOf(*st.ActiveConversationID) >= 0 {
		s.activeID = *st.ActiveConversationID
	}
}

func (s *Store) discard(data []byte, err error) {
	details := map[string]interface{}{
		"key":   s.key(),
		"bytes": len(data),
	}
	if err != nil {
		details["error"] = err.Error()
	}
	s.logger.Warn(logModule, "Ignoring unreadable session state", details)
}

// persist writes the identifiers. Failures are logged only. Caller holds
// s.mu.
func (s *Store) persist() {
	if s.kv == nil || s.closed {
		return
	}

	var (
		data []byte
		err  error
	)
	if s.variant == VariantSingle {
		data, err = json.Marshal(singleState{SessionID: s.activeID})
	} else {
		st := listState{Conversations: s.conversations}
		if st.Conversations == nil {
			st.Conversations = []model.Conversation{}
		}
		if s.activeID != "" {
			id := s.activeID
			st.ActiveConversationID = &id
		}
		data, err = json.Marshal(st)
	}
	if err == nil {
		err = s.kv.Set(s.key(), data)
	}
	if err != nil {
		s.logger.Error(logModule, "Failed to persist session state", map[string]interface{}{
			"key":   s.key(),
			"error": err.Error(),
		})
	}
}
