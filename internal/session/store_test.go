// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/storage"
)

// memKV is an in-memory storage.KV.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	sets   int
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Close() error { return nil }

func newStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s := NewStore(Options{KV: kv})
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// INITIALIZE TESTS
// =============================================================================

func TestInitialize_EmptyCreatesConversation(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)

	id, err := s.Initialize()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "session_"))

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, id, convs[0].ID)
	assert.Equal(t, model.DefaultTitle, convs[0].Title)
	assert.Equal(t, id, s.ActiveConversationID())

	assert.JSONEq(t,
		`{"conversations":[{"id":"`+id+`","title":"New Chat"}],"activeConversationId":"`+id+`"}`,
		string(kv.data[KeyConversations]))
}

func TestInitialize_ActivatesFirstWhenNoActive(t *testing.T) {
	kv := newMemKV()
	kv.data[KeyConversations] = []byte(`{"conversations":[{"id":"a","title":"A"},{"id":"b","title":"B"}],"activeConversationId":null}`)
	s := newStore(t, kv)

	id, err := s.Initialize()
	require.NoError(t, err)
	assert.Equal(t, "a", id)
	assert.Len(t, s.Conversations(), 2)
}

func TestInitialize_KeepsPersistedActive(t *testing.T) {
	kv := newMemKV()
	kv.data[KeyConversations] = []byte(`{"conversations":[{"id":"a","title":"A"},{"id":"b","title":"B"}],"activeConversationId":"b"}`)
	s := newStore(t, kv)

	id, err := s.Initialize()
	require.NoError(t, err)
	assert.Equal(t, "b", id)
}

func TestInitialize_StaleActiveFallsBackToFirst(t *testing.T) {
	kv := newMemKV()
	kv.data[KeyConversations] = []byte(`{"conversations":[{"id":"a","title":"A"}],"activeConversationId":"gone"}`)
	s := newStore(t, kv)

	id, err := s.Initialize()
	require.NoError(t, err)
	assert.Equal(t, "a", id)
}

func TestInitialize_CorruptStateStartsFresh(t *testing.T) {
	kv := newMemKV()
	kv.data[KeyConversations] = []byte(`{not json`)
	s := newStore(t, kv)

	id, err := s.Initialize()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, s.Conversations(), 1)
}

func TestInitialize_SingleVariant(t *testing.T) {
	kv := newMemKV()
	s := NewStore(Options{KV: kv, Variant: VariantSingle})
	defer s.Close()

	id, err := s.Initialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId":"`+id+`"}`, string(kv.data[KeySession]))
	_, ok := kv.data[KeyConversations]
	assert.False(t, ok)

	// A second store picks the same session back up.
	again := NewStore(Options{KV: kv, Variant: VariantSingle})
	defer again.Close()
	id2, err := again.Initialize()
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	// New conversations replace the single session.
	conv := again.NewConversation()
	assert.Len(t, again.Conversations(), 1)
	assert.JSONEq(t, `{"sessionId":"`+conv.ID+`"}`, string(kv.data[KeySession]))
}

func TestInitialize_WithoutKV(t *testing.T) {
	s := NewStore(Options{})
	id, err := s.Initialize()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, s.Close())

	_, err = s.Initialize()
	assert.Error(t, err)
}

func TestInitialize_SurvivesFileBackend(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.Open(storage.BackendFile, dir)
	require.NoError(t, err)
	s := NewStore(Options{KV: kv})
	first, err := s.Initialize()
	require.NoError(t, err)
	second := s.NewConversation()
	require.NoError(t, s.Close())

	kv, err = storage.Open(storage.BackendFile, dir)
	require.NoError(t, err)
	reopened := NewStore(Options{KV: kv})
	defer reopened.Close()
	id, err := reopened.Initialize()
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	convs := reopened.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first, convs[1].ID)
}

func TestInitialize_RepeatedCallsKeepList(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.Open(storage.BackendFile, dir)
	require.NoError(t, err)
	s := newStore(t, kv)

	first, err := s.Initialize()
	require.NoError(t, err)
	second := s.NewConversation()

	id, err := s.Initialize()
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first, convs[1].ID)

	// Nothing duplicated on disk either.
	reopenedKV, err := storage.Open(storage.BackendFile, dir)
	require.NoError(t, err)
	reopened := newStore(t, reopenedKV)
	_, err = reopened.Initialize()
	require.NoError(t, err)
	assert.Len(t, reopened.Conversations(), 2)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestAddMessage_FirstUserMessageNamesConversation(t *testing.T) {
	s := newStore(t, newMemKV())
	id, err := s.Initialize()
	require.NoError(t, err)

	s.AddMessage(model.NewBotMessage("Welcome"))
	conv, ok := s.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, model.DefaultTitle, conv.Title)

	long := strings.Repeat("é", 45)
	s.AddMessage(model.NewUserMessage(long))
	conv, _ = s.ActiveConversation()
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, strings.Repeat("é", 40)+"...", conv.Title)

	s.AddMessage(model.NewUserMessage("second"))
	conv, _ = s.ActiveConversation()
	assert.Equal(t, strings.Repeat("é", 40)+"...", conv.Title)
	assert.Len(t, s.Messages(), 3)
}

func TestAddMessage_ShortTitleNoEllipsis(t *testing.T) {
	s := newStore(t, nil)
	_, err := s.Initialize()
	require.NoError(t, err)

	s.AddMessage(model.NewUserMessage("Show me sales"))
	conv, _ := s.ActiveConversation()
	assert.Equal(t, "Show me sales", conv.Title)
}

func TestUpdateMessage(t *testing.T) {
	s := newStore(t, nil)
	_, err := s.Initialize()
	require.NoError(t, err)

	bot := model.NewBotMessage("")
	s.AddMessage(bot)

	text := "Hello"
	assert.True(t, s.UpdateMessage(bot.ID, Patch{Text: &text}))

	chart := &model.ChartData{Type: model.ChartBar, Labels: []string{"a"}, Datasets: []model.Dataset{{Label: "x", Data: []float64{1}}}}
	assert.True(t, s.UpdateMessage(bot.ID, Patch{ChartData: chart}))
	chart.Labels[0] = "mutated"

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text)
	require.NotNil(t, msgs[0].ChartData)
	assert.Equal(t, "a", msgs[0].ChartData.Labels[0])
	assert.Equal(t, bot.Timestamp, msgs[0].Timestamp)

	assert.False(t, s.UpdateMessage("missing", Patch{Text: &text}))
}

func TestMessages_ReturnsCopies(t *testing.T) {
	s := newStore(t, nil)
	s.SetMessages([]model.Message{model.NewBotMessage("a")})

	msgs := s.Messages()
	msgs[0].Text = "changed"
	assert.Equal(t, "a", s.Messages()[0].Text)
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	s := newStore(t, newMemKV())
	first, err := s.Initialize()
	require.NoError(t, err)
	s.AddMessage(model.NewUserMessage("hi"))

	conv := s.NewConversation()
	assert.NotEqual(t, first, conv.ID)
	assert.Equal(t, model.DefaultTitle, conv.Title)
	assert.Equal(t, conv.ID, s.ActiveConversationID())
	assert.Empty(t, s.Messages())

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, conv.ID, convs[0].ID)
}

func TestSwitchConversation_ClearsMessages(t *testing.T) {
	s := newStore(t, newMemKV())
	first, err := s.Initialize()
	require.NoError(t, err)
	s.NewConversation()
	s.AddMessage(model.NewUserMessage("hi"))

	require.NoError(t, s.SwitchConversation(first))
	assert.Equal(t, first, s.ActiveConversationID())
	assert.Empty(t, s.Messages())

	err = s.SwitchConversation("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConversation))
	assert.Equal(t, first, s.ActiveConversationID())
}

func TestSetConversationTitle(t *testing.T) {
	kv := newMemKV()
	s := newStore(t, kv)
	id, err := s.Initialize()
	require.NoError(t, err)

	s.SetConversationTitle(id, "Renamed")
	conv, _ := s.ActiveConversation()
	assert.Equal(t, "Renamed", conv.Title)
	assert.Contains(t, string(kv.data[KeyConversations]), "Renamed")

	before := kv.sets
	s.SetConversationTitle("unknown", "x")
	assert.Equal(t, before, kv.sets)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("disk full")
	s := newStore(t, kv)

	id, err := s.Initialize()
	require.NoError(t, err)
	conv := s.NewConversation()
	assert.NotEqual(t, id, conv.ID)
	assert.Equal(t, conv.ID, s.ActiveConversationID())
}

// =============================================================================
// INPUT / LOADING / SUBSCRIBE TESTS
// =============================================================================

func TestInputAndLoading(t *testing.T) {
	s := newStore(t, nil)

	s.SetInput("draft")
	assert.Equal(t, "draft", s.Input())
	s.SetLoading(true)
	assert.True(t, s.Loading())
	s.SetLoading(false)
	assert.False(t, s.Loading())
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	s := newStore(t, nil)
	_, err := s.Initialize()
	require.NoError(t, err)

	var got []Change
	unsubscribe := s.Subscribe(func(c Change) {
		// Reading from a subscriber must not deadlock.
		_ = s.Messages()
		got = append(got, c)
	})

	s.SetInput("a")
	s.SetInput("a") // unchanged, no notification
	s.SetLoading(true)
	s.AddMessage(model.NewBotMessage("x"))
	s.NewConversation()

	assert.Equal(t, []Change{ChangeInput, ChangeLoading, ChangeMessages, ChangeConversations, ChangeMessages}, got)

	unsubscribe()
	s.SetLoading(false)
	assert.Len(t, got, 5)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := newStore(t, newMemKV())
	_, err := s.Initialize()
	require.NoError(t, err)
	bot := model.NewBotMessage("")
	s.AddMessage(bot)

	var mu sync.Mutex
	var seen []string
	s.Subscribe(func(c Change) {
		if c != ChangeMessages {
			return
		}
		msgs := s.Messages()
		mu.Lock()
		seen = append(seen, msgs[0].Text)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		text := ""
		for i := 0; i < 100; i++ {
			text += "x"
			v := text
			s.UpdateMessage(bot.ID, Patch{Text: &v})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.Messages()
			_ = s.Conversations()
		}
	}()
	wg.Wait()

	assert.Equal(t, strings.Repeat("x", 100), s.Messages()[0].Text)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 100)
}

func TestChange_String(t *testing.T) {
	assert.Equal(t, "messages", ChangeMessages.String())
	assert.Equal(t, "loading", ChangeLoading.String())
	assert.Equal(t, "unknown", Change(99).String())
}
