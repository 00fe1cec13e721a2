// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(&ClientConfig{
		WebhookURL: srv.URL + "/webhook/chat",
		HistoryURL: srv.URL + "/webhook/history",
		Timeout:    2 * time.Second,
	}, nil)
	return client, srv
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &ClientError{Type: ErrTypeConnection, Message: "failed to reach webhook", Cause: cause}

	assert.Equal(t, "failed to reach webhook: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTimeout(err))
	assert.Equal(t, "connection", err.Type.String())
}

func TestSentinels(t *testing.T) {
	wrapped := &ClientError{Type: ErrTypeNotConfigured, Message: ErrNotConfigured.Message}
	assert.ErrorIs(t, wrapped, ErrNotConfigured)
	assert.True(t, IsNotConfigured(ErrNotConfigured))
	assert.True(t, IsTimeout(ErrTimeout))
	assert.False(t, IsStatus(errors.New("other")))
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestFetchHistory(t *testing.T) {
	var gotSession string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/webhook/history", r.URL.Path)
		gotSession = r.URL.Query().Get("sessionId")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"messages":[
			{"id":"m1","text":"hi","sender":"user","timestamp":"2025-01-02T03:04:05.000Z"},
			{"id":"m2","text":"hello","sender":"bot","timestamp":"2025-01-02T03:04:06.000Z",
			 "chartData":{"type":"pie","labels":["a"],"datasets":[{"label":"x","data":[1]}]}}
		]}`)
	})

	msgs := client.FetchHistory(context.Background(), "session_a&b")
	assert.Equal(t, "session_a&b", gotSession, "session id must be query-escaped")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "bot", msgs[1].Sender.String())
	require.NotNil(t, msgs[1].ChartData)
}

func TestFetchHistory_SkipsBadMessages(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"messages":[{"id":"ok","text":"fine","sender":"bot","timestamp":"2025-01-02T03:04:05Z"},
			{"id":"bad","text":42,"sender":"bot"}]}`)
	})

	msgs := client.FetchHistory(context.Background(), "s")
	require.Len(t, msgs, 1)
	assert.Equal(t, "ok", msgs[0].ID)
}

func TestFetchHistory_LenientTimestamps(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"messages":[
			{"id":"rfc","text":"a","sender":"user","timestamp":"2025-01-02T03:04:05Z"},
			{"id":"sql","text":"b","sender":"bot","timestamp":"2025-01-02 03:04:05"},
			{"id":"ms","text":"c","sender":"bot","timestamp":1735787045000},
			{"id":"sec","text":"d","sender":"bot","timestamp":"1735787045"},
			{"id":"junk","text":"e","sender":"bot","timestamp":"yesterday"},
			{"id":"none","text":"f","sender":"bot"}
		]}`)
	})

	msgs := client.FetchHistory(context.Background(), "s")
	require.Len(t, msgs, 6)

	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, msg := range msgs[:4] {
		assert.True(t, want.Equal(msg.Timestamp), "%s: got %v", msg.ID, msg.Timestamp)
	}
	assert.True(t, msgs[4].Timestamp.IsZero())
	assert.True(t, msgs[5].Timestamp.IsZero())
	assert.Equal(t, "e", msgs[4].Text)
}

func TestFetchHistory_FailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "<html>")
		}},
		{"no messages key", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{}`)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, tc.handler)
			msgs := client.FetchHistory(context.Background(), "s")
			assert.NotNil(t, msgs)
			assert.Empty(t, msgs)
		})
	}
}

func TestFetchHistory_NotConfigured(t *testing.T) {
	client := NewClient(&ClientConfig{}, nil)
	assert.False(t, client.HistoryConfigured())
	assert.Empty(t, client.FetchHistory(context.Background(), "s"))
}

func TestFetchHistory_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(&ClientConfig{HistoryURL: url, Timeout: time.Second}, nil)
	assert.Empty(t, client.FetchHistory(context.Background(), "s"))
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_PostsPayload(t *testing.T) {
	var payload map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `{"output":"pong"}`)
	})

	ts := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("X", 3600))
	resp, err := client.Send(context.Background(), SendRequest{SessionID: "session_1", Message: "ping", Timestamp: ts})
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, "session_1", payload["sessionId"])
	assert.Equal(t, "ping", payload["message"])
	assert.Equal(t, "2025-03-04T04:06:07.890Z", payload["timestamp"])

	assert.True(t, resp.IsJSON())
	assert.JSONEq(t, `{"output":"pong"}`, string(resp.Body))
}

func TestSend_StreamedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		io.WriteString(w, `{"response":"Hel"}`)
		flusher.Flush()
		io.WriteString(w, "\n"+`{"response":"lo"}`)
	})

	resp, err := client.Send(context.Background(), SendRequest{SessionID: "s", Message: "m"})
	require.NoError(t, err)
	defer resp.Close()

	require.False(t, resp.IsJSON())
	body, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	assert.Equal(t, `{"response":"Hel"}`+"\n"+`{"response":"lo"}`, string(body))
}

func TestSend_JSONThatIsNotOneObjectFallsBackToStream(t *testing.T) {
	const body = `{"response":"a"}{"response":"b"}`
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	})

	resp, err := client.Send(context.Background(), SendRequest{SessionID: "s", Message: "m"})
	require.NoError(t, err)
	defer resp.Close()

	require.False(t, resp.IsJSON())
	got, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	assert.Equal(t, body, string(got), "no bytes may be lost in the fallback")
}

func TestSend_OversizedJSONStreamsWithReplay(t *testing.T) {
	body := `{"response":"` + strings.Repeat("x", 100) + `"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	client := NewClient(&ClientConfig{WebhookURL: srv.URL, MaxJSONBody: 10}, nil)
	resp, err := client.Send(context.Background(), SendRequest{SessionID: "s", Message: "m"})
	require.NoError(t, err)
	defer resp.Close()

	require.False(t, resp.IsJSON())
	got, err := io.ReadAll(resp.Stream)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestSend_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow failed", http.StatusBadGateway)
	})

	_, err := client.Send(context.Background(), SendRequest{SessionID: "s", Message: "m"})
	require.Error(t, err)
	assert.True(t, IsStatus(err))

	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, http.StatusBadGateway, clientErr.StatusCode)
}

func TestSend_NotConfigured(t *testing.T) {
	client := NewClient(nil, nil)
	assert.False(t, client.Configured())

	_, err := client.Send(context.Background(), SendRequest{Message: "m"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, IsNotConfigured(err))
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(&ClientConfig{WebhookURL: url}, nil)
	_, err := client.Send(context.Background(), SendRequest{SessionID: "s", Message: "m"})
	require.Error(t, err)

	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, ErrTypeConnection, clientErr.Type)
}

func TestSend_Canceled(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Send(ctx, SendRequest{SessionID: "s", Message: "m"})
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSend_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(&ClientConfig{WebhookURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := client.Send(context.Background(), SendRequest{SessionID: "s", Message: "m"})
	require.Error(t, err)
	assert.True(t, IsTimeout(err), err.Error())
}

func TestIsJSONContentType(t *testing.T) {
	assert.True(t, isJSON("application/json"))
	assert.True(t, isJSON("Application/JSON; charset=utf-8"))
	assert.False(t, isJSON("text/event-stream"))
	assert.False(t, isJSON(""))
}
