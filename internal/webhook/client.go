// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ssutikno/chat-node-n8n/internal/logging"
	"github.com/ssutikno/chat-node-n8n/internal/model"
)

const logModule = "webhook"

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the webhook client.
type ClientConfig struct {
	// WebhookURL receives POSTed messages. Empty means not configured.
	WebhookURL string

	// HistoryURL serves GET ?sessionId=<id>. Empty disables history.
	HistoryURL string

	// Timeout bounds history requests and the wait for response headers
	// on sends (default: 30s). Response bodies are never cut off.
	Timeout time.Duration

	// MaxJSONBody is how much of an application/json body is buffered
	// before it is treated as a stream instead (default: 8 MiB).
	MaxJSONBody int64

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:     30 * time.Second,
		MaxJSONBody: 8 << 20,
		UserAgent:   "chatn8n",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat webhook and the history endpoint.
//
// The Client is safe for concurrent use.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	logger       logging.Logger
}

// NewClient creates a client. A nil config means DefaultConfig; a nil
// logger discards diagnostics.
func NewClient(config *ClientConfig, logger logging.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.Timeout < 0 {
		config.Timeout = 0
	}
	if config.MaxJSONBody <= 0 {
		config.MaxJSONBody = defaults.MaxJSONBody
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if logger == nil {
		logger = logging.Nop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.Timeout

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		// No overall timeout: a streamed answer may take as long as the
		// workflow needs. Cancellation goes through the context.
		streamClient: &http.Client{Transport: transport},
		logger:       logger,
	}
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool {
	return c.config.WebhookURL != ""
}

// HistoryConfigured reports whether a history URL is set.
func (c *Client) HistoryConfigured() bool {
	return c.config.HistoryURL != ""
}

// =============================================================================
// HISTORY
// =============================================================================

type historyResponse struct {
	Messages []json.RawMessage `json:"messages"`
}

// FetchHistory returns the stored messages of a conversation. Every
// failure (no URL, unreachable, non-2xx, undecodable body) yields an empty
// slice; the cause is logged. Individual messages that do not decode are
// skipped.
func (c *Client) FetchHistory(ctx context.Context, sessionID string) []model.Message {
	empty := []model.Message{}
	if !c.HistoryConfigured() {
		return empty
	}

	details := map[string]interface{}{"session_id": sessionID}
	fail := func(msg string, err error) []model.Message {
		if err != nil {
			details["error"] = err.Error()
		}
		c.logger.Warn(logModule, msg, details)
		return empty
	}

	u, err := url.Parse(c.config.HistoryURL)
	if err != nil {
		return fail("invalid history URL", err)
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fail("failed to create history request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail("history request failed", classify(ctx, err))
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail("history request rejected", statusError("fetch history", resp.StatusCode, resp.Status))
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fail("failed to decode history", err)
	}

	messages := make([]model.Message, 0, len(body.Messages))
	for i, raw := range body.Messages {
		msg, err := decodeHistoryMessage(raw)
		if err != nil {
			c.logger.Warn(logModule, "skipping undecodable history message", map[string]interface{}{
				"session_id": sessionID,
				"index":      i,
				"error":      err.Error(),
			})
			continue
		}
		messages = append(messages, msg)
	}

	c.logger.Debug(logModule, "history loaded", map[string]interface{}{
		"session_id": sessionID,
		"messages":   len(messages),
	})
	return messages
}

// decodeHistoryMessage decodes one stored message. Timestamps the backend
// writes in another format than RFC 3339 become the zero time.
func decodeHistoryMessage(raw json.RawMessage) (model.Message, error) {
	var wire struct {
		model.Message
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.Message{}, err
	}
	msg := wire.Message
	msg.Timestamp = parseTimestamp(gjson.ParseBytes(wire.Timestamp))
	return msg, nil
}

// historyLayouts are the string timestamp formats accepted from history.
var historyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// epochSecondsLimit separates epoch seconds from epoch milliseconds.
const epochSecondsLimit = 1e11

func parseTimestamp(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return epochTime(v.Num)
	case gjson.String:
		for _, layout := range historyLayouts {
			if t, err := time.Parse(layout, v.Str); err == nil {
				return t
			}
		}
		if n := gjson.Parse(v.Str); n.Type == gjson.Number {
			return epochTime(n.Num)
		}
	}
	return time.Time{}
}

func epochTime(n float64) time.Time {
	if n > -epochSecondsLimit && n < epochSecondsLimit {
		return time.UnixMilli(int64(n * 1000)).UTC()
	}
	return time.UnixMilli(int64(n)).UTC()
}

// =============================================================================
// SEND
// =============================================================================

// SendRequest is one user message posted to the webhook.
type SendRequest struct {
	SessionID string
	Message   string
	Timestamp time.Time
}

// timestampLayout is RFC 3339 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON writes the wire form {sessionId, message, timestamp}.
func (r SendRequest) MarshalJSON() ([]byte, error) {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return json.Marshal(struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{
		SessionID: r.SessionID,
		Message:   r.Message,
		Timestamp: ts.UTC().Format(timestampLayout),
	})
}

// Response is the answer to a Send. Exactly one of Body and Stream is set.
type Response struct {
	StatusCode  int
	ContentType string

	// Body is a complete JSON object, set when the backend declared JSON
	// and the body parsed as one object.
	Body []byte

	// Stream is the open response body otherwise. The caller must close it.
	Stream io.ReadCloser
}

// IsJSON reports whether the response is a complete JSON object.
func (r *Response) IsJSON() bool {
	return r.Stream == nil
}

// Close releases the response stream, if any.
func (r *Response) Close() error {
	if r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// Send posts a message. It returns ErrNotConfigured when no webhook URL is
// set and a *ClientError for transport failures and non-2xx answers.
//
// A body declared as application/json is read whole and returned in
// Response.Body when it is one JSON object. Otherwise, including JSON that
// fails to parse, the body is returned as Response.Stream with any bytes
// already read replayed first.
func (c *Client) Send(ctx context.Context, in SendRequest) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		return nil, statusError("send message", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	out := &Response{StatusCode: resp.StatusCode, ContentType: contentType}

	if !isJSON(contentType) {
		out.Stream = resp.Body
		return out, nil
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxJSONBody+1))
	if err != nil {
		resp.Body.Close()
		return nil, classify(ctx, err)
	}

	if int64(len(head)) > c.config.MaxJSONBody {
		c.logger.Debug(logModule, "JSON body too large to buffer, streaming", map[string]interface{}{
			"limit": c.config.MaxJSONBody,
		})
		out.Stream = replay(head, resp.Body)
		return out, nil
	}
	resp.Body.Close()

	if gjson.ValidBytes(head) && gjson.ParseBytes(head).IsObject() {
		out.Body = head
		return out, nil
	}

	c.logger.Debug(logModule, "JSON body is not one object, streaming", map[string]interface{}{
		"bytes": len(head),
	})
	out.Stream = io.NopCloser(bytes.NewReader(head))
	return out, nil
}

// isJSON reports whether a Content-Type header declares JSON. Variants
// such as application/json; charset=utf-8 count.
func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// replayReader re-reads bytes already consumed before the rest of body.
type replayReader struct {
	io.Reader
	body io.Closer
}

func (r *replayReader) Close() error {
	return r.body.Close()
}

func replay(head []byte, body io.ReadCloser) io.ReadCloser {
	return &replayReader{
		Reader: io.MultiReader(bytes.NewReader(head), body),
		body:   body,
	}
}

// drainAndClose lets the connection be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}
