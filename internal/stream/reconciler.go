// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"

	"github.com/ssutikno/chat-node-n8n/internal/model"
)

// DefaultReadSize is the chunk size used by Reconcile when none is set.
const DefaultReadSize = 4096

// =============================================================================
// UPDATE
// =============================================================================

// Update is the state of the in-flight message after a chunk: the full
// accumulated text and the latest chart, if any.
type Update struct {
	Text      string
	ChartData *model.ChartData
}

// =============================================================================
// RECONCILER
// =============================================================================

// Options configures a Reconciler.
type Options struct {
	Boundary Boundary
	// ReadSize is the chunk size Reconcile reads with.
	ReadSize int
}

// Reconciler accumulates one bot message from response chunks. It is not
// safe for concurrent use; one goroutine drives it per response.
type Reconciler struct {
	boundary Boundary
	readSize int
	decoder  *textDecoder

	// buffer holds decoded text not yet consumed: a whitespace-only tail
	// or an object still waiting for its closing brace.
	buffer string
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	text  strings.Builder
	chart *model.ChartData

	// gapHasText is set once free text has been appended since the last
	// consumed object; a newline run after it is content, not a delimiter.
	gapHasText bool
	flushed    bool

	stats Stats
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts Options) *Reconciler {
	if opts.Boundary == "" {
		opts.Boundary = BoundaryStrict
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}
	return &Reconciler{
		boundary: opts.Boundary,
		readSize: opts.ReadSize,
		decoder:  newTextDecoder(),
	}
}

// Write consumes one chunk and returns the message state after it.
// Writing after Flush is a no-op.
func (r *Reconciler) Write(chunk []byte) Update {
	if r.flushed {
		return r.Snapshot()
	}
	r.stats.recordChunk(len(chunk))
	r.buffer += r.decoder.decode(chunk, false)
	r.process()
	return r.Snapshot()
}

// Flush ends the stream: pending bytes are decoded, remaining objects are
// consumed, and whatever is still buffered is appended verbatim.
func (r *Reconciler) Flush() Update {
	if r.flushed {
		return r.Snapshot()
	}
	r.flushed = true
	r.buffer += r.decoder.decode(nil, true)
	r.process()
	if r.buffer != "" {
		r.stats.Unterminated = strings.Contains(r.buffer, "{")
		r.text.WriteString(r.buffer)
		r.buffer = ""
	}
	r.stats.finish()
	return r.Snapshot()
}

// Snapshot returns the current message state.
func (r *Reconciler) Snapshot() Update {
	return Update{Text: r.text.String(), ChartData: r.chart}
}

// Stats returns counters for the stream so far.
func (r *Reconciler) Stats() Stats {
	return r.stats
}

// process consumes as much of the buffer as can be decided now.
func (r *Reconciler) process() {
	for {
		open := strings.IndexByte(r.buffer, '{')
		if open < 0 {
			// Whitespace-only tails wait: they may turn out to be a
			// delimiter once the next object arrives.
			if strings.TrimSpace(r.buffer) != "" {
				r.appendFree(r.buffer)
				r.buffer = ""
			}
			return
		}

		if open > 0 {
			preceding := r.buffer[:open]
			if r.gapHasText || !isDelimiter(preceding) {
				r.appendFree(preceding)
			}
			r.buffer = r.buffer[open:]
		}

		end := r.boundary.matchObject(r.buffer)
		if end < 0 {
			return
		}

		candidate := r.buffer[:end+1]
		r.buffer = r.buffer[end+1:]
		r.consume(candidate)
	}
}

func (r *Reconciler) consume(candidate string) {
	in := Interpret(candidate)
	r.stats.recordObject(in.Kind)
	r.text.WriteString(in.Text)
	if in.ChartData != nil {
		r.chart = in.ChartData
	}
	r.gapHasText = false
}

func (r *Reconciler) appendFree(s string) {
	r.text.WriteString(s)
	r.gapHasText = true
}

// isDelimiter reports whether s is whitespace containing a line break.
func isDelimiter(s string) bool {
	return strings.TrimSpace(s) == "" && strings.ContainsAny(s, "\r\n")
}
