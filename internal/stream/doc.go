// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream reconstructs a bot message from a streamed webhook
// response.
//
// Workflow backends do not agree on a framing. A response body may be
// plain text, concatenated JSON objects, newline-delimited JSON, or any mix
// of the three, and chunks can split objects and multi-byte characters at
// arbitrary points. The Reconciler accepts the raw chunks and maintains the
// message text and chart payload they describe so far.
//
// # Rules
//
//   - Free text between objects is appended as-is. Whitespace containing a
//     newline that sits directly between two objects is a delimiter and is
//     dropped.
//   - An object carrying a non-empty string in one of the text fields
//     (response, text, output, message, content, answer, result, data,
//     completion) contributes that string.
//   - chartData replaces the message chart.
//   - Control objects ({"type":"begin"}, {"type":"end"}) and metadata-only
//     objects contribute nothing.
//   - Anything else, including malformed JSON, is kept as literal text.
//   - An unterminated object is held back until more bytes arrive or the
//     stream ends, when it is appended verbatim.
//
// The final text and chart do not depend on how the bytes were chunked.
//
// # Usage
//
//	rec := stream.NewReconciler(stream.Options{Boundary: stream.BoundaryStrict})
//	final, err := rec.Reconcile(ctx, resp.Body, func(u stream.Update) {
//	    store.UpdateMessage(botID, session.Patch{Text: &u.Text, ChartData: u.ChartData})
//	})
package stream
