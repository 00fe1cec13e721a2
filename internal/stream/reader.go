// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
)

// Reconcile reads src to the end, feeding every chunk to the Reconciler
// and calling publish whenever the message changed. It returns the final
// state and the first read error other than io.EOF.
//
// Cancelling ctx stops the read; when src is an io.Closer it is closed so
// a blocked read returns. The final flush runs on every exit path, so text
// received before an error or cancellation is kept.
func (r *Reconciler) Reconcile(ctx context.Context, src io.Reader, publish func(Update)) (Update, error) {
	if publish == nil {
		publish = func(Update) {}
	}

	if closer, ok := src.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	var last Update
	emit := func(u Update) {
		if len(u.Text) == len(last.Text) && u.ChartData == last.ChartData {
			return
		}
		last = u
		publish(u)
	}

	buf := make([]byte, r.readSize)
	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}

		n, err := src.Read(buf)
		if n > 0 {
			emit(r.Write(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	// A read that failed because ctx closed the body reports the
	// cancellation rather than the close.
	if readErr != nil && ctx.Err() != nil {
		readErr = ctx.Err()
	}

	final := r.Flush()
	emit(final)
	return final, readErr
}
