// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReconcile_ReadsToEOF(t *testing.T) {
	src := iotest.OneByteReader(strings.NewReader(`Hello {"type":"begin"}world{"type":"end"}`))
	rec := NewReconciler(Options{})

	var updates []Update
	final, err := rec.Reconcile(context.Background(), src, func(u Update) {
		updates = append(updates, u)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello world", final.Text)
	require.NotEmpty(t, updates)
	assert.Equal(t, "Hello world", updates[len(updates)-1].Text)
	for i := 1; i < len(updates); i++ {
		assert.NotEqual(t, updates[i-1].Text, updates[i].Text, "unchanged states are not republished")
	}
}

func TestReconcile_SmallReadSize(t *testing.T) {
	rec := NewReconciler(Options{ReadSize: 3})
	final, err := rec.Reconcile(context.Background(),
		strings.NewReader("{\"response\":\"Hé\"}\n{\"response\":\"llo\"}"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Héllo", final.Text)
	assert.Greater(t, rec.Stats().Chunks, 5)
}

func TestReconcile_ReadErrorKeepsPartialText(t *testing.T) {
	boom := errors.New("connection reset")
	src := io.MultiReader(strings.NewReader(`{"text":"partial"} {"text":"cut`), iotest.ErrReader(boom))

	final, err := NewReconciler(Options{}).Reconcile(context.Background(), src, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, `partial {"text":"cut`, final.Text)
}

func TestReconcile_CancelClosesSource(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published := make(chan Update, 16)
	type result struct {
		final Update
		err   error
	}
	done := make(chan result, 1)

	go func() {
		final, err := NewReconciler(Options{}).Reconcile(ctx, pr, func(u Update) {
			published <- u
		})
		done <- result{final, err}
	}()

	_, err := pw.Write([]byte(`{"response":"partial"}`))
	require.NoError(t, err)

	select {
	case u := <-published:
		assert.Equal(t, "partial", u.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}

	cancel()

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, context.Canceled)
		assert.Equal(t, "partial", res.final.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("Reconcile did not return after cancel")
	}
}

func TestReconcile_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := NewReconciler(Options{}).Reconcile(ctx, strings.NewReader("never read"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "", final.Text)
}
