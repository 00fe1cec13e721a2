// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssutikno/chat-node-n8n/internal/model"
)

// feed writes every chunk and flushes.
func feed(rec *Reconciler, chunks ...string) Update {
	for _, c := range chunks {
		rec.Write([]byte(c))
	}
	return rec.Flush()
}

func reconcileString(boundary Boundary, chunks ...string) Update {
	return feed(NewReconciler(Options{Boundary: boundary}), chunks...)
}

// =============================================================================
// RECONCILER BEHAVIOUR
// =============================================================================

func TestReconciler_SingleResponseObject(t *testing.T) {
	u := reconcileString(BoundaryStrict, `{"response":"Hi"}`)
	assert.Equal(t, "Hi", u.Text)
	assert.Nil(t, u.ChartData)
}

func TestReconciler_ChartOnly(t *testing.T) {
	u := reconcileString(BoundaryStrict,
		`{"chartData":{"type":"bar","labels":["Jan"],"datasets":[{"label":"Sales","data":[120]}]}}`)
	assert.Equal(t, "", u.Text)
	require.NotNil(t, u.ChartData)
	assert.Equal(t, model.ChartBar, u.ChartData.Type)
	assert.Equal(t, []string{"Jan"}, u.ChartData.Labels)
}

func TestReconciler_ControlObjectsBetweenText(t *testing.T) {
	u := reconcileString(BoundaryStrict, "Hello ", `{"type":"begin"}`, "world", `{"type":"end"}`)
	assert.Equal(t, "Hello world", u.Text)
}

func TestReconciler_MalformedObjectKeptLiterally(t *testing.T) {
	u := reconcileString(BoundaryStrict, "{not valid json}")
	assert.Contains(t, u.Text, "{not valid json}")
}

func TestReconciler_UnterminatedObjectAppendedAtFlush(t *testing.T) {
	rec := NewReconciler(Options{})
	mid := rec.Write([]byte(`before {"resp`))
	assert.Equal(t, "before ", mid.Text, "partial object must be held back")

	final := rec.Flush()
	assert.Equal(t, `before {"resp`, final.Text)
	assert.True(t, rec.Stats().Unterminated)
}

func TestReconciler_NewlineDelimitedObjects(t *testing.T) {
	u := reconcileString(BoundaryStrict, "{\"response\":\"Hel\"}\n{\"response\":\"lo\"}\n")
	// The newline between objects is a delimiter; the trailing one is
	// still buffered at end of stream and kept.
	assert.Equal(t, "Hello\n", u.Text)
}

func TestReconciler_FreeTextNewlinesKept(t *testing.T) {
	u := reconcileString(BoundaryStrict, "line one\n\n{\"text\":\"two\"}")
	assert.Equal(t, "line one\n\ntwo", u.Text)
}

func TestReconciler_SpaceBetweenObjectsKept(t *testing.T) {
	u := reconcileString(BoundaryStrict, `{"text":"a"} {"text":"b"}`)
	assert.Equal(t, "a b", u.Text)
}

func TestReconciler_MetadataAndUnknownObjects(t *testing.T) {
	u := reconcileString(BoundaryStrict, `{"metadata":{"node":"agent"}}{"foo":1}`)
	assert.Equal(t, `{"foo":1}`, u.Text)
}

func TestReconciler_LatestChartWins(t *testing.T) {
	u := reconcileString(BoundaryStrict,
		`{"chartData":{"type":"bar","labels":[],"datasets":[]}}`,
		`{"chartData":{"type":"pie","labels":[],"datasets":[]},"text":"pie it is"}`)
	require.NotNil(t, u.ChartData)
	assert.Equal(t, model.ChartPie, u.ChartData.Type)
	assert.Equal(t, "pie it is", u.Text)
}

func TestReconciler_PlainTextStream(t *testing.T) {
	u := reconcileString(BoundaryStrict, "Just ", "plain ", "text.")
	assert.Equal(t, "Just plain text.", u.Text)
}

func TestReconciler_WhitespaceTailWaits(t *testing.T) {
	rec := NewReconciler(Options{})
	rec.Write([]byte(`{"text":"a"}`))
	mid := rec.Write([]byte("\n"))
	assert.Equal(t, "a", mid.Text)

	rec.Write([]byte(`{"text":"b"}`))
	assert.Equal(t, "ab", rec.Flush().Text)
}

func TestReconciler_StrictIgnoresBracesInStrings(t *testing.T) {
	u := reconcileString(BoundaryStrict, `{"text":"a } b"}`)
	assert.Equal(t, "a } b", u.Text)
}

func TestReconciler_NaiveCountsBracesInStrings(t *testing.T) {
	in := `{"text":"a } b"}`
	u := reconcileString(BoundaryNaive, in)
	assert.Equal(t, in, u.Text, "naive mode cuts the object short and keeps it literally")
}

func TestReconciler_WriteAfterFlushIgnored(t *testing.T) {
	rec := NewReconciler(Options{})
	rec.Write([]byte("done"))
	rec.Flush()
	u := rec.Write([]byte(" more"))
	assert.Equal(t, "done", u.Text)
}

func TestReconciler_Stats(t *testing.T) {
	rec := NewReconciler(Options{})
	feed(rec, `{"text":"a"}{bad}`, `{"type":"end"}`)

	s := rec.Stats()
	assert.Equal(t, 2, s.Chunks)
	assert.Equal(t, 1, s.Objects[KindText])
	assert.Equal(t, 1, s.Objects[KindControl])
	assert.Equal(t, 1, s.Malformed)
	assert.False(t, s.Unterminated)
	assert.Contains(t, s.Fields(), "duration_ms")
}

// =============================================================================
// CHUNK-BOUNDARY INDEPENDENCE
// =============================================================================

var segmentationFixtures = []struct {
	name     string
	boundary Boundary
	input    string
	want     string
	chart    bool
}{
	{
		name:     "control objects",
		boundary: BoundaryStrict,
		input:    `Hello {"type":"begin"}world{"type":"end"}`,
		want:     "Hello world",
	},
	{
		name:     "ndjson with multibyte text",
		boundary: BoundaryStrict,
		input:    "{\"response\":\"Hé\"}\n{\"response\":\"llo 🎉\"}\n",
		want:     "Héllo 🎉\n",
	},
	{
		name:     "free text then chart then text",
		boundary: BoundaryStrict,
		input: "intro\n" +
			`{"chartData":{"type":"bar","labels":["a"],"datasets":[{"label":"s","data":[1],"color":"#8884d8"}]}}` +
			"\n" + `{"text":"done"}`,
		want:  "intro\ndone",
		chart: true,
	},
	{
		name:     "malformed then unterminated",
		boundary: BoundaryStrict,
		input:    `{not valid json} tail {"response":"x"`,
		want:     `{not valid json} tail {"response":"x"`,
	},
	{
		name:     "escaped quotes and braces in strings",
		boundary: BoundaryStrict,
		input:    `{"text":"say \"{hi}\"\n"}` + "\r\n" + ` {"output":"ok"}`,
		want:     "say \"{hi}\"\nok",
	},
	{
		name:     "naive mode",
		boundary: BoundaryNaive,
		input:    `{"text":"a } b"}` + "\n" + `{"text":"c"}`,
		want:     `{"text":"a } b"}` + "\n" + "c",
	},
	{
		name:     "whitespace runs around objects",
		boundary: BoundaryStrict,
		input:    "  \n{\"text\":\"a\"}  x \n\n{\"text\":\"b\"}\t\n",
		want:     "a  x \n\nb\t\n",
	},
}

func TestReconciler_SegmentationFixturesWhole(t *testing.T) {
	for _, tc := range segmentationFixtures {
		t.Run(tc.name, func(t *testing.T) {
			u := reconcileString(tc.boundary, tc.input)
			assert.Equal(t, tc.want, u.Text)
			assert.Equal(t, tc.chart, u.ChartData != nil)
		})
	}
}

func TestReconciler_EverySingleSplit(t *testing.T) {
	for _, tc := range segmentationFixtures {
		t.Run(tc.name, func(t *testing.T) {
			in := []byte(tc.input)
			for i := 0; i <= len(in); i++ {
				rec := NewReconciler(Options{Boundary: tc.boundary})
				rec.Write(in[:i])
				rec.Write(in[i:])
				u := rec.Flush()
				if u.Text != tc.want {
					t.Fatalf("split at %d: text = %q, want %q", i, u.Text, tc.want)
				}
				if (u.ChartData != nil) != tc.chart {
					t.Fatalf("split at %d: chart presence = %v", i, u.ChartData != nil)
				}
			}
		})
	}
}

func TestReconciler_EveryPairOfSplits(t *testing.T) {
	for _, tc := range segmentationFixtures {
		t.Run(tc.name, func(t *testing.T) {
			in := []byte(tc.input)
			for i := 0; i <= len(in); i++ {
				for j := i; j <= len(in); j++ {
					rec := NewReconciler(Options{Boundary: tc.boundary})
					rec.Write(in[:i])
					rec.Write(in[i:j])
					rec.Write(in[j:])
					if got := rec.Flush().Text; got != tc.want {
						t.Fatalf("splits at %d,%d: text = %q, want %q", i, j, got, tc.want)
					}
				}
			}
		})
	}
}

func TestReconciler_ByteAtATime(t *testing.T) {
	for _, tc := range segmentationFixtures {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewReconciler(Options{Boundary: tc.boundary})
			for _, b := range []byte(tc.input) {
				rec.Write([]byte{b})
			}
			assert.Equal(t, tc.want, rec.Flush().Text)
		})
	}
}

func TestReconciler_TextOnlyGrows(t *testing.T) {
	in := []byte(segmentationFixtures[2].input)
	rec := NewReconciler(Options{})
	prev := ""
	for _, b := range in {
		u := rec.Write([]byte{b})
		require.True(t, len(u.Text) >= len(prev))
		require.Equal(t, prev, u.Text[:len(prev)], "earlier text must never change")
		prev = u.Text
	}
}
