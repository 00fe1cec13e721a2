// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/ssutikno/chat-node-n8n/internal/model"
)

// TextFields are the object keys that may carry message text, in priority
// order. The first one holding a non-empty string wins.
var TextFields = []string{
	"response",
	"text",
	"output",
	"message",
	"content",
	"answer",
	"result",
	"data",
	"completion",
}

// Kind classifies how an embedded object was interpreted.
type Kind int

const (
	// KindText: the object carried message text (and maybe a chart).
	KindText Kind = iota
	// KindChart: the object carried only a chart.
	KindChart
	// KindControl: a begin/end marker, ignored.
	KindControl
	// KindMetadata: a metadata-only object, ignored.
	KindMetadata
	// KindLiteral: not a recognised object; its raw text is kept.
	KindLiteral
	// KindMalformed: not valid JSON; its raw text is kept.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindChart:
		return "chart"
	case KindControl:
		return "control"
	case KindMetadata:
		return "metadata"
	case KindLiteral:
		return "literal"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// Interpretation is what one embedded object contributes to a message.
type Interpretation struct {
	Kind Kind
	// Text is appended to the message text.
	Text string
	// ChartData, when set, replaces the message chart.
	ChartData *model.ChartData
}

// Interpret decides what the candidate object raw contributes.
func Interpret(raw string) Interpretation {
	if !gjson.Valid(raw) {
		return Interpretation{Kind: KindMalformed, Text: raw}
	}
	obj := gjson.Parse(raw)
	if !obj.IsObject() {
		return Interpretation{Kind: KindLiteral, Text: raw}
	}
	return interpretObject(obj, raw)
}

// InterpretBytes is Interpret for a whole response body. A body with no
// text field and no usable chart contributes no text, so the envelope is
// never shown as its raw source.
func InterpretBytes(body []byte) (Interpretation, bool) {
	if !gjson.ValidBytes(body) {
		return Interpretation{}, false
	}
	obj := gjson.ParseBytes(body)
	if !obj.IsObject() {
		return Interpretation{}, false
	}
	out := interpretObject(obj, string(body))
	if out.Kind == KindLiteral {
		out.Text = ""
	}
	return out, true
}

func interpretObject(obj gjson.Result, raw string) Interpretation {
	var out Interpretation

	chartField := obj.Get("chartData")
	hasChart := truthy(chartField)
	if hasChart {
		out.ChartData = decodeChart(chartField)
	}

	if text, ok := firstText(obj); ok {
		out.Kind = KindText
		out.Text = text
		return out
	}

	switch {
	case hasChart && out.ChartData != nil:
		out.Kind = KindChart
	case hasChart:
		// chartData present but unusable, and nothing else to show.
		out.Kind = KindLiteral
		out.Text = raw
	case isControl(obj.Get("type")):
		out.Kind = KindControl
	case truthy(obj.Get("metadata")):
		out.Kind = KindMetadata
	default:
		out.Kind = KindLiteral
		out.Text = raw
	}
	return out
}

func firstText(obj gjson.Result) (string, bool) {
	for _, field := range TextFields {
		v := obj.Get(field)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str, true
		}
	}
	return "", false
}

func decodeChart(v gjson.Result) *model.ChartData {
	if !v.IsObject() {
		return nil
	}
	var chart model.ChartData
	if err := json.Unmarshal([]byte(v.Raw), &chart); err != nil {
		return nil
	}
	return &chart
}

func isControl(v gjson.Result) bool {
	return v.Type == gjson.String && (v.Str == "begin" || v.Str == "end")
}

// truthy follows JavaScript truthiness: null, false, 0, "" and missing are
// falsy, everything else (including {} and []) is truthy.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.True, gjson.JSON:
		return true
	}
	return false
}
