// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CHART TYPE
// =============================================================================

// ChartType is the kind of chart a bot message asks to be drawn.
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
	ChartPie  ChartType = "pie"
)

// Valid reports whether t is a supported chart type.
func (t ChartType) Valid() bool {
	switch t {
	case ChartBar, ChartLine, ChartPie:
		return true
	}
	return false
}

// =============================================================================
// CHART DATA
// =============================================================================

// ChartData is the chart payload attached to a bot message.
type ChartData struct {
	Type     ChartType `json:"type"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of a chart. Keys other than label and data are
// display attributes (color, borderWidth, ...) and are kept verbatim.
type Dataset struct {
	Label      string
	Data       []float64
	Attributes map[string]json.RawMessage
}

// Color returns the dataset's color attribute, or "" when unset.
func (d Dataset) Color() string {
	raw, ok := d.Attributes["color"]
	if !ok {
		return ""
	}
	var color string
	if err := json.Unmarshal(raw, &color); err != nil {
		return ""
	}
	return color
}

// UnmarshalJSON splits the known keys from the display attributes.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	*d = Dataset{}
	if raw, ok := fields["label"]; ok {
		if err := json.Unmarshal(raw, &d.Label); err != nil {
			return fmt.Errorf("dataset label: %w", err)
		}
		delete(fields, "label")
	}
	if raw, ok := fields["data"]; ok {
		if err := json.Unmarshal(raw, &d.Data); err != nil {
			return fmt.Errorf("dataset data: %w", err)
		}
		delete(fields, "data")
	}
	if len(fields) > 0 {
		d.Attributes = fields
	}
	return nil
}

// MarshalJSON writes the display attributes back alongside label and data.
func (d Dataset) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Attributes)+2)
	for k, v := range d.Attributes {
		out[k] = v
	}

	label, err := json.Marshal(d.Label)
	if err != nil {
		return nil, err
	}
	data := d.Data
	if data == nil {
		data = []float64{}
	}
	values, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out["label"] = label
	out["data"] = values
	return json.Marshal(out)
}

// Clone returns a deep copy of the chart.
func (c *ChartData) Clone() *ChartData {
	if c == nil {
		return nil
	}
	out := &ChartData{
		Type:   c.Type,
		Labels: append([]string(nil), c.Labels...),
	}
	if c.Datasets != nil {
		out.Datasets = make([]Dataset, len(c.Datasets))
		for i, ds := range c.Datasets {
			cp := Dataset{
				Label: ds.Label,
				Data:  append([]float64(nil), ds.Data...),
			}
			if ds.Attributes != nil {
				cp.Attributes = make(map[string]json.RawMessage, len(ds.Attributes))
				for k, v := range ds.Attributes {
					cp.Attributes[k] = append(json.RawMessage(nil), v...)
				}
			}
			out.Datasets[i] = cp
		}
	}
	return out
}

// Validate checks the chart type and that every dataset has exactly one
// value per label.
func (c *ChartData) Validate() error {
	if c == nil {
		return nil
	}
	var problems []string
	if !c.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unsupported chart type %q", c.Type))
	}
	for i, ds := range c.Datasets {
		if len(ds.Data) != len(c.Labels) {
			problems = append(problems, fmt.Sprintf("dataset %d (%q) has %d values for %d labels",
				i, ds.Label, len(ds.Data), len(c.Labels)))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &ChartError{Problems: problems}
}

// ChartError describes why a chart payload is not drawable.
type ChartError struct {
	Problems []string
}

func (e *ChartError) Error() string {
	return "invalid chart: " + strings.Join(e.Problems, "; ")
}
