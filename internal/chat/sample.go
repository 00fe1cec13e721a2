// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"time"

	"github.com/ssutikno/chat-node-n8n/internal/model"
)

// SampleMessages returns the demonstration conversation shown when the
// sample toggle is on.
func SampleMessages() []model.Message {
	now := time.Now()
	return []model.Message{
		{
			ID:        "sample_1",
			Sender:    model.SenderBot,
			Text:      "Hello! Here is a demonstration of what I can display.",
			Timestamp: now,
		},
		{
			ID:     "sample_2",
			Sender: model.SenderBot,
			Text: "I can render **Markdown** including lists and code:\n\n" +
				"*   Here is a list item.\n*   And another one.\n\n" +
				"And here is a code block:\n```go\nfmt.Println(\"Hello, World!\")\n```",
			Timestamp: now,
		},
		{
			ID:        "sample_3",
			Sender:    model.SenderBot,
			Text:      "I can also display complex charts, like this multi-series bar chart:",
			Timestamp: now,
			ChartData: &model.ChartData{
				Type:   model.ChartBar,
				Labels: []string{"Jan", "Feb", "Mar", "Apr", "May"},
				Datasets: []model.Dataset{
					sampleDataset("Sales", "#8884d8", 120, 198, 150, 240, 189),
					sampleDataset("Expenses", "#82ca9d", 80, 110, 100, 130, 150),
				},
			},
		},
		{
			ID:        "sample_4",
			Sender:    model.SenderBot,
			Text:      "And here is a line chart showing user engagement over time:",
			Timestamp: now,
			ChartData: &model.ChartData{
				Type:   model.ChartLine,
				Labels: []string{"Week 1", "Week 2", "Week 3", "Week 4"},
				Datasets: []model.Dataset{
					sampleDataset("Active Users", "#ffc658", 400, 430, 448, 470),
				},
			},
		},
	}
}

func sampleDataset(label, color string, data ...float64) model.Dataset {
	c, _ := json.Marshal(color)
	return model.Dataset{
		Label:      label,
		Data:       data,
		Attributes: map[string]json.RawMessage{"color": c},
	}
}
