// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ssutikno/chat-node-n8n/internal/model"
	"github.com/ssutikno/chat-node-n8n/internal/ui/styles"
	"github.com/ssutikno/chat-node-n8n/internal/util"
)

const (
	maxChartLabelWidth = 16
	minChartBarWidth   = 8
	barRune            = "█"
	lineRune           = "─"
	lineMarker         = "●"
)

// RenderChart draws chart in at most width columns.
func RenderChart(theme *styles.Theme, chart *model.ChartData, width int) string {
	if chart == nil {
		return ""
	}
	if err := chart.Validate(); err != nil {
		return theme.Muted.Render("[chart unavailable: " + err.Error() + "]")
	}
	if len(chart.Labels) == 0 || len(chart.Datasets) == 0 {
		return theme.Muted.Render("[empty " + string(chart.Type) + " chart]")
	}

	labelWidth := 0
	for _, l := range chart.Labels {
		labelWidth = max(labelWidth, util.StringWidth(l))
	}
	labelWidth = min(labelWidth, maxChartLabelWidth)

	if chart.Type == model.ChartPie {
		return renderPie(theme, chart, width, labelWidth)
	}
	return renderSeries(theme, chart, width, labelWidth)
}

// renderSeries draws one block of horizontal bars per dataset, all on the
// same scale.
func renderSeries(theme *styles.Theme, chart *model.ChartData, width, labelWidth int) string {
	peak := 0.0
	valueWidth := 0
	for _, ds := range chart.Datasets {
		for _, v := range ds.Data {
			peak = math.Max(peak, v)
			valueWidth = max(valueWidth, len(formatValue(v)))
		}
	}
	barWidth := max(width-labelWidth-valueWidth-4, minChartBarWidth)

	var b strings.Builder
	for i, ds := range chart.Datasets {
		color := styles.SeriesColor(ds.Color(), i)
		series := lipgloss.NewStyle().Foreground(color)
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(series.Render(barRune+" ") + theme.ChartTitle.Render(seriesName(ds, i)))
		b.WriteString("\n")

		for j, label := range chart.Labels {
			v := ds.Data[j]
			n := scale(v, peak, barWidth)

			var bar string
			if chart.Type == model.ChartLine {
				bar = strings.Repeat(lineRune, n) + lineMarker
			} else {
				bar = strings.Repeat(barRune, n)
			}
			b.WriteString(theme.ChartLabel.Render(fitLabel(label, labelWidth)))
			b.WriteString(" │ ")
			b.WriteString(series.Render(bar))
			b.WriteString(" ")
			b.WriteString(theme.ChartValue.Render(formatValue(v)))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderPie draws each label's share of the first dataset.
func renderPie(theme *styles.Theme, chart *model.ChartData, width, labelWidth int) string {
	ds := chart.Datasets[0]
	total := 0.0
	for _, v := range ds.Data {
		if v > 0 {
			total += v
		}
	}
	barWidth := max(width-labelWidth-12, minChartBarWidth)

	var b strings.Builder
	b.WriteString(theme.ChartTitle.Render(seriesName(ds, 0)))
	for j, label := range chart.Labels {
		share := 0.0
		if total > 0 && ds.Data[j] > 0 {
			share = ds.Data[j] / total
		}
		slice := lipgloss.NewStyle().Foreground(styles.SeriesColor("", j))
		b.WriteString("\n")
		b.WriteString(theme.ChartLabel.Render(fitLabel(label, labelWidth)))
		b.WriteString(" │ ")
		b.WriteString(slice.Render(strings.Repeat(barRune, int(math.Round(share*float64(barWidth))))))
		b.WriteString(" ")
		b.WriteString(theme.ChartValue.Render(fmt.Sprintf("%.1f%%", share*100)))
	}
	return b.String()
}

func seriesName(ds model.Dataset, i int) string {
	if ds.Label != "" {
		return ds.Label
	}
	return "Series " + strconv.Itoa(i+1)
}

// scale maps v onto [0, width]. Non-positive values get no bar.
func scale(v, peak float64, width int) int {
	if peak <= 0 || v <= 0 {
		return 0
	}
	return int(math.Round(v / peak * float64(width)))
}

func fitLabel(label string, width int) string {
	return util.PadWidth(util.TruncateWidth(label, width), width)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
