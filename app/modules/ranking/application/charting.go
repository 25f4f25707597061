package rankingservice

import (
	"bytes"
	"context"
	"fmt"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartPalette holds the colours of a history chart.
type ChartPalette struct {
	Background  drawing.Color
	PrimaryLine drawing.Color
	AccentLine  drawing.Color
	TextColor   drawing.Color
}

// DefaultChartPalette is a light theme.
var DefaultChartPalette = ChartPalette{
	Background:  drawing.ColorWhite,
	PrimaryLine: drawing.ColorFromHex("1f6f5c"),
	AccentLine:  drawing.ColorFromHex("d4a017"),
	TextColor:   drawing.ColorFromHex("333333"),
}

// HistoryChart renders the resulting totals of q as a PNG line chart.
func (s *RankingService) HistoryChart(ctx context.Context, q rankingaggregator.HistoryQuery) ([]byte, error) {
	history, err := s.GetHistory(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	png, err := GenerateHistoryChart(history, DefaultChartPalette)
	if err != nil {
		return nil, fmt.Errorf("HistoryChart: %w", err)
	}
	return png, nil
}

// GenerateHistoryChart plots ResultingTotal against PlayedAt.
func GenerateHistoryChart(history []rankingaggregator.HistoryEntry, palette ChartPalette) ([]byte, error) {
	if len(history) == 0 {
		return renderNoDataPlaceholder(palette)
	}

	xValues := make([]time.Time, 0, len(history)+1)
	yValues := make([]float64, 0, len(history)+1)

	// A lone entry is drawn from the total it started at.
	if len(history) == 1 {
		first := history[0]
		xValues = append(xValues, first.PlayedAt.Add(-24*time.Hour))
		yValues = append(yValues, float64(first.ResultingTotal-first.Delta))
	}
	for _, entry := range history {
		xValues = append(xValues, entry.PlayedAt)
		yValues = append(yValues, float64(entry.ResultingTotal))
	}

	mainSeries := chart.TimeSeries{
		Name:    "Ranking Points",
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: palette.PrimaryLine,
			StrokeWidth: 2,
			DotWidth:    4,
			DotColor:    palette.AccentLine,
		},
	}

	graph := chart.Chart{
		Width:  800,
		Height: 400,
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Style: chart.Style{
				FontColor: palette.TextColor,
			},
			Range: paddedTimeRange(xValues),
		},
		YAxis: chart.YAxis{
			Name: "Points",
			Style: chart.Style{
				FontColor: palette.TextColor,
			},
			Range: paddedValueRange(yValues),
		},
		Series: []chart.Series{mainSeries},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// paddedTimeRange widens a zero-width time axis by a day each side. It
// returns nil when the values already span a range.
func paddedTimeRange(xs []time.Time) chart.Range {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x.Before(lo) {
			lo = x
		}
		if x.After(hi) {
			hi = x
		}
	}
	if !lo.Equal(hi) {
		return nil
	}
	return &chart.ContinuousRange{
		Min: chart.TimeToFloat64(lo.Add(-24 * time.Hour)),
		Max: chart.TimeToFloat64(hi.Add(24 * time.Hour)),
	}
}

// paddedValueRange widens a flat series by one point each side.
func paddedValueRange(ys []float64) chart.Range {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	if lo != hi {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

func renderNoDataPlaceholder(palette ChartPalette) ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "No ranking history found"
	)

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.XAxis{Style: chart.Style{Hidden: true}},
		YAxis: chart.YAxis{Style: chart.Style{Hidden: true}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style:   chart.Style{Hidden: true},
				XValues: []float64{0, 1},
				YValues: []float64{0, 1},
			},
		},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, chartDefaults chart.Style) {
				r.SetFontColor(palette.TextColor)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
