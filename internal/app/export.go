package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"stockpulse/internal/market"
	"stockpulse/internal/metrics"
)

// Export renders a symbol's stored history as CSV and/or a PNG chart with
// moving-average overlays.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	maxPoints := opts.MaxPoints
	if maxPoints <= 0 {
		maxPoints = a.Config.Export.MaxDataPoints
	}

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	series, err := st.GetSeries(ctx, opts.Symbol)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no stored points to export")
		return nil
	}

	series = downsampleSeries(series, maxPoints)
	a.Logger.Info().Str("symbol", opts.Symbol).Int("points", len(series)).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, opts.Symbol, series); err != nil {
			return err
		}
	}
	return nil
}

func downsampleSeries(series market.PriceSeries, max int) market.PriceSeries {
	if max <= 0 || len(series) <= max {
		return series
	}

	result := make(market.PriceSeries, 0, max)
	step := float64(len(series)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(series) {
			idx = len(series) - 1
		}
		result = append(result, series[idx])
	}
	return result
}

func writeSeriesCSV(path string, series market.PriceSeries) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "open", "high", "low", "close", "volume"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range series {
		record := []string{
			p.Date.Format(market.DateLayout),
			p.Open.String(),
			p.High.String(),
			p.Low.String(),
			p.Close.String(),
			strconv.FormatInt(p.Volume, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSeriesPNG(path, symbol string, series market.PriceSeries) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(series))
	closes := make([]float64, len(series))
	for i, p := range series {
		x[i] = p.Date
		closes[i] = p.Close.InexactFloat64()
	}

	graph := chart.Chart{
		Title:  symbol,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Close",
				XValues: x,
				YValues: closes,
			},
		},
	}

	for _, window := range []int{metrics.ShortWindow, metrics.LongWindow} {
		if xs, ys, ok := rollingMean(x, closes, window); ok {
			graph.Series = append(graph.Series, chart.TimeSeries{
				Name:    "MA" + strconv.Itoa(window),
				XValues: xs,
				YValues: ys,
			})
		}
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// rollingMean computes the n-point trailing mean, starting at the first index
// where the window is complete.
func rollingMean(x []time.Time, values []float64, n int) ([]time.Time, []float64, bool) {
	if len(values) < n {
		return nil, nil, false
	}

	xs := make([]time.Time, 0, len(values)-n+1)
	ys := make([]float64, 0, len(values)-n+1)

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			xs = append(xs, x[i])
			ys = append(ys, sum/float64(n))
		}
	}
	return xs, ys, true
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
