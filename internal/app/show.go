package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints the current snapshot of every tracked symbol.
func (a *App) Show(ctx context.Context, _ ShowOptions) error {
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots, err := st.AllSnapshots(ctx)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots yet; run `stockpulse refresh` first")
		return nil
	}

	symbols := make([]string, 0, len(snapshots))
	for symbol := range snapshots {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tClose\tMA20\tMA50\tMonthly\tVolatility\tDaily%\tComputed (UTC)")

	for _, symbol := range symbols {
		snap := snapshots[symbol]
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			symbol,
			snap.LatestClose.StringFixed(2),
			formatMetric(snap.MovingAvg20, 2),
			formatMetric(snap.MovingAvg50, 2),
			formatMetric(snap.MonthlyReturn, 4),
			formatMetric(snap.Volatility, 4),
			formatMetric(snap.DailyChangePct, 4),
			snap.ComputedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}

func formatMetric(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(places)
}
