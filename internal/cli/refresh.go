package cli

import (
	"github.com/spf13/cobra"

	"stockpulse/internal/app"
)

var refreshSymbols []string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle immediately and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RefreshOptions{
			Symbols: refreshSymbols,
		}
		return getApp().Refresh(cmd.Context(), opts)
	},
}

func init() {
	refreshCmd.Flags().StringSliceVar(&refreshSymbols, "symbols", nil, "Symbols to refresh (defaults to the configured list)")
}
