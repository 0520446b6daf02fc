package cli

import (
	"github.com/spf13/cobra"

	"stockpulse/internal/app"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current snapshot of every tracked symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{})
	},
}
