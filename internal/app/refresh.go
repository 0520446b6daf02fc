package app

import (
	"context"
	"errors"
	"time"
)

// Refresh runs a single refresh cycle immediately and exits. Used for manual
// catch-up and for cron-style deployments that bring their own timer.
func (a *App) Refresh(ctx context.Context, opts RefreshOptions) error {
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(nil, a.newSource(), st, opts.Symbols)

	result := svc.RefreshCycle(ctx, time.Now().UTC())
	a.Logger.Info().
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Msg("manual refresh finished")

	if result.Updated == 0 && result.Failed > 0 {
		return errors.New("refresh updated no symbols; see log for per-symbol errors")
	}
	return nil
}
