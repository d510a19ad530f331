package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

// Watch adds or removes a currency from a chat's whale watch list.
func (a *App) Watch(chatID int64, currency string, add bool) error {
	settings, err := a.openSettings()
	if err != nil {
		return err
	}
	if err := settings.UpdateMonitored(chatID, currency, add); err != nil {
		return err
	}
	if add {
		fmt.Fprintf(os.Stdout, "now watching %s for chat %d\n", currency, chatID)
	} else {
		fmt.Fprintf(os.Stdout, "stopped watching %s for chat %d\n", currency, chatID)
	}
	return nil
}

// Subscribe opts a chat in or out of broadcast notifications.
func (a *App) Subscribe(chatID int64, on bool) error {
	settings, err := a.openSettings()
	if err != nil {
		return err
	}
	if on {
		return settings.Subscribe(chatID)
	}
	return settings.Unsubscribe(chatID)
}

// SetAutoImprovement toggles the self-healing loop.
func (a *App) SetAutoImprovement(enabled bool) error {
	settings, err := a.openSettings()
	if err != nil {
		return err
	}
	if err := settings.SetAutoImprovement(enabled); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "auto-improvement enabled: %v\n", enabled)
	return nil
}

// SetWhaleThreshold updates the USD floor for whale alerts.
func (a *App) SetWhaleThreshold(usd float64) error {
	settings, err := a.openSettings()
	if err != nil {
		return err
	}
	return settings.SetWhaleThreshold(usd)
}

// AddAlert creates or updates a price alert.
func (a *App) AddAlert(ctx context.Context, userID int64, currency, condition string, threshold float64) error {
	switch condition {
	case storage.ConditionAbove, storage.ConditionBelow, storage.ConditionChangePct:
	default:
		return fmt.Errorf("unknown condition %q (want %s, %s, or %s)",
			condition, storage.ConditionAbove, storage.ConditionBelow, storage.ConditionChangePct)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	return store.UpsertAlert(ctx, storage.Alert{
		UserID:        userID,
		Currency:      currency,
		ConditionType: condition,
		Threshold:     decimal.NewFromFloat(threshold),
		IsActive:      true,
	})
}

// RemoveAlert deactivates a price alert.
func (a *App) RemoveAlert(ctx context.Context, userID int64, currency, condition string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if err := store.DeactivateAlert(ctx, userID, currency, condition); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("no active %s alert on %s for user %d", condition, currency, userID)
		}
		return err
	}
	return nil
}
