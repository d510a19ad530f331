package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nik1855/CryptoMasterPro/internal/market"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

// latchKey identifies one alert for fire-once tracking.
type latchKey struct {
	userID    int64
	currency  string
	condition string
}

// checkAlerts evaluates every active alert against live prices. An alert
// notifies once when its condition first becomes true and re-arms only after
// the condition has been observed false again.
func (s *Service) checkAlerts(ctx context.Context) error {
	if s.deps.Alerts == nil {
		return nil
	}

	alerts, err := s.deps.Alerts.ListActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	prices := make(map[string]market.PriceData)
	var failures []error

	for _, alert := range alerts {
		price, ok := prices[alert.Currency]
		if !ok {
			price, err = s.deps.Prices.FetchPrice(ctx, alert.Currency)
			if err != nil {
				// A transient price outage should not back the whole loop off;
				// the alert is simply re-evaluated next tick.
				s.logger.Debug().Err(err).Str("currency", alert.Currency).Msg("price unavailable, skipping alert")
				continue
			}
			prices[alert.Currency] = price
		}

		key := latchKey{userID: alert.UserID, currency: alert.Currency, condition: alert.ConditionType}
		triggered := conditionMet(alert, price)
		if !triggered {
			delete(s.latched, key)
			continue
		}
		if s.latched[key] {
			continue
		}
		s.latched[key] = true

		if err := s.deps.Notifier.SendMessage(ctx, alert.UserID, alertMessage(alert, price)); err != nil {
			// Re-arm so an undelivered alert is retried next tick.
			delete(s.latched, key)
			failures = append(failures, fmt.Errorf("notify user %d: %w", alert.UserID, err))
		}
	}

	return errors.Join(failures...)
}

func conditionMet(alert storage.Alert, price market.PriceData) bool {
	switch alert.ConditionType {
	case storage.ConditionAbove:
		return price.Price.GreaterThanOrEqual(alert.Threshold)
	case storage.ConditionBelow:
		return price.Price.LessThanOrEqual(alert.Threshold)
	case storage.ConditionChangePct:
		return price.ChangePct.Abs().GreaterThanOrEqual(alert.Threshold)
	default:
		return false
	}
}

func alertMessage(alert storage.Alert, price market.PriceData) string {
	switch alert.ConditionType {
	case storage.ConditionAbove:
		return fmt.Sprintf("🔔 *Price Alert*\n\n%s is above %s\nCurrent price: %s",
			alert.Currency, alert.Threshold.String(), price.Price.String())
	case storage.ConditionBelow:
		return fmt.Sprintf("🔔 *Price Alert*\n\n%s is below %s\nCurrent price: %s",
			alert.Currency, alert.Threshold.String(), price.Price.String())
	default:
		return fmt.Sprintf("🔔 *Price Alert*\n\n%s moved %s%% in 24h (threshold %s%%)\nCurrent price: %s",
			alert.Currency, price.ChangePct.StringFixed(2), alert.Threshold.String(), price.Price.String())
	}
}
