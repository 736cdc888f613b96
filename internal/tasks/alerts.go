package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
)

// AlertEngine sweeps active price alerts against live quotes. Each
// alert fires at most once: a trigger deactivates it, writes an in-app
// notification, and optionally sends an email.
type AlertEngine struct {
	market        services.MarketService
	alerts        *repositories.AlertRepository
	notifications *repositories.NotificationRepository
	users         *repositories.UserRepository
	mailer        services.Mailer
	logger        *log.Logger
}

// NewAlertEngine creates an alert engine. The mailer may be nil, in
// which case triggers produce in-app notifications only.
func NewAlertEngine(
	market services.MarketService,
	alerts *repositories.AlertRepository,
	notifications *repositories.NotificationRepository,
	users *repositories.UserRepository,
	mailer services.Mailer,
	logger *log.Logger,
) *AlertEngine {
	return &AlertEngine{
		market:        market,
		alerts:        alerts,
		notifications: notifications,
		users:         users,
		mailer:        mailer,
		logger:        logger,
	}
}

// Sweep evaluates every active alert against one quote snapshot and
// returns the number of alerts fired.
func (e *AlertEngine) Sweep(ctx context.Context, progress chan<- ProgressUpdate) (int, error) {
	active, err := e.alerts.ListActive()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrPipelineFailed, err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	quotes, err := e.market.Quote(ctx, uniqueSymbols(active))
	if err != nil {
		return 0, fmt.Errorf("%w: quote fetch: %v", shared.ErrPipelineFailed, err)
	}

	fired := 0
	for _, alert := range active {
		if err := ctx.Err(); err != nil {
			return fired, err
		}

		price, ok := quotes[alert.Tradingsymbol]
		if !ok || !alert.ShouldTrigger(price) {
			continue
		}

		if err := e.fire(ctx, alert, price); err != nil {
			e.logger.Error("alert trigger failed", "alert", alert.ID, "symbol", alert.Tradingsymbol, "error", err)
			continue
		}

		fired++
		sendProgress(progress, alertUpdate(fired, len(active), alert.Tradingsymbol))
	}

	if fired > 0 {
		e.logger.Info("alert sweep complete", "active", len(active), "fired", fired)
	}

	return fired, nil
}

// fire settles one triggered alert. Deactivation happens first so a
// later notification failure cannot re-fire the alert on the next
// sweep.
func (e *AlertEngine) fire(ctx context.Context, alert models.PriceAlert, price float64) error {
	if err := e.alerts.MarkTriggered(alert.ID); err != nil {
		return err
	}

	title := fmt.Sprintf("%s crossed %s ₹%.2f", alert.Tradingsymbol, directionWord(alert.Condition), alert.TargetPrice)
	body := fmt.Sprintf("%s is trading at ₹%.2f, past your %s alert at ₹%.2f.",
		alert.Tradingsymbol, price, directionWord(alert.Condition), alert.TargetPrice)

	notification := &models.Notification{
		UserID: alert.UserID,
		Kind:   models.NotificationAlert,
		Title:  title,
		Body:   body,
	}
	if err := e.notifications.Create(notification); err != nil {
		return err
	}

	if e.mailer == nil {
		return nil
	}

	user, err := e.users.Get(alert.UserID)
	if err != nil {
		return err
	}
	if err := e.mailer.Send(ctx, user.Email, title, body); err != nil {
		// The in-app notification already landed; log and move on.
		e.logger.Warn("alert email failed", "alert", alert.ID, "email", user.Email, "error", err)
	}

	return nil
}

func directionWord(condition models.AlertCondition) string {
	if condition == models.ConditionBelow {
		return "below"
	}
	return "above"
}

func uniqueSymbols(alerts []models.PriceAlert) []string {
	seen := make(map[string]bool, len(alerts))
	symbols := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		if seen[alert.Tradingsymbol] {
			continue
		}
		seen[alert.Tradingsymbol] = true
		symbols = append(symbols, alert.Tradingsymbol)
	}
	return symbols
}
