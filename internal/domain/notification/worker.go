package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"routecast/internal/common"
)

// Worker processes delivery tasks from the queue. It loads the persisted
// notification and its recipient, attempts every requested channel
// independently, and records the aggregate outcome. One channel's failure
// never blocks another channel's attempt.
type Worker struct {
	notifications NotificationStore
	users         UserStore
	senders       map[Channel]Sender
}

// NewWorker creates a new delivery worker.
func NewWorker(notifications NotificationStore, users UserStore, senders ...Sender) *Worker {
	sm := make(map[Channel]Sender, len(senders))
	for _, s := range senders {
		sm[s.Channel()] = s
	}
	return &Worker{
		notifications: notifications,
		users:         users,
		senders:       sm,
	}
}

// ProcessTask handles one delivery task.
func (w *Worker) ProcessTask(ctx context.Context, notificationID string) error {
	start := time.Now()

	n, err := w.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("fetching notification %s: %w", notificationID, err)
	}
	if n == nil {
		slog.Error("notification not found", "notification_id", notificationID)
		return fmt.Errorf("notification not found: %s", notificationID)
	}

	user, err := w.users.GetUser(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("fetching recipient %s: %w", n.RecipientID, err)
	}
	if user == nil {
		errMsg := fmt.Sprintf("recipient not found: %s", n.RecipientID)
		_ = w.notifications.UpdateStatus(ctx, n.ID, StatusFailed, "", errMsg)
		return common.NewValidationError(errMsg)
	}

	channels := n.Channels
	if len(channels) == 0 {
		channels = DefaultChannels
	}

	var (
		delivered  bool
		sent       bool
		providerID string
		failures   []string
	)

	for _, channel := range channels {
		sender, ok := w.senders[channel]
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: no sender configured", channel))
			slog.Error("no sender for channel", "notification_id", n.ID, "channel", channel)
			continue
		}

		result, err := sender.Send(ctx, n, user)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", channel, err.Error()))
			slog.Error("channel delivery failed",
				"notification_id", n.ID,
				"channel", channel,
				"route", n.Route,
				"user_id", user.ID,
				"error", err,
			)
			continue
		}

		switch result.Outcome {
		case OutcomeDelivered:
			delivered = true
		default:
			sent = true
		}
		if result.ProviderID != "" {
			providerID = result.ProviderID
		}
	}

	status := StatusFailed
	switch {
	case delivered:
		status = StatusDelivered
	case sent:
		status = StatusSent
	}

	errMsg := strings.Join(failures, "; ")
	if err := w.notifications.UpdateStatus(ctx, n.ID, status, providerID, errMsg); err != nil {
		slog.Error("failed to record delivery outcome", "notification_id", n.ID, "status", status, "error", err)
	}

	if status == StatusFailed {
		// Every channel failed; surface an error so the queue retries the
		// whole task within its bounded retry budget.
		return common.NewProviderError("delivery", errMsg)
	}

	slog.Info("notification delivered",
		"notification_id", n.ID,
		"route", n.Route,
		"user_id", user.ID,
		"status", status,
		"failed_channels", len(failures),
		"duration", time.Since(start),
	)

	return nil
}
