package notification

import "context"

// Outcome is the result of one channel's delivery attempt.
type Outcome string

const (
	// OutcomeSent means the channel accepted the message but cannot confirm
	// delivery (email handed to the provider, push with no connected
	// session).
	OutcomeSent Outcome = "sent"
	// OutcomeDelivered means the channel confirmed delivery (push received
	// by at least one connected session).
	OutcomeDelivered Outcome = "delivered"
)

// DeliveryResult reports a successful channel attempt.
type DeliveryResult struct {
	Outcome Outcome
	// ProviderID is the provider-side message id, when the channel has one.
	ProviderID string
}

// Sender delivers a persisted notification on one channel.
// Implementations live in infra/ (Resend for email, Redis pub/sub for push).
type Sender interface {
	// Send delivers the notification to the given user.
	Send(ctx context.Context, n *Notification, user *User) (*DeliveryResult, error)

	// Channel returns which delivery channel this sender handles.
	Channel() Channel
}
