package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"routecast/internal/domain/notification"
)

var _ notification.Sender = (*ResendSender)(nil)

// ResendSender delivers the email channel using the Resend API. A successful
// send is only OutcomeSent; the delivery webhook upgrades the status once
// the provider confirms it.
type ResendSender struct {
	apiKey      string
	fromAddress string
	fromName    string
	httpClient  *http.Client
}

// NewResendSender creates a new Resend email sender.
func NewResendSender(apiKey, fromAddress, fromName string) *ResendSender {
	return &ResendSender{
		apiKey:      apiKey,
		fromAddress: fromAddress,
		fromName:    fromName,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the email channel identifier.
func (s *ResendSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

// Send delivers the notification email and returns the provider message id.
func (s *ResendSender) Send(ctx context.Context, n *notification.Notification, user *notification.User) (*notification.DeliveryResult, error) {
	if user.Email == "" {
		return nil, fmt.Errorf("recipient %s has no email address", user.ID)
	}

	from := s.fromAddress
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}

	html := n.EmailHTML
	if html == "" {
		html = "<p>" + n.Message + "</p>"
	}

	payload := map[string]any{
		"from":    from,
		"to":      []string{user.Email},
		"subject": n.Title,
		"html":    html,
	}

	// Include plain-text version if available
	if n.EmailText != "" {
		payload["text"] = n.EmailText
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message    string `json:"message"`
			StatusCode int    `json:"statusCode"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = fmt.Sprintf("resend API error: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("resend: %s", msg)
	}

	var successResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return nil, fmt.Errorf("parsing resend response: %w", err)
	}

	return &notification.DeliveryResult{
		Outcome:    notification.OutcomeSent,
		ProviderID: successResp.ID,
	}, nil
}
