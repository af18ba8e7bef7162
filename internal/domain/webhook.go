package domain

import "time"

// Webhook represents a subscriber's registration for an engine event.
type Webhook struct {
	WebhookID    string
	SubscriberID string
	Event        string
	URL          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
