package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/store"
)

// validWebhookEvents are the engine events a subscriber can receive.
var validWebhookEvents = func() map[string]bool {
	m := make(map[string]bool, len(domain.EventNames))
	for _, name := range domain.EventNames {
		m[name] = true
	}
	return m
}()

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	SubscriberID string
	URL          string
	Events       []string
}

// WebhookService handles webhook CRUD and delivers engine events to
// subscribers. It implements engine.EventSink.
type WebhookService struct {
	store    *store.WebhookStore
	client   *http.Client
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	webhookTimeout time.Duration,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.SubscriberID == "" {
		return nil, false, domain.ErrUnauthorized
	}

	// Validate URL.
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " + strings.Join(domain.EventNames, ", "),
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID:    uuid.New().String(),
			SubscriberID: req.SubscriberID,
			Event:        event,
			URL:          req.URL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
			continue
		}
		for _, existing := range s.store.ListBySubscriber(req.SubscriberID) {
			if existing.Event == event {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List returns the subscriber's webhook subscriptions.
func (s *WebhookService) List(subscriberID string) ([]*domain.Webhook, error) {
	if subscriberID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.store.ListBySubscriber(subscriberID), nil
}

// Delete removes one of the subscriber's webhook subscriptions. Another
// subscriber's webhook is reported as not found.
func (s *WebhookService) Delete(subscriberID, webhookID string) error {
	if subscriberID == "" {
		return domain.ErrUnauthorized
	}
	w, err := s.store.Get(webhookID)
	if err != nil {
		return err
	}
	if w.SubscriberID != subscriberID {
		return domain.ErrWebhookNotFound
	}
	return s.store.Delete(webhookID)
}

// Publish delivers ev to every subscription for its name. Delivery runs in
// the background and failures are only logged.
func (s *WebhookService) Publish(ev domain.Event) {
	for _, wh := range s.store.ListByEvent(ev.Name) {
		s.inflight.Add(1)
		go func(wh *domain.Webhook) {
			defer s.inflight.Done()
			s.deliver(wh, ev)
		}(wh)
	}
}

// Wait blocks until in-flight deliveries finish.
func (s *WebhookService) Wait() {
	s.inflight.Wait()
}

// deliver sends the event via HTTP POST with the delivery headers.
func (s *WebhookService) deliver(wh *domain.Webhook, ev domain.Event) {
	ev.At = ev.At.UTC().Truncate(time.Second)
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode webhook payload",
			slog.String("event", ev.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", ev.Name)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook delivery rejected",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.Int("status", resp.StatusCode),
		)
	}
}
