// Package delivery renders synthesized reports into HTML email and sends
// them over SMTP. The coordinator validates the recipient before touching
// the transport and records every attempt, sent or failed.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/domain"
	"github.com/helixir/literature-assistant/internal/observability"
)

// DefaultTimeout bounds one transport send.
const DefaultTimeout = 30 * time.Second

// Config holds delivery policy.
type Config struct {
	// From is the sender address placed on every message.
	From string
	// Timeout bounds a single transport send. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Coordinator validates recipients, renders reports, and drives the transport.
type Coordinator struct {
	transport Transport
	config    Config
	validate  *validator.Validate
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewCoordinator creates a Coordinator.
// metrics may be nil when metrics collection is disabled.
func NewCoordinator(transport Transport, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		transport: transport,
		config:    cfg,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "delivery_coordinator").Logger(),
		metrics:   metrics,
	}
}

// ValidateRecipient checks that the address is a syntactically valid email.
// Returns a domain.InvalidRecipientError otherwise.
func (c *Coordinator) ValidateRecipient(address string) error {
	if err := c.validate.Var(address, "required,email"); err != nil {
		return domain.NewInvalidRecipientError(address)
	}
	return nil
}

// Deliver renders the report and sends it to the recipient. A DeliveryRecord
// is returned for every attempt that reaches the transport, including failed
// ones; the error then wraps domain.ErrDeliveryFailed. An invalid recipient
// fails before rendering and yields no record.
func (c *Coordinator) Deliver(ctx context.Context, sessionID, recipient string, report *domain.Report, articles []*domain.Article) (*domain.DeliveryRecord, error) {
	if err := c.ValidateRecipient(recipient); err != nil {
		return nil, err
	}

	subject, body, err := RenderEmail(report, articles)
	if err != nil {
		return nil, err
	}

	record := &domain.DeliveryRecord{
		SessionID:    sessionID,
		Recipient:    recipient,
		Subject:      subject,
		ArticleCount: len(articles),
		AttemptedAt:  time.Now().UTC(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	err = c.transport.Send(sendCtx, Message{
		From:     c.config.From,
		To:       recipient,
		Subject:  subject,
		HTMLBody: body,
	})
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.DeliveryDuration.Observe(duration.Seconds())
	}

	if err != nil {
		record.Status = domain.DeliveryStatusFailed
		record.Reason = err.Error()
		if c.metrics != nil {
			c.metrics.DeliveriesTotal.WithLabelValues(string(domain.DeliveryStatusFailed)).Inc()
		}
		c.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("recipient", recipient).
			Dur("duration", duration).
			Msg("report delivery failed")
		return record, fmt.Errorf("send report to %s: %w: %w", recipient, domain.ErrDeliveryFailed, err)
	}

	record.Status = domain.DeliveryStatusSent
	if c.metrics != nil {
		c.metrics.DeliveriesTotal.WithLabelValues(string(domain.DeliveryStatusSent)).Inc()
	}
	c.logger.Info().
		Str("session_id", sessionID).
		Str("recipient", recipient).
		Int("articles", len(articles)).
		Dur("duration", duration).
		Msg("report delivered")
	return record, nil
}
