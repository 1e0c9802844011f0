// Package sink attaches the notification delivery sinks to the bus. Real
// delivery lives outside this system; these sinks log each notification
// and optionally mirror it to an audit topic, at most once.
package sink

import (
	"context"

	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/kafka"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
)

// Sinks holds the delivery endpoints for outbound notifications.
type Sinks struct {
	log      logger.Logger
	producer *kafka.Producer // nil disables the audit trail
	topic    string
}

// New creates notification sinks. producer may be nil.
func New(log logger.Logger, producer *kafka.Producer, auditTopic string) *Sinks {
	return &Sinks{log: log, producer: producer, topic: auditTopic}
}

// Attach subscribes the sinks to the outbound notification events.
func (s *Sinks) Attach(b *bus.Bus) {
	b.Subscribe(models.DetailNotificationEmail, s.email)
	b.Subscribe(models.DetailNotificationSMS, s.sms)
}

func (s *Sinks) email(ctx context.Context, evt bus.Event) {
	s.log.Info("email notification",
		"to", evt.Detail["to"],
		"subject", evt.Detail["subject"],
		"flightId", evt.Detail["flight_id"],
	)
	s.audit(ctx, evt)
}

func (s *Sinks) sms(ctx context.Context, evt bus.Event) {
	s.log.Info("sms notification",
		"to", evt.Detail["to"],
		"message", evt.Detail["message"],
		"flightId", evt.Detail["flight_id"],
	)
	s.audit(ctx, evt)
}

func (s *Sinks) audit(ctx context.Context, evt bus.Event) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Publish(ctx, s.topic, evt.ID, evt); err != nil {
		s.log.Warn("failed to write notification audit record", "error", err)
	}
}
