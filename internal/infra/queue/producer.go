package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
)

// LeadCapturedPayload is the body of a lead.captured message.
type LeadCapturedPayload struct {
	LeadID     string    `json:"lead_id"`
	CapturedAt time.Time `json:"captured_at"`
}

// Publisher is the subset of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch  Publisher
	now func() time.Time
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch, now: time.Now}
}

func (p *RabbitMQProducer) PublishLeadCaptured(ctx context.Context, leadID string) error {
	body, err := json.Marshal(LeadCapturedPayload{LeadID: leadID, CapturedAt: p.now().UTC()})
	if err != nil {
		return eris.Wrap(err, "rabbitmq: marshal payload")
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    leadID,
			Timestamp:    p.now().UTC(),
		},
	)
	return eris.Wrapf(err, "rabbitmq: publish lead %s", leadID)
}
