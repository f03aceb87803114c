package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/usecase"
)

// LeadProcessor is satisfied by *usecase.BatchProcessor.
type LeadProcessor interface {
	ProcessLead(ctx context.Context, id string) (usecase.LeadOutcome, error)
}

// Consumer is the subset of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Worker struct {
	Channel   Consumer
	Processor LeadProcessor
}

func NewWorker(ch Consumer, processor LeadProcessor) *Worker {
	return &Worker{Channel: ch, Processor: processor}
}

// Start consumes queueName until ctx is done or the delivery channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return eris.Wrapf(err, "rabbitmq: consume %s", queueName)
	}

	zap.L().Info("queue worker listening", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return eris.New("rabbitmq: delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var payload LeadCapturedPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil || payload.LeadID == "" {
		zap.L().Warn("malformed lead message, dead-lettering", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	log := zap.L().With(zap.String("lead_id", payload.LeadID))

	outcome, err := w.Processor.ProcessLead(ctx, payload.LeadID)
	if err != nil {
		// The lead stays pending, so the scheduled batch picks it up later.
		log.Error("lead message not processed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if outcome.Skipped {
		log.Debug("lead no longer pending", zap.String("status", string(outcome.Status)))
	} else {
		log.Info("lead processed from queue",
			zap.String("status", string(outcome.Status)),
			zap.Int("attempts", outcome.Result.Attempts),
		)
	}
	_ = d.Ack(false)
}
