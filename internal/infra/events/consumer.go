package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Consume reads delivery events from topic and hands each one to handle until ctx is done.
// Messages that fail to decode are acked and dropped; handle errors nack the message.
func Consume(ctx context.Context, sub message.Subscriber, topic string, logger *zap.Logger, handle func(DeliveryEvent) error) error {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev DeliveryEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logger.Warn("drop undecodable delivery event", zap.String("uuid", msg.UUID), zap.Error(err))
				msg.Ack()
				continue
			}
			if err := handle(ev); err != nil {
				logger.Warn("delivery event handler failed", zap.String("event_id", ev.ID), zap.Error(err))
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// AuditLog returns a handler that writes every delivery event to logger.
func AuditLog(logger *zap.Logger) func(DeliveryEvent) error {
	return func(ev DeliveryEvent) error {
		logger.Info("delivery event",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Int64("mcq_id", ev.MCQID),
			zap.String("delivery_ref", ev.DeliveryRef),
			zap.Int("attempts", ev.Attempts),
			zap.Bool("parked", ev.Parked))
		return nil
	}
}
