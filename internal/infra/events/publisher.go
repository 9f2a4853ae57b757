package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// DefaultTopic receives delivery events when no topic is configured.
const DefaultTopic = "mcq.deliveries"

const (
	TypeDelivered      = "mcq.delivered"
	TypeDeliveryFailed = "mcq.delivery_failed"
)

// DeliveryEvent is the payload published after every delivery attempt that reached a record.
type DeliveryEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	MCQID       int64     `json:"mcq_id"`
	Uploader    string    `json:"uploader,omitempty"`
	DeliveryRef string    `json:"delivery_ref,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	Parked      bool      `json:"parked,omitempty"`
	Error       string    `json:"error,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher turns scheduler outcomes into watermill messages. Publish errors are logged and
// swallowed: events are a side channel and must never affect delivery.
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    *zap.Logger
	now       func() time.Time
}

func NewPublisher(publisher message.Publisher, topic string, logger *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{publisher: publisher, topic: topic, logger: logger, now: time.Now}
}

// NewKafkaPublisher publishes delivery events to Kafka.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*Publisher, error) {
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, NewZapAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewPublisher(pub, topic, logger), nil
}

// NewGoChannel returns an in-process pub/sub; the caller may subscribe to it directly.
func NewGoChannel(logger *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewZapAdapter(logger))
}

func (p *Publisher) Topic() string { return p.topic }

func (p *Publisher) OnDelivered(ctx context.Context, item domain.MCQ) {
	p.publish(ctx, DeliveryEvent{
		Type:        TypeDelivered,
		MCQID:       item.ID,
		Uploader:    item.Uploader,
		DeliveryRef: item.DeliveryRef,
		Attempts:    item.Attempts,
	})
}

func (p *Publisher) OnDeliveryFailed(ctx context.Context, item domain.MCQ, err error) {
	ev := DeliveryEvent{
		Type:     TypeDeliveryFailed,
		MCQID:    item.ID,
		Uploader: item.Uploader,
		Attempts: item.Attempts,
		Parked:   item.Parked(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.publish(ctx, ev)
}

func (p *Publisher) publish(ctx context.Context, ev DeliveryEvent) {
	ev.ID = uuid.NewString()
	ev.OccurredAt = p.now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal delivery event", zap.Error(err))
		return
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", ev.Type)
	msg.Metadata.Set("mcq_id", fmt.Sprint(ev.MCQID))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("publish delivery event",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(err))
		return
	}
	p.logger.Debug("published delivery event",
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("topic", p.topic))
}

func (p *Publisher) Close() error {
	return p.publisher.Close()
}
