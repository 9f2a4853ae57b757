package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mcq-queue-service/internal/domain"
)

func receive(t *testing.T, ch <-chan *message.Message) (DeliveryEvent, *message.Message) {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		var ev DeliveryEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		return ev, msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return DeliveryEvent{}, nil
	}
}

func TestPublisherEmitsDeliveryEvents(t *testing.T) {
	logger := zaptest.NewLogger(t)
	pubsub := NewGoChannel(logger)
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := pubsub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	publisher := NewPublisher(pubsub, "", logger)
	posted := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	publisher.OnDelivered(ctx, domain.MCQ{ID: 7, Uploader: "user1", DeliveryRef: "poll-1", PostedAt: &posted})

	ev, msg := receive(t, messages)
	assert.Equal(t, TypeDelivered, ev.Type)
	assert.Equal(t, int64(7), ev.MCQID)
	assert.Equal(t, "poll-1", ev.DeliveryRef)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ev.ID, msg.UUID)
	assert.Equal(t, TypeDelivered, msg.Metadata.Get("event_type"))
	assert.Equal(t, "7", msg.Metadata.Get("mcq_id"))

	parked := posted.Add(time.Minute)
	publisher.OnDeliveryFailed(ctx, domain.MCQ{ID: 8, Attempts: 3, ParkedAt: &parked}, errors.New("bad request"))
	ev, _ = receive(t, messages)
	assert.Equal(t, TypeDeliveryFailed, ev.Type)
	assert.Equal(t, 3, ev.Attempts)
	assert.True(t, ev.Parked)
	assert.Equal(t, "bad request", ev.Error)
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func TestPublishFailureIsSwallowed(t *testing.T) {
	publisher := NewPublisher(failingPublisher{}, "custom", zaptest.NewLogger(t))
	assert.Equal(t, "custom", publisher.Topic())
	assert.NotPanics(t, func() {
		publisher.OnDelivered(context.Background(), domain.MCQ{ID: 1})
	})
}

func TestConsumeHandsEventsToHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	pubsub := NewGoChannel(logger)
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan DeliveryEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, pubsub, "", logger, func(ev DeliveryEvent) error {
			select {
			case received <- ev:
			default:
			}
			return AuditLog(logger)(ev)
		})
	}()

	publisher := NewPublisher(pubsub, "", logger)
	deadline := time.After(2 * time.Second)
	for {
		publisher.OnDelivered(ctx, domain.MCQ{ID: 11, DeliveryRef: "r"})
		select {
		case ev := <-received:
			assert.Equal(t, int64(11), ev.MCQID)
			cancel()
			require.NoError(t, <-done)
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("consumer never received an event")
		}
	}
}
