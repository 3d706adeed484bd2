package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes placement outcomes, one producer per topic.
type EventPublisher struct {
	placed  *Producer
	alarms  *Producer
	service string
}

func NewEventPublisher(placed, alarms *Producer, service string) *EventPublisher {
	return &EventPublisher{placed: placed, alarms: alarms, service: service}
}

func (p *EventPublisher) OrderPlaced(ctx context.Context, o *orders.Order) error {
	return p.publish(ctx, p.placed, orders.EventOrderPlaced, o.ID, orders.NewOrderPlacedPayload(o))
}

func (p *EventPublisher) CompensationFailed(ctx context.Context, o *orders.Order, cerr *orders.CompensationError) error {
	return p.publish(ctx, p.alarms, orders.EventCompensationFailed, o.ID, orders.NewCompensationFailedPayload(o, cerr))
}

func (p *EventPublisher) publish(ctx context.Context, to *Producer, eventType, orderID string, payload any) error {
	env, err := NewEnvelope(ctx, eventType, p.service, orderID, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return to.Publish(ctx, orders.PartitionKey(orderID), b, eventHeaders(env)...)
}

func eventHeaders(env orders.Envelope) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(env.EventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	}
}
