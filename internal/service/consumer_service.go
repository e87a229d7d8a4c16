package service

import (
	"context"
	"fmt"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/bus"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/nats"
)

// IConsumerService bridges the external NATS bus back into the process:
// ranking/ingest completion events are pushed to every connected
// websocket watcher, including ones on other instances.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber *nats.Subscriber
	hub        *websocket.Hub
	logger     logger.ILogger
}

func NewConsumerService(subscriber *nats.Subscriber, hub *websocket.Hub, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		hub:        hub,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	if cs.subscriber == nil {
		cs.logger.Warn("ConsumerService", "NATS subscriber unavailable, event fan-out disabled", nil)
		return nil
	}

	err := cs.subscriber.Subscribe("events.>", "research-assistant-fanout", cs.handleEvent)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	return nil
}

func (cs *consumerService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	date, _ := payload["date"].(string)
	var message string
	switch event.EventType() {
	case "events." + events.TypeRankingCompleted:
		message = fmt.Sprintf("Ranking completed for %s", date)
	case "events." + events.TypePapersIngested:
		message = fmt.Sprintf("Papers ingested for %s", date)
	default:
		// Unknown event kinds are acked and dropped.
		return nil
	}

	cs.logger.Info("ConsumerService", "Broadcasting event", map[string]interface{}{
		"type": event.EventType(), "date": date,
	})
	cs.hub.Broadcast(bus.Status(message))
	return nil
}
