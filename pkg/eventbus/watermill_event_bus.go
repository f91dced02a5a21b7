package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/loomhq/loom/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event any

			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			switch eventType {
			case events.AgentRegisteredEvent:
				event = &events.AgentRegistered{}
			case events.AgentDeregisteredEvent:
				event = &events.AgentDeregistered{}
			case events.AgentIsolatedEvent:
				event = &events.AgentIsolated{}
			case events.AgentReenabledEvent:
				event = &events.AgentReenabled{}
			case events.AgentsDiscoveredEvent:
				event = &events.AgentsDiscovered{}
			case events.TaskCompletedEvent:
				event = &events.TaskCompleted{}
			case events.TaskFailedEvent:
				event = &events.TaskFailed{}
			case events.TaskRetryingEvent:
				event = &events.TaskRetrying{}
			case events.RunStartedEvent:
				event = &events.RunStarted{}
			case events.RunStageCompletedEvent:
				event = &events.RunStageCompleted{}
			case events.RunCompletedEvent:
				event = &events.RunCompleted{}
			case events.RunFailedEvent:
				event = &events.RunFailed{}
			case events.ModelPublishedEvent:
				event = &events.ModelPublished{}
			case events.ModelArchivedEvent:
				event = &events.ModelArchived{}
			case events.ModelSoftDeletedEvent:
				event = &events.ModelSoftDeleted{}
			case events.ModelUndeletedEvent:
				event = &events.ModelUndeleted{}
			case events.ModelRestoredEvent:
				event = &events.ModelRestored{}
			case events.RecoveryRepairedEvent:
				event = &events.RecoveryRepaired{}
			case events.RecoveryWindowExpiredEvent:
				event = &events.RecoveryWindowExpired{}
			default:
				msg.Nack()

				continue
			}

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
