// Package mocks provides testify mock implementations of the engine's
// collaborator interfaces for unit testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
)

// MockEventBus is a mock implementation of the eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// PublishedEvents returns the events recorded by Publish calls whose type
// matches eventType, in call order.
func (m *MockEventBus) PublishedEvents(eventType events.EventType) []eventbus.Event {
	var matched []eventbus.Event

	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}

		event, ok := call.Arguments.Get(2).(eventbus.Event)
		if !ok {
			continue
		}

		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}
