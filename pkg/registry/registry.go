// Package registry resolves agent kinds to executor factories.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/loomhq/loom/pkg/protocol"
)

type Registry struct {
	logger            *slog.Logger
	executorFactories map[string]protocol.ExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:            log,
		executorFactories: make(map[string]protocol.ExecutorFactory),
	}
}

// RegisterExecutor makes a factory available under its kind. Registering the
// same kind twice replaces the earlier factory.
func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.executorFactories[factory.Kind()] = factory
	r.logger.Debug("Registered executor factory", "kind", factory.Kind())
}

func (r *Registry) CreateExecutor(kind string, config map[string]any) (protocol.AgentExecutor, error) {
	factory, ok := r.executorFactories[kind]
	if !ok {
		return nil, fmt.Errorf("executor kind '%s' not registered", kind)
	}

	return factory.Create(config, r.logger)
}

// AvailableKinds returns the registered executor kinds in sorted order.
func (r *Registry) AvailableKinds() []string {
	kinds := make([]string, 0, len(r.executorFactories))
	for kind := range r.executorFactories {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}
