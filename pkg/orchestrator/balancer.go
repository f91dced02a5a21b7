package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/loomhq/loom/pkg/models"
)

// AssignRoundRobin spreads tasks across agents in arrival order. Task i
// goes to agent i mod len(agents), so per-agent counts never differ by
// more than one.
func AssignRoundRobin(tasks []*models.Task, agents []*models.Agent) map[string][]*models.Task {
	assignments := make(map[string][]*models.Task, len(agents))
	if len(agents) == 0 {
		return assignments
	}

	for i, task := range tasks {
		agent := agents[i%len(agents)]
		task.AgentID = agent.ID
		assignments[agent.ID] = append(assignments[agent.ID], task)
	}

	return assignments
}

// DistributeTasks assigns tasks round-robin across the enabled agent pool.
// Agents are ordered by ID so the same pool always produces the same
// assignment.
func (c *Coordinator) DistributeTasks(ctx context.Context, tasks []*models.Task) (map[string][]*models.Task, error) {
	agents, err := c.persistence.AgentRepository().ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled agents: %w", err)
	}

	if len(agents) == 0 {
		return nil, fmt.Errorf("no enabled agents available")
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	assignments := AssignRoundRobin(tasks, agents)

	c.logger.DebugContext(ctx, "Distributed tasks across agents",
		"tasks", len(tasks), "agents", len(agents))

	return assignments, nil
}
