package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
)

// Scoring weights. Matching a required flag counts full weight, optional
// flags half, with an extra bonus when the optional flag is one of the
// coordination capabilities.
const (
	requiredFlagWeight = 1.0
	optionalFlagWeight = 0.5
	coordinationBonus  = 0.25
)

// DiscoveryRequest selects agents by capability.
type DiscoveryRequest struct {
	RequiredCapabilities []string `json:"required_capabilities"`
	OptionalCapabilities []string `json:"optional_capabilities,omitempty"`
	DataType             string   `json:"data_type,omitempty"`
	MinScore             float64  `json:"min_score"`
	Strict               bool     `json:"strict"`
}

// ScoredAgent pairs an agent with its capability match score in [0, 1].
type ScoredAgent struct {
	Agent *models.Agent `json:"agent"`
	Score float64       `json:"score"`
}

// ScoreStats aggregates the scores of the returned agents.
type ScoreStats struct {
	Average float64 `json:"average"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
}

// DiscoveryResult carries the ranked agents plus aggregate scoring metrics.
type DiscoveryResult struct {
	Agents []ScoredAgent `json:"agents"`
	Stats  ScoreStats    `json:"stats"`
}

// DiscoverAgents ranks enabled agents by how well their declared
// capabilities match the request. Disabled agents are never candidates.
// Strict mode drops any agent missing a required flag; otherwise partial
// matches stay in, ranked lower.
func (c *Coordinator) DiscoverAgents(ctx context.Context, request DiscoveryRequest) (*DiscoveryResult, error) {
	if len(request.RequiredCapabilities) == 0 {
		return nil, fmt.Errorf("at least one required capability must be given")
	}

	candidates, err := c.persistence.AgentRepository().ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	scored := make([]ScoredAgent, 0, len(candidates))

	for _, agent := range candidates {
		if request.DataType != "" && !slices.Contains(agent.Capabilities.SupportedDataTypes, request.DataType) {
			continue
		}

		score, matchedAllRequired := scoreCapabilities(agent.Capabilities, request)

		if request.Strict && !matchedAllRequired {
			continue
		}

		if score < request.MinScore {
			continue
		}

		scored = append(scored, ScoredAgent{Agent: agent, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}

		return scored[i].Agent.ID < scored[j].Agent.ID
	})

	result := &DiscoveryResult{
		Agents: scored,
		Stats:  scoreStats(scored),
	}

	agentIDs := make([]string, len(scored))
	for i, match := range scored {
		agentIDs[i] = match.Agent.ID
	}

	capability := strings.Join(request.RequiredCapabilities, ",")

	c.audit(ctx, models.AuditDiscoveryRun, capability, "coordinator", map[string]any{
		"data_type": request.DataType,
		"matches":   len(scored),
	})

	discovered := events.AgentsDiscovered{
		BaseEvent:  events.NewBaseEvent(events.AgentsDiscoveredEvent, capability),
		Capability: capability,
		DataType:   request.DataType,
		AgentIDs:   agentIDs,
	}

	c.publish(ctx, capability, discovered)

	return result, nil
}

// scoreCapabilities computes the normalized weighted match score and whether
// every required flag matched.
func scoreCapabilities(capabilities models.AgentCapabilities, request DiscoveryRequest) (float64, bool) {
	var earned, possible float64

	matchedAllRequired := true

	for _, flag := range request.RequiredCapabilities {
		possible += requiredFlagWeight

		if capabilities.Has(flag) {
			earned += requiredFlagWeight
		} else {
			matchedAllRequired = false
		}
	}

	for _, flag := range request.OptionalCapabilities {
		weight := optionalFlagWeight
		if flag == models.CapabilityOrchestrate || flag == models.CapabilityAnalyze {
			weight += coordinationBonus
		}

		possible += weight

		if capabilities.Has(flag) {
			earned += weight
		}
	}

	if possible == 0 {
		return 0, matchedAllRequired
	}

	return earned / possible, matchedAllRequired
}

func scoreStats(scored []ScoredAgent) ScoreStats {
	if len(scored) == 0 {
		return ScoreStats{}
	}

	stats := ScoreStats{
		High: scored[0].Score,
		Low:  scored[0].Score,
	}

	var sum float64

	for _, match := range scored {
		sum += match.Score

		if match.Score > stats.High {
			stats.High = match.Score
		}

		if match.Score < stats.Low {
			stats.Low = match.Score
		}
	}

	stats.Average = sum / float64(len(scored))

	return stats
}
