// Package routing decides which execution agent handles a work order.
// Routing is pure and deterministic: the same roster and score always yield
// the same agent. It is advisory only; the engine performs the execution.
package routing

import (
	"errors"
	"fmt"
	"sort"

	"foundry/internal/domain"
)

var ErrNoActiveAgents = errors.New("no active agents in roster")

// DefaultRetryCeiling is the attempt number at which the retry ladder forces
// escalation regardless of agent availability.
const DefaultRetryCeiling = 3

type Decision struct {
	Agent           domain.AgentProfile
	Reason          string
	BelowConfidence bool
}

type RetryStep struct {
	NextAgent      domain.AgentProfile
	ShouldEscalate bool
	Reason         string
}

// Route picks the cheapest capable agent: among active agents whose
// threshold covers the score, the one with the smallest threshold. When no
// agent covers the score, the largest-threshold agent is chosen best-effort
// and the decision is flagged below confidence. Ties break by lowest
// per-input-token cost, then name.
func Route(complexityScore float64, roster []domain.AgentProfile) (Decision, error) {
	active := activeSorted(roster)
	if len(active) == 0 {
		return Decision{}, ErrNoActiveAgents
	}

	for _, agent := range active {
		if agent.ComplexityThreshold >= complexityScore {
			return Decision{
				Agent:  agent,
				Reason: fmt.Sprintf("cheapest capable agent (threshold %.2f covers score %.2f)", agent.ComplexityThreshold, complexityScore),
			}, nil
		}
	}

	best := active[len(active)-1]
	return Decision{
		Agent:           best,
		Reason:          fmt.Sprintf("no agent covers score %.2f; best-effort ceiling %.2f", complexityScore, best.ComplexityThreshold),
		BelowConfidence: true,
	}, nil
}

// RetryStrategy returns the next step of the escalation ladder. Attempt 1 is
// the primary route; attempt 2 switches to the next-most-capable agent
// distinct from the previous one; at or beyond the ceiling the strategy
// forces escalation.
func RetryStrategy(complexityScore float64, previousAgent string, attemptNumber, retryCeiling int, roster []domain.AgentProfile) (RetryStep, error) {
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}
	if attemptNumber >= retryCeiling {
		return RetryStep{
			ShouldEscalate: true,
			Reason:         fmt.Sprintf("attempt %d reached retry ceiling %d", attemptNumber, retryCeiling),
		}, nil
	}

	if attemptNumber <= 1 {
		decision, err := Route(complexityScore, roster)
		if err != nil {
			return RetryStep{}, err
		}
		return RetryStep{NextAgent: decision.Agent, Reason: decision.Reason}, nil
	}

	active := activeSorted(roster)
	if len(active) == 0 {
		return RetryStep{}, ErrNoActiveAgents
	}

	// Walk upward from the previous agent's position; a more capable agent
	// gets the retry. Fall back to any distinct agent, largest first.
	prevIdx := -1
	for i, agent := range active {
		if agent.Name == previousAgent {
			prevIdx = i
			break
		}
	}
	for i := prevIdx + 1; i < len(active); i++ {
		if active[i].Name != previousAgent {
			return RetryStep{
				NextAgent: active[i],
				Reason:    fmt.Sprintf("retry %d escalates to more capable agent %s", attemptNumber, active[i].Name),
			}, nil
		}
	}
	for i := len(active) - 1; i >= 0; i-- {
		if active[i].Name != previousAgent {
			return RetryStep{
				NextAgent: active[i],
				Reason:    fmt.Sprintf("retry %d falls back to %s", attemptNumber, active[i].Name),
			}, nil
		}
	}
	return RetryStep{
		ShouldEscalate: true,
		Reason:         "no distinct agent available for retry",
	}, nil
}

// activeSorted filters inactive agents and orders by threshold ascending,
// breaking ties by input-token cost then name, which makes every downstream
// scan deterministic.
func activeSorted(roster []domain.AgentProfile) []domain.AgentProfile {
	active := make([]domain.AgentProfile, 0, len(roster))
	for _, agent := range roster {
		if agent.Active {
			active = append(active, agent)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].ComplexityThreshold != active[j].ComplexityThreshold {
			return active[i].ComplexityThreshold < active[j].ComplexityThreshold
		}
		if active[i].InputCostPerKTok != active[j].InputCostPerKTok {
			return active[i].InputCostPerKTok < active[j].InputCostPerKTok
		}
		return active[i].Name < active[j].Name
	})
	return active
}
