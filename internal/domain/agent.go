package domain

import "time"

// TriageDecision enumerates routing outcomes from the triage agent.
type TriageDecision string

const (
	DecisionAgentResolution     TriageDecision = "agent_resolution"
	DecisionEscalateImmediately TriageDecision = "escalate_immediately"
)

// TriageResult is the immutable output of triage analysis.
type TriageResult struct {
	TicketID                string
	Category                TicketCategory
	Priority                TicketPriority
	Decision                TriageDecision
	Confidence              float64
	SuggestedResolutionPath string
	Reasoning               string
}

// AgentDecision records one agent's contribution to a run, in order.
type AgentDecision struct {
	Agent     string
	Summary   string
	Timestamp time.Time
}

// AgentContext carries per-run state across agent invocations. It is
// created at run start and mutated only by the orchestrator.
type AgentContext struct {
	Ticket           *Ticket
	ConversationID   string
	Iteration        int
	MaxIterations    int
	Decisions        []AgentDecision
	IdentityVerified bool
}

// RecordDecision appends an agent decision to the run history.
func (c *AgentContext) RecordDecision(agent, summary string) {
	c.Decisions = append(c.Decisions, AgentDecision{
		Agent:     agent,
		Summary:   summary,
		Timestamp: time.Now(),
	})
}
