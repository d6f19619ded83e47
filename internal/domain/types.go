package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusApproved   JobStatus = "approved"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusEscalated  JobStatus = "escalated"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Stage names an execution phase of a work order; failures carry the stage
// they originated in.
type Stage string

const (
	StageDispatch Stage = "dispatch"
	StageBudget   Stage = "budget"
	StageRouting  Stage = "routing"
	StageAgent    Stage = "agent_invocation"
	StageApply    Stage = "apply"
	StagePublish  Stage = "publish"
)

type FailureClass string

const (
	FailureAgentInvocation FailureClass = "agent_invocation_error"
	FailureApply           FailureClass = "apply_error"
	FailurePublish         FailureClass = "publish_error"
	FailureBudgetRejected  FailureClass = "budget_rejected"
	FailureDependencyUnmet FailureClass = "dependency_unmet"
	FailureUnclassified    FailureClass = "unclassified"
)

// Job is a work order: one unit of AI-generated code change driven through
// routing, agent invocation, code application and PR publication.
type Job struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Instructions    string           `json:"instructions"`
	TargetID        string           `json:"target_id"`
	Status          JobStatus        `json:"status"`
	ComplexityScore float64          `json:"complexity_score"`
	EstimatedCost   float64          `json:"estimated_cost_usd"`
	DependsOn       []string         `json:"depends_on,omitempty"`
	Routing         *RoutingDecision `json:"routing_decision,omitempty"`
	Attempts        []Attempt        `json:"attempts,omitempty"`
	BranchRef       string           `json:"branch_ref,omitempty"`
	PullRequestRef  string           `json:"pull_request_ref,omitempty"`
	LastError       *StageError      `json:"orchestrator_error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (j Job) AttemptCount() int {
	return len(j.Attempts)
}

type RoutingDecision struct {
	Agent           string    `json:"selected_agent"`
	Reason          string    `json:"reason"`
	BelowConfidence bool      `json:"below_confidence,omitempty"`
	RoutedAt        time.Time `json:"routed_at"`
}

type Attempt struct {
	Number       int          `json:"attempt_number"`
	Agent        string       `json:"agent"`
	FailureClass FailureClass `json:"error_class,omitempty"`
	Error        string       `json:"error,omitempty"`
	CostUSD      float64      `json:"cost_usd"`
	Timestamp    time.Time    `json:"timestamp"`
}

// StageError is the structured terminal error surfaced to callers instead of
// a raw exception string.
type StageError struct {
	Stage        Stage        `json:"stage"`
	FailureClass FailureClass `json:"failure_class"`
	Message      string       `json:"message"`
}

func (e StageError) Error() string {
	return string(e.Stage) + ": " + string(e.FailureClass) + ": " + e.Message
}

// AgentProfile is a routing candidate. Jobs route to the cheapest active
// agent whose threshold still covers the job's complexity score.
type AgentProfile struct {
	Name                string    `json:"name"`
	Provider            string    `json:"provider"`
	ComplexityThreshold float64   `json:"complexity_threshold"`
	InputCostPerKTok    float64   `json:"input_cost_per_ktok"`
	OutputCostPerKTok   float64   `json:"output_cost_per_ktok"`
	Active              bool      `json:"active"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type CostRecord struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Tag        string    `json:"tag"`
	AmountUSD  float64   `json:"amount_usd"`
	RecordedAt time.Time `json:"recorded_at"`
}

type EscalationTrigger string

const (
	TriggerExhaustedRetries  EscalationTrigger = "exhausted_retries"
	TriggerRepeatedCIFailure EscalationTrigger = "repeated_ci_failure"
	TriggerBudgetOverrun     EscalationTrigger = "budget_overrun"
	TriggerConflictingReqs   EscalationTrigger = "conflicting_requirements"
	TriggerTechnicalBlocker  EscalationTrigger = "technical_blocker"
	TriggerIrreconcilable    EscalationTrigger = "irreconcilable_state"
)

type EscalationStatus string

const (
	EscalationOpen      EscalationStatus = "open"
	EscalationResolved  EscalationStatus = "resolved"
	EscalationAbandoned EscalationStatus = "abandoned"
)

type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

type ResolutionOption struct {
	Description        string   `json:"description"`
	EstimatedCostUSD   float64  `json:"estimated_cost_usd"`
	SuccessProbability float64  `json:"success_probability"`
	Risk               RiskTier `json:"risk"`
}

// EscalationContext carries the full failure history so a human or policy
// can pick a resolution without re-deriving it from logs.
type EscalationContext struct {
	Errors       []string  `json:"errors"`
	CostSpentUSD float64   `json:"cost_spent_usd"`
	Attempts     []Attempt `json:"attempts"`
	Blocking     string    `json:"blocking,omitempty"`
}

type Escalation struct {
	ID         string             `json:"id"`
	JobID      string             `json:"job_id"`
	Trigger    EscalationTrigger  `json:"trigger"`
	Context    EscalationContext  `json:"context"`
	Options    []ResolutionOption `json:"options"`
	Status     EscalationStatus   `json:"status"`
	Resolution string             `json:"resolution,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
}

type ProgressEventType string

const (
	EventStarted   ProgressEventType = "started"
	EventProgress  ProgressEventType = "progress"
	EventCompleted ProgressEventType = "completed"
	EventFailed    ProgressEventType = "failed"
)

func (t ProgressEventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed
}

// ProgressEvent is a transient live-progress notification. Percent is
// monotonically non-decreasing within one job execution.
type ProgressEvent struct {
	JobID    string            `json:"job_id"`
	Type     ProgressEventType `json:"type"`
	Percent  int               `json:"percent"`
	Metadata map[string]any    `json:"metadata,omitempty"`
	At       time.Time         `json:"at"`
}

type BudgetWindow struct {
	SpentUSD       float64 `json:"spent_usd"`
	HardCapUSD     float64 `json:"hard_cap_usd"`
	RemainingUSD   float64 `json:"remaining_usd"`
	Percent        float64 `json:"percent"`
	SoftAlert      bool    `json:"soft_alert"`
	HardAlert      bool    `json:"hard_alert"`
	EmergencyAlert bool    `json:"emergency_alert"`
}

type BudgetStatus struct {
	Daily   BudgetWindow `json:"daily"`
	Monthly BudgetWindow `json:"monthly"`
}

type DecisionLog struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
