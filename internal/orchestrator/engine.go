// Package orchestrator drives work orders through their execution stages:
// lock the target, reserve budget, route to an agent, invoke it, apply the
// output, publish a pull request, persist the terminal state. Failures are
// classified by stage and either retried, escalated, or marked failed.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"foundry/internal/budget"
	"foundry/internal/cache"
	"foundry/internal/collab"
	"foundry/internal/domain"
	"foundry/internal/routing"
)

const engineActor = "orchestrator"

const rosterCacheKey = "agents:active"

type Store interface {
	GetJob(ctx context.Context, jobID string) (domain.Job, error)
	ListJobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error
	SetRoutingDecision(ctx context.Context, jobID string, d domain.RoutingDecision) error
	AppendAttempt(ctx context.Context, jobID string, attempt domain.Attempt) error
	SetArtifactRefs(ctx context.Context, jobID, branchRef, pullRequestRef string) error
	SetJobError(ctx context.Context, jobID string, stageErr domain.StageError) error
	ClearJobError(ctx context.Context, jobID string) error
	ListActiveAgents(ctx context.Context) ([]domain.AgentProfile, error)
	CreateEscalation(ctx context.Context, esc domain.Escalation) error
	LogDecision(ctx context.Context, entry domain.DecisionLog) error
}

type Locker interface {
	Acquire(ctx context.Context, targetID, holderID string) (func(), error)
}

type Ledger interface {
	Reserve(ctx context.Context, jobID string, estimatedCost float64, tag string) (budget.Reservation, error)
	RecordCorrection(ctx context.Context, jobID string, deltaUSD float64) error
}

type Bus interface {
	Publish(jobID string, ev domain.ProgressEvent)
}

type Invoker interface {
	Invoke(ctx context.Context, job domain.Job, agent domain.AgentProfile) (collab.AgentResult, error)
}

type Applier interface {
	Apply(ctx context.Context, jobID string, files []collab.GeneratedFile) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, job domain.Job, summary string, files []collab.GeneratedFile) (collab.PublishResult, error)
}

type Config struct {
	PollInterval      time.Duration
	RetryCeiling      int
	RosterTTL         time.Duration
	ProgressHeartbeat time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = routing.DefaultRetryCeiling
	}
	if c.RosterTTL <= 0 {
		c.RosterTTL = 30 * time.Second
	}
	if c.ProgressHeartbeat <= 0 {
		c.ProgressHeartbeat = 5 * time.Second
	}
	return c
}

type Engine struct {
	store     Store
	locks     Locker
	ledger    Ledger
	bus       Bus
	roster    *cache.Cache
	invoker   Invoker
	applier   Applier
	publisher Publisher
	cfg       Config
	logger    *log.Logger

	mu        sync.Mutex
	pollStop  context.CancelFunc
	pollDone  chan struct{}
	scanning  bool
	inFlight  map[string]bool
	wg        sync.WaitGroup
}

// PollStatus is the engine's current loop state, exposed to the API layer.
type PollStatus struct {
	Polling  bool          `json:"polling"`
	Interval time.Duration `json:"interval"`
	InFlight int           `json:"in_flight"`
}

func New(store Store, locks Locker, ledger Ledger, bus Bus, roster *cache.Cache, invoker Invoker, applier Applier, publisher Publisher, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:     store,
		locks:     locks,
		ledger:    ledger,
		bus:       bus,
		roster:    roster,
		invoker:   invoker,
		applier:   applier,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		inFlight:  make(map[string]bool),
	}
}

// StartPolling begins the timer-driven scan loop. Calling it while the loop
// is already running is a no-op. A non-positive interval uses the configured
// default.
func (e *Engine) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = e.cfg.PollInterval
	}
	e.mu.Lock()
	if e.pollStop != nil {
		e.mu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.pollStop = cancel
	e.pollDone = done
	e.cfg.PollInterval = interval
	e.mu.Unlock()

	e.logger.Printf("poll loop started interval=%s", interval)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				e.scan(pollCtx)
			}
		}
	}()
}

// StopPolling cancels the pending timer. Jobs already dispatched keep running.
func (e *Engine) StopPolling() {
	e.mu.Lock()
	stop := e.pollStop
	done := e.pollDone
	e.pollStop = nil
	e.pollDone = nil
	e.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
	e.logger.Printf("poll loop stopped")
}

func (e *Engine) Status() PollStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PollStatus{
		Polling:  e.pollStop != nil,
		Interval: e.cfg.PollInterval,
		InFlight: len(e.inFlight),
	}
}

// Wait blocks until all dispatched executions have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// scan dispatches every eligible approved job. Only one scan runs at a time;
// a tick that arrives while a scan is still running is skipped.
func (e *Engine) scan(ctx context.Context) {
	e.mu.Lock()
	if e.scanning {
		e.mu.Unlock()
		return
	}
	e.scanning = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.scanning = false
		e.mu.Unlock()
	}()

	jobs, err := e.store.ListJobsByStatus(ctx, domain.JobStatusApproved)
	if err != nil {
		e.logger.Printf("poll scan list approved jobs failed: %v", err)
		return
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		busy := e.inFlight[job.ID]
		e.mu.Unlock()
		if busy {
			continue
		}
		eligible, err := e.dependenciesMet(ctx, job)
		if err != nil {
			e.logger.Printf("dependency check for job %s failed: %v", job.ID, err)
			continue
		}
		if !eligible {
			continue
		}
		jobID := job.ID
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.ExecuteWorkOrder(ctx, jobID); err != nil {
				e.logger.Printf("job %s execution: %v", jobID, err)
			}
		}()
	}
}

// dependenciesMet re-reads every dependency from the store at dispatch time;
// dependency state changes externally, so cached copies cannot be trusted.
func (e *Engine) dependenciesMet(ctx context.Context, job domain.Job) (bool, error) {
	for _, depID := range job.DependsOn {
		dep, err := e.store.GetJob(ctx, depID)
		if err != nil {
			return false, fmt.Errorf("load dependency %s: %w", depID, err)
		}
		if dep.Status != domain.JobStatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// ExecuteWorkOrder drives one approved job through the full execution
// sequence. The target lock is released on every exit path.
func (e *Engine) ExecuteWorkOrder(ctx context.Context, jobID string) error {
	e.mu.Lock()
	if e.inFlight[jobID] {
		e.mu.Unlock()
		return fmt.Errorf("job %s is already in flight", jobID)
	}
	e.inFlight[jobID] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inFlight, jobID)
		e.mu.Unlock()
	}()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != domain.JobStatusApproved {
		return fmt.Errorf("job %s is %s, not approved", jobID, job.Status)
	}
	eligible, err := e.dependenciesMet(ctx, job)
	if err != nil {
		return err
	}
	if !eligible {
		stageErr := domain.StageError{
			Stage:        domain.StageDispatch,
			FailureClass: domain.FailureDependencyUnmet,
			Message:      "one or more dependencies have not completed",
		}
		e.logDecision(ctx, jobID, "dispatch_rejected", "dependency unmet at dispatch time", stageErr)
		return stageErr
	}

	release, err := e.locks.Acquire(ctx, job.TargetID, jobID)
	if err != nil {
		return fmt.Errorf("acquire target lock: %w", err)
	}
	defer release()

	res, err := e.ledger.Reserve(ctx, jobID, job.EstimatedCost, budget.TagReservation)
	if err != nil {
		return fmt.Errorf("budget reservation: %w", err)
	}
	if !res.Approved {
		stageErr := domain.StageError{
			Stage:        domain.StageBudget,
			FailureClass: domain.FailureBudgetRejected,
			Message:      res.Reason,
		}
		if res.Fatal {
			// Emergency kill: terminal, no retry.
			_ = e.store.SetJobError(ctx, jobID, stageErr)
			_ = e.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed)
			e.bus.Publish(jobID, domain.ProgressEvent{Type: domain.EventFailed, Percent: 0, Metadata: map[string]any{"reason": res.Reason}})
			e.logDecision(ctx, jobID, "budget_kill", "emergency threshold crossed, job failed", res)
			return stageErr
		}
		// Hard rejection is recoverable: the job stays approved and is
		// retried on a later poll.
		e.logDecision(ctx, jobID, "budget_deferred", "budget rejected, job left approved for retry", res)
		return stageErr
	}
	if res.Warning {
		e.logger.Printf("job %s reserved over soft cap: %s", jobID, res.Reason)
	}

	if err := e.store.UpdateJobStatus(ctx, jobID, domain.JobStatusInProgress); err != nil {
		return fmt.Errorf("mark in_progress: %w", err)
	}
	_ = e.store.ClearJobError(ctx, jobID)

	agent, stageErr := e.routeJob(ctx, job)
	if stageErr != nil {
		return e.failJob(ctx, job, *stageErr, 0)
	}

	e.bus.Publish(jobID, domain.ProgressEvent{Type: domain.EventStarted, Percent: 0, Metadata: map[string]any{"agent": agent.Name}})

	result, invokeErr := e.invokeWithHeartbeat(ctx, job, agent)
	actualCost := 0.0
	if invokeErr == nil {
		actualCost = result.CostUSD(agent)
	}
	if invokeErr != nil {
		return e.handleStageFailure(ctx, job, agent, domain.StageAgent, domain.FailureAgentInvocation, invokeErr, actualCost)
	}

	e.bus.Publish(jobID, domain.ProgressEvent{Type: domain.EventProgress, Percent: 92, Metadata: map[string]any{"stage": "apply"}})
	written, applyErr := e.applier.Apply(ctx, jobID, result.Files)
	if applyErr != nil {
		return e.handleStageFailure(ctx, job, agent, domain.StageApply, domain.FailureApply, applyErr, actualCost)
	}

	e.bus.Publish(jobID, domain.ProgressEvent{Type: domain.EventProgress, Percent: 96, Metadata: map[string]any{"stage": "publish", "files": len(written)}})
	published, pubErr := e.publisher.Publish(ctx, job, result.Summary, result.Files)
	if pubErr != nil {
		return e.handleStageFailure(ctx, job, agent, domain.StagePublish, domain.FailurePublish, pubErr, actualCost)
	}

	attempt := domain.Attempt{
		Number:    job.AttemptCount() + 1,
		Agent:     agent.Name,
		CostUSD:   actualCost,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.AppendAttempt(ctx, jobID, attempt); err != nil {
		e.logger.Printf("append attempt for job %s failed: %v", jobID, err)
	}
	e.recordCorrection(ctx, job, actualCost)

	if err := e.store.SetArtifactRefs(ctx, jobID, published.BranchRef, published.PullRequestRef); err != nil {
		e.logger.Printf("persist artifact refs for job %s failed: %v", jobID, err)
	}
	if err := e.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCompleted); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	e.bus.Publish(jobID, domain.ProgressEvent{Type: domain.EventCompleted, Percent: 100, Metadata: map[string]any{
		"branch":       published.BranchRef,
		"pull_request": published.PullRequestRef,
	}})
	e.logDecision(ctx, jobID, "job_completed", "all stages succeeded", map[string]any{
		"agent":        agent.Name,
		"cost_usd":     actualCost,
		"branch":       published.BranchRef,
		"pull_request": published.PullRequestRef,
	})
	e.logger.Printf("job %s completed agent=%s cost=%.4f pr=%s", jobID, agent.Name, actualCost, published.PullRequestRef)
	return nil
}

// routeJob selects the agent for the job's next attempt and persists the
// decision before any external call, so a crash mid-execution leaves an
// auditable trace of intent.
func (e *Engine) routeJob(ctx context.Context, job domain.Job) (domain.AgentProfile, *domain.StageError) {
	roster, err := e.activeRoster(ctx)
	if err != nil {
		return domain.AgentProfile{}, &domain.StageError{
			Stage:        domain.StageRouting,
			FailureClass: domain.FailureUnclassified,
			Message:      "load agent roster: " + err.Error(),
		}
	}

	attemptNumber := job.AttemptCount() + 1
	var decision domain.RoutingDecision
	if attemptNumber <= 1 {
		routed, err := routing.Route(job.ComplexityScore, roster)
		if err != nil {
			return domain.AgentProfile{}, &domain.StageError{
				Stage:        domain.StageRouting,
				FailureClass: domain.FailureUnclassified,
				Message:      err.Error(),
			}
		}
		decision = domain.RoutingDecision{
			Agent:           routed.Agent.Name,
			Reason:          routed.Reason,
			BelowConfidence: routed.BelowConfidence,
			RoutedAt:        time.Now().UTC(),
		}
		if err := e.store.SetRoutingDecision(ctx, job.ID, decision); err != nil {
			e.logger.Printf("persist routing decision for job %s failed: %v", job.ID, err)
		}
		e.logDecision(ctx, job.ID, "job_routed", routed.Reason, decision)
		return routed.Agent, nil
	}

	previous := ""
	if n := len(job.Attempts); n > 0 {
		previous = job.Attempts[n-1].Agent
	}
	step, err := routing.RetryStrategy(job.ComplexityScore, previous, attemptNumber, e.cfg.RetryCeiling, roster)
	if err != nil {
		return domain.AgentProfile{}, &domain.StageError{
			Stage:        domain.StageRouting,
			FailureClass: domain.FailureUnclassified,
			Message:      err.Error(),
		}
	}
	if step.ShouldEscalate {
		e.escalate(ctx, job, domain.TriggerExhaustedRetries, step.Reason)
		return domain.AgentProfile{}, &domain.StageError{
			Stage:        domain.StageRouting,
			FailureClass: domain.FailureAgentInvocation,
			Message:      step.Reason,
		}
	}
	decision = domain.RoutingDecision{
		Agent:    step.NextAgent.Name,
		Reason:   step.Reason,
		RoutedAt: time.Now().UTC(),
	}
	if err := e.store.SetRoutingDecision(ctx, job.ID, decision); err != nil {
		e.logger.Printf("persist routing decision for job %s failed: %v", job.ID, err)
	}
	e.logDecision(ctx, job.ID, "job_rerouted", step.Reason, decision)
	return step.NextAgent, nil
}

// invokeWithHeartbeat runs the agent call while publishing periodic progress
// events so stream subscribers see movement during a long generation.
func (e *Engine) invokeWithHeartbeat(ctx context.Context, job domain.Job, agent domain.AgentProfile) (collab.AgentResult, error) {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(e.cfg.ProgressHeartbeat)
		defer ticker.Stop()
		pct := 10
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				e.bus.Publish(job.ID, domain.ProgressEvent{Type: domain.EventProgress, Percent: pct, Metadata: map[string]any{"stage": "agent_invocation"}})
				if pct < 90 {
					pct += 10
				}
			}
		}
	}()
	defer close(stop)
	return e.invoker.Invoke(ctx, job, agent)
}

// handleStageFailure records the failed attempt and its cost, then either
// requeues the job as approved (retryable class under the ceiling) or
// escalates.
func (e *Engine) handleStageFailure(ctx context.Context, job domain.Job, agent domain.AgentProfile, stage domain.Stage, class domain.FailureClass, cause error, costUSD float64) error {
	attemptNumber := job.AttemptCount() + 1
	attempt := domain.Attempt{
		Number:       attemptNumber,
		Agent:        agent.Name,
		FailureClass: class,
		Error:        cause.Error(),
		CostUSD:      costUSD,
		Timestamp:    time.Now().UTC(),
	}
	if err := e.store.AppendAttempt(ctx, job.ID, attempt); err != nil {
		e.logger.Printf("append attempt for job %s failed: %v", job.ID, err)
	}
	e.recordCorrection(ctx, job, costUSD)

	stageErr := domain.StageError{
		Stage:        stage,
		FailureClass: class,
		Message:      cause.Error(),
	}
	if err := e.store.SetJobError(ctx, job.ID, stageErr); err != nil {
		e.logger.Printf("persist error for job %s failed: %v", job.ID, err)
	}

	if retryable(class) && attemptNumber < e.cfg.RetryCeiling {
		if err := e.store.UpdateJobStatus(ctx, job.ID, domain.JobStatusApproved); err != nil {
			return fmt.Errorf("requeue job: %w", err)
		}
		e.bus.Publish(job.ID, domain.ProgressEvent{Type: domain.EventProgress, Percent: 0, Metadata: map[string]any{
			"retry_scheduled": true,
			"attempt":         attemptNumber,
			"failure_class":   string(class),
		}})
		e.logDecision(ctx, job.ID, "job_requeued", "retryable failure below ceiling, job requeued", stageErr)
		e.logger.Printf("job %s attempt %d failed (%s), requeued", job.ID, attemptNumber, class)
		return stageErr
	}

	job.Attempts = append(job.Attempts, attempt)
	e.escalate(ctx, job, escalationTrigger(class), cause.Error())
	return e.failJob(ctx, job, stageErr, costUSD)
}

// failJob sets the job's terminal-ish state after escalation handling: the
// job lands in escalated when an open escalation record exists, failed
// otherwise. A resolved or abandoned escalation from an earlier execution
// must not resurrect the escalated status.
func (e *Engine) failJob(ctx context.Context, job domain.Job, stageErr domain.StageError, costUSD float64) error {
	status := domain.JobStatusFailed
	if esc, err := e.getEscalation(ctx, job.ID); err == nil && esc.Status == domain.EscalationOpen {
		status = domain.JobStatusEscalated
	}
	if err := e.store.SetJobError(ctx, job.ID, stageErr); err != nil {
		e.logger.Printf("persist error for job %s failed: %v", job.ID, err)
	}
	if err := e.store.UpdateJobStatus(ctx, job.ID, status); err != nil {
		return fmt.Errorf("mark %s: %w", status, err)
	}
	e.bus.Publish(job.ID, domain.ProgressEvent{Type: domain.EventFailed, Percent: 0, Metadata: map[string]any{
		"stage":         string(stageErr.Stage),
		"failure_class": string(stageErr.FailureClass),
	}})
	e.logDecision(ctx, job.ID, "job_"+string(status), stageErr.Message, stageErr)
	e.logger.Printf("job %s %s stage=%s class=%s", job.ID, status, stageErr.Stage, stageErr.FailureClass)
	return stageErr
}

// escalate creates the structured handoff record with the job's full failure
// history and ranked resolution options.
func (e *Engine) escalate(ctx context.Context, job domain.Job, trigger domain.EscalationTrigger, blocking string) {
	errs := make([]string, 0, len(job.Attempts))
	totalCost := 0.0
	for _, a := range job.Attempts {
		if a.Error != "" {
			errs = append(errs, fmt.Sprintf("attempt %d (%s): %s", a.Number, a.Agent, a.Error))
		}
		totalCost += a.CostUSD
	}
	esc := domain.Escalation{
		ID:      uuid.NewString(),
		JobID:   job.ID,
		Trigger: trigger,
		Context: domain.EscalationContext{
			Errors:       errs,
			CostSpentUSD: totalCost,
			Attempts:     job.Attempts,
			Blocking:     blocking,
		},
		Options: []domain.ResolutionOption{
			{Description: "retry with the most capable agent and a raised ceiling", EstimatedCostUSD: 2 * job.EstimatedCost, SuccessProbability: 0.6, Risk: domain.RiskMedium},
			{Description: "split the work order into smaller jobs and re-approve", EstimatedCostUSD: 1.5 * job.EstimatedCost, SuccessProbability: 0.8, Risk: domain.RiskLow},
			{Description: "abandon the work order", EstimatedCostUSD: 0, SuccessProbability: 1.0, Risk: domain.RiskHigh},
		},
		Status:    domain.EscalationOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateEscalation(ctx, esc); err != nil {
		e.logger.Printf("create escalation for job %s failed: %v", job.ID, err)
		return
	}
	e.logDecision(ctx, job.ID, "job_escalated", blocking, esc)
}

// getEscalation indirects through the Store when it also implements the
// escalation read; the narrow interface keeps test fakes small.
func (e *Engine) getEscalation(ctx context.Context, jobID string) (domain.Escalation, error) {
	reader, ok := e.store.(interface {
		GetEscalationByJob(ctx context.Context, jobID string) (domain.Escalation, error)
	})
	if !ok {
		return domain.Escalation{}, errors.New("store does not expose escalations")
	}
	return reader.GetEscalationByJob(ctx, jobID)
}

// recordCorrection reconciles the ledger after the fact: the reservation
// recorded the estimate, the correction records the signed difference to the
// actual cost. The ledger is eventually exact.
func (e *Engine) recordCorrection(ctx context.Context, job domain.Job, actualUSD float64) {
	delta := actualUSD - job.EstimatedCost
	if delta == 0 {
		return
	}
	if err := e.ledger.RecordCorrection(ctx, job.ID, delta); err != nil {
		e.logger.Printf("budget correction for job %s failed: %v", job.ID, err)
	}
}

// activeRoster reads the active-agent roster through the short-TTL cache.
func (e *Engine) activeRoster(ctx context.Context) ([]domain.AgentProfile, error) {
	value, err := e.roster.GetOrFetch(ctx, rosterCacheKey, e.cfg.RosterTTL, func(ctx context.Context) (any, error) {
		return e.store.ListActiveAgents(ctx)
	})
	if err != nil {
		return nil, err
	}
	roster, ok := value.([]domain.AgentProfile)
	if !ok {
		return nil, fmt.Errorf("unexpected roster cache value %T", value)
	}
	return roster, nil
}

// InvalidateRoster drops the cached roster; callers invoke it after any
// agent write so the next routing decision sees the change.
func (e *Engine) InvalidateRoster() {
	e.roster.Invalidate(rosterCacheKey)
}

func retryable(class domain.FailureClass) bool {
	switch class {
	case domain.FailureAgentInvocation, domain.FailureApply:
		return true
	default:
		// publish_error already consumed its single transient retry inside
		// the publisher; at this level it escalates.
		return false
	}
}

func escalationTrigger(class domain.FailureClass) domain.EscalationTrigger {
	switch class {
	case domain.FailureBudgetRejected:
		return domain.TriggerBudgetOverrun
	case domain.FailureApply:
		return domain.TriggerIrreconcilable
	case domain.FailurePublish:
		return domain.TriggerTechnicalBlocker
	default:
		return domain.TriggerExhaustedRetries
	}
}

func (e *Engine) logDecision(ctx context.Context, jobID, action, reason string, payload any) {
	_ = e.store.LogDecision(ctx, domain.DecisionLog{
		JobID:   jobID,
		Actor:   engineActor,
		Action:  action,
		Reason:  reason,
		Payload: mustJSON(payload),
	})
}

func mustJSON(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return payload
}
