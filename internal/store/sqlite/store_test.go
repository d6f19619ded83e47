package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"foundry/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "foundry_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestJobLifecycleAndFieldLevelUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	jobID := uuid.NewString()
	if err := store.CreateJob(ctx, domain.Job{
		ID:              jobID,
		Title:           "add retry to fetcher",
		Instructions:    "wrap the fetch call with bounded retries",
		TargetID:        "proj-alpha",
		Status:          domain.JobStatusApproved,
		ComplexityScore: 0.4,
		EstimatedCost:   2.5,
		DependsOn:       []string{"dep-1"},
	}); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := store.SetRoutingDecision(ctx, jobID, domain.RoutingDecision{
		Agent:    "haiku-small",
		Reason:   "cheapest capable",
		RoutedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("set routing decision: %v", err)
	}
	if err := store.SetArtifactRefs(ctx, jobID, "foundry/job-1", "https://example.com/pr/7"); err != nil {
		t.Fatalf("set artifact refs: %v", err)
	}
	if err := store.SetJobError(ctx, jobID, domain.StageError{
		Stage:        domain.StageAgent,
		FailureClass: domain.FailureAgentInvocation,
		Message:      "provider timeout",
	}); err != nil {
		t.Fatalf("set job error: %v", err)
	}

	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Routing == nil || job.Routing.Agent != "haiku-small" {
		t.Fatalf("routing decision not persisted: %+v", job.Routing)
	}
	if job.BranchRef != "foundry/job-1" || job.PullRequestRef != "https://example.com/pr/7" {
		t.Fatalf("artifact refs not persisted: %q %q", job.BranchRef, job.PullRequestRef)
	}
	if job.LastError == nil || job.LastError.FailureClass != domain.FailureAgentInvocation {
		t.Fatalf("job error not persisted: %+v", job.LastError)
	}
	if len(job.DependsOn) != 1 || job.DependsOn[0] != "dep-1" {
		t.Fatalf("dependencies not persisted: %v", job.DependsOn)
	}

	// The error write must not have clobbered routing fields.
	if job.Routing.Reason != "cheapest capable" {
		t.Fatalf("routing reason clobbered: %q", job.Routing.Reason)
	}

	if err := store.ClearJobError(ctx, jobID); err != nil {
		t.Fatalf("clear job error: %v", err)
	}
	job, err = store.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("get job after clear: %v", err)
	}
	if job.LastError != nil {
		t.Fatalf("expected error cleared, got %+v", job.LastError)
	}
}

func TestAppendAttemptAccumulates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	jobID := uuid.NewString()
	if err := store.CreateJob(ctx, domain.Job{
		ID:           jobID,
		Title:        "t",
		Instructions: "i",
		TargetID:     "proj",
		Status:       domain.JobStatusApproved,
	}); err != nil {
		t.Fatalf("create job: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := store.AppendAttempt(ctx, jobID, domain.Attempt{
			Number:       i,
			Agent:        "sonnet-mid",
			FailureClass: domain.FailureApply,
			Error:        "conflicting working tree",
			CostUSD:      0.25,
			Timestamp:    time.Now().UTC(),
		}); err != nil {
			t.Fatalf("append attempt %d: %v", i, err)
		}
	}

	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.AttemptCount() != 3 {
		t.Fatalf("attempt count=%d want=3", job.AttemptCount())
	}
	if job.Attempts[2].Number != 3 {
		t.Fatalf("attempt order broken: %+v", job.Attempts)
	}
}

func TestListJobsByStatusOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()
	if err := store.CreateJob(ctx, domain.Job{
		ID: "job-new", Title: "n", Instructions: "n", TargetID: "p",
		Status: domain.JobStatusApproved, CreatedAt: newer, UpdatedAt: newer,
	}); err != nil {
		t.Fatalf("create newer job: %v", err)
	}
	if err := store.CreateJob(ctx, domain.Job{
		ID: "job-old", Title: "o", Instructions: "o", TargetID: "p",
		Status: domain.JobStatusApproved, CreatedAt: older, UpdatedAt: older,
	}); err != nil {
		t.Fatalf("create older job: %v", err)
	}
	if err := store.CreateJob(ctx, domain.Job{
		ID: "job-other", Title: "x", Instructions: "x", TargetID: "p",
		Status: domain.JobStatusPending,
	}); err != nil {
		t.Fatalf("create pending job: %v", err)
	}

	jobs, err := store.ListJobsByStatus(ctx, domain.JobStatusApproved)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("approved count=%d want=2", len(jobs))
	}
	if jobs[0].ID != "job-old" || jobs[1].ID != "job-new" {
		t.Fatalf("order wrong: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestCostSumWithCorrection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	since := time.Now().UTC().Add(-time.Minute)
	records := []domain.CostRecord{
		{ID: uuid.NewString(), JobID: "j1", Tag: "reservation", AmountUSD: 5},
		{ID: uuid.NewString(), JobID: "j2", Tag: "reservation", AmountUSD: 3},
		{ID: uuid.NewString(), JobID: "j1", Tag: "correction", AmountUSD: -1.5},
	}
	for _, rec := range records {
		if err := store.InsertCostRecord(ctx, rec); err != nil {
			t.Fatalf("insert cost record: %v", err)
		}
	}

	total, err := store.SumCostSince(ctx, since)
	if err != nil {
		t.Fatalf("sum cost: %v", err)
	}
	if total != 6.5 {
		t.Fatalf("total=%v want=6.5", total)
	}

	total, err = store.SumCostSince(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("sum future window: %v", err)
	}
	if total != 0 {
		t.Fatalf("future window total=%v want=0", total)
	}
}

func TestAgentsUpsertAndActiveOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	agents := []domain.AgentProfile{
		{Name: "opus-large", Provider: "anthropic", ComplexityThreshold: 0.95, InputCostPerKTok: 15, Active: true},
		{Name: "haiku-small", Provider: "anthropic", ComplexityThreshold: 0.3, InputCostPerKTok: 0.8, Active: true},
		{Name: "sonnet-mid", Provider: "anthropic", ComplexityThreshold: 0.7, InputCostPerKTok: 3, Active: true},
		{Name: "retired", Provider: "openai", ComplexityThreshold: 0.5, Active: false},
	}
	for _, a := range agents {
		if err := store.UpsertAgent(ctx, a); err != nil {
			t.Fatalf("upsert %s: %v", a.Name, err)
		}
	}

	active, err := store.ListActiveAgents(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("active count=%d want=3", len(active))
	}
	if active[0].Name != "haiku-small" || active[1].Name != "sonnet-mid" || active[2].Name != "opus-large" {
		t.Fatalf("threshold ordering wrong: %s %s %s", active[0].Name, active[1].Name, active[2].Name)
	}

	// Deactivate via upsert and confirm the roster shrinks.
	if err := store.UpsertAgent(ctx, domain.AgentProfile{
		Name: "opus-large", Provider: "anthropic", ComplexityThreshold: 0.95, Active: false,
	}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err = store.ListActiveAgents(ctx)
	if err != nil {
		t.Fatalf("list active after deactivate: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active count=%d want=2", len(active))
	}
}

func TestEscalationCreateResolve(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	escID := uuid.NewString()
	if err := store.CreateEscalation(ctx, domain.Escalation{
		ID:      escID,
		JobID:   "job-9",
		Trigger: domain.TriggerExhaustedRetries,
		Context: domain.EscalationContext{
			Errors:       []string{"provider timeout", "provider timeout"},
			CostSpentUSD: 1.25,
			Attempts: []domain.Attempt{
				{Number: 1, Agent: "haiku-small", FailureClass: domain.FailureAgentInvocation},
			},
		},
		Options: []domain.ResolutionOption{
			{Description: "retry with larger agent", EstimatedCostUSD: 4, SuccessProbability: 0.7, Risk: domain.RiskLow},
			{Description: "abandon the work order", EstimatedCostUSD: 0, SuccessProbability: 1, Risk: domain.RiskMedium},
		},
	}); err != nil {
		t.Fatalf("create escalation: %v", err)
	}

	esc, err := store.GetEscalationByJob(ctx, "job-9")
	if err != nil {
		t.Fatalf("get escalation: %v", err)
	}
	if esc.Status != domain.EscalationOpen {
		t.Fatalf("status=%s want=open", esc.Status)
	}
	if len(esc.Options) != 2 || esc.Options[0].Risk != domain.RiskLow {
		t.Fatalf("options not round-tripped: %+v", esc.Options)
	}
	if esc.Context.CostSpentUSD != 1.25 || len(esc.Context.Attempts) != 1 {
		t.Fatalf("context not round-tripped: %+v", esc.Context)
	}

	if err := store.ResolveEscalation(ctx, escID, domain.EscalationResolved, "retry with larger agent"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := store.ResolveEscalation(ctx, escID, domain.EscalationResolved, "again"); err == nil {
		t.Fatalf("expected second resolve to fail")
	} else if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error class: %v", err)
	}
}

func TestGetMissingJobIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetJob(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
