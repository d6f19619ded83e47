package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"foundry/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	instructions TEXT NOT NULL,
	target_id TEXT NOT NULL,
	status TEXT NOT NULL,
	complexity_score REAL NOT NULL DEFAULT 0,
	estimated_cost REAL NOT NULL DEFAULT 0,
	depends_on TEXT NOT NULL DEFAULT '[]',
	selected_agent TEXT NOT NULL DEFAULT '',
	routing_reason TEXT NOT NULL DEFAULT '',
	routing_below_confidence INTEGER NOT NULL DEFAULT 0,
	routed_at INTEGER NULL,
	attempts TEXT NOT NULL DEFAULT '[]',
	branch_ref TEXT NOT NULL DEFAULT '',
	pull_request_ref TEXT NOT NULL DEFAULT '',
	error_stage TEXT NOT NULL DEFAULT '',
	error_class TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_target ON jobs(target_id, created_at);

CREATE TABLE IF NOT EXISTS agents (
	name TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	complexity_threshold REAL NOT NULL,
	input_cost_per_ktok REAL NOT NULL DEFAULT 0,
	output_cost_per_ktok REAL NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cost_records (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	amount_usd REAL NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_records_time ON cost_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_cost_records_job ON cost_records(job_id);

CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	options TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	resolution TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	resolved_at INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_escalations_job ON escalations(job_id, created_at);

CREATE TABLE IF NOT EXISTS decision_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	reason TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_job ON decision_log(job_id, created_at);
`

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const jobColumns = `id, title, instructions, target_id, status, complexity_score, estimated_cost,
	depends_on, selected_agent, routing_reason, routing_below_confidence, routed_at, attempts,
	branch_ref, pull_request_ref, error_stage, error_class, error_message, created_at, updated_at`

func (s *Store) CreateJob(ctx context.Context, job domain.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	deps, err := json.Marshal(emptyIfNil(job.DependsOn))
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs(
			id, title, instructions, target_id, status, complexity_score, estimated_cost,
			depends_on, attempts, created_at, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		job.ID, job.Title, job.Instructions, job.TargetID, string(job.Status),
		job.ComplexityScore, job.EstimatedCost, string(deps),
		job.CreatedAt.Unix(), job.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]domain.Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
}

// ListJobsByStatus returns jobs in the given status ordered by creation time,
// oldest first, so the poll loop dispatches in submission order.
func (s *Store) ListJobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	return s.queryJobs(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC`,
		string(status),
	)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var j domain.Job
	var status, deps, attempts string
	var belowConfidence int
	var routedAt sql.NullInt64
	var selectedAgent, routingReason string
	var errStage, errClass, errMessage string
	var created, updated int64
	if err := row.Scan(
		&j.ID, &j.Title, &j.Instructions, &j.TargetID, &status, &j.ComplexityScore, &j.EstimatedCost,
		&deps, &selectedAgent, &routingReason, &belowConfidence, &routedAt, &attempts,
		&j.BranchRef, &j.PullRequestRef, &errStage, &errClass, &errMessage, &created, &updated,
	); err != nil {
		return domain.Job{}, err
	}
	j.Status = domain.JobStatus(status)
	if err := json.Unmarshal([]byte(deps), &j.DependsOn); err != nil {
		return domain.Job{}, fmt.Errorf("decode dependencies: %w", err)
	}
	if err := json.Unmarshal([]byte(attempts), &j.Attempts); err != nil {
		return domain.Job{}, fmt.Errorf("decode attempts: %w", err)
	}
	if selectedAgent != "" {
		j.Routing = &domain.RoutingDecision{
			Agent:           selectedAgent,
			Reason:          routingReason,
			BelowConfidence: belowConfidence != 0,
		}
		if routedAt.Valid {
			j.Routing.RoutedAt = unixToTime(routedAt.Int64)
		}
	}
	if errClass != "" {
		j.LastError = &domain.StageError{
			Stage:        domain.Stage(errStage),
			FailureClass: domain.FailureClass(errClass),
			Message:      errMessage,
		}
	}
	j.CreatedAt = unixToTime(created)
	j.UpdatedAt = unixToTime(updated)
	return j, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireRow(res, jobID)
}

// SetRoutingDecision writes only the routing fields of the job record so a
// concurrent writer of unrelated metadata is never clobbered.
func (s *Store) SetRoutingDecision(ctx context.Context, jobID string, d domain.RoutingDecision) error {
	below := 0
	if d.BelowConfidence {
		below = 1
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
		SET selected_agent = ?, routing_reason = ?, routing_below_confidence = ?, routed_at = ?, updated_at = ?
		WHERE id = ?`,
		d.Agent, d.Reason, below, d.RoutedAt.UTC().Unix(), time.Now().UTC().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set routing decision: %w", err)
	}
	return requireRow(res, jobID)
}

// AppendAttempt adds one attempt record inside a transaction so concurrent
// appends cannot lose entries.
func (s *Store) AppendAttempt(ctx context.Context, jobID string, attempt domain.Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx append attempt: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT attempts FROM jobs WHERE id = ?`, jobID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return fmt.Errorf("read attempts: %w", err)
	}
	var attempts []domain.Attempt
	if err := json.Unmarshal([]byte(raw), &attempts); err != nil {
		return fmt.Errorf("decode attempts: %w", err)
	}
	attempts = append(attempts, attempt)
	next, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("encode attempts: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET attempts = ?, updated_at = ? WHERE id = ?`,
		string(next), time.Now().UTC().Unix(), jobID,
	); err != nil {
		return fmt.Errorf("write attempts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append attempt: %w", err)
	}
	return nil
}

func (s *Store) SetArtifactRefs(ctx context.Context, jobID, branchRef, pullRequestRef string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET branch_ref = ?, pull_request_ref = ?, updated_at = ? WHERE id = ?`,
		branchRef, pullRequestRef, time.Now().UTC().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set artifact refs: %w", err)
	}
	return requireRow(res, jobID)
}

func (s *Store) SetJobError(ctx context.Context, jobID string, stageErr domain.StageError) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET error_stage = ?, error_class = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(stageErr.Stage), string(stageErr.FailureClass), stageErr.Message,
		time.Now().UTC().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set job error: %w", err)
	}
	return requireRow(res, jobID)
}

func (s *Store) ClearJobError(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET error_stage = '', error_class = '', error_message = '', updated_at = ? WHERE id = ?`,
		time.Now().UTC().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("clear job error: %w", err)
	}
	return requireRow(res, jobID)
}

func (s *Store) UpsertAgent(ctx context.Context, agent domain.AgentProfile) error {
	active := 0
	if agent.Active {
		active = 1
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO agents(name, provider, complexity_threshold, input_cost_per_ktok, output_cost_per_ktok, active, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			provider = excluded.provider,
			complexity_threshold = excluded.complexity_threshold,
			input_cost_per_ktok = excluded.input_cost_per_ktok,
			output_cost_per_ktok = excluded.output_cost_per_ktok,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		agent.Name, agent.Provider, agent.ComplexityThreshold,
		agent.InputCostPerKTok, agent.OutputCostPerKTok, active, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// ListActiveAgents returns the routing roster ordered by threshold ascending,
// the order the cheapest-capable scan wants.
func (s *Store) ListActiveAgents(ctx context.Context) ([]domain.AgentProfile, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, provider, complexity_threshold, input_cost_per_ktok, output_cost_per_ktok, active, updated_at
		FROM agents WHERE active = 1
		ORDER BY complexity_threshold ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AgentProfile, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return result, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]domain.AgentProfile, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, provider, complexity_threshold, input_cost_per_ktok, output_cost_per_ktok, active, updated_at
		FROM agents ORDER BY complexity_threshold ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AgentProfile, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return result, nil
}

func scanAgent(row rowScanner) (domain.AgentProfile, error) {
	var a domain.AgentProfile
	var active int
	var updated int64
	if err := row.Scan(
		&a.Name, &a.Provider, &a.ComplexityThreshold,
		&a.InputCostPerKTok, &a.OutputCostPerKTok, &active, &updated,
	); err != nil {
		return domain.AgentProfile{}, err
	}
	a.Active = active != 0
	a.UpdatedAt = unixToTime(updated)
	return a, nil
}

func (s *Store) InsertCostRecord(ctx context.Context, record domain.CostRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cost_records(id, job_id, tag, amount_usd, recorded_at)
		VALUES(?, ?, ?, ?, ?)`,
		record.ID, record.JobID, record.Tag, record.AmountUSD, record.RecordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert cost record: %w", err)
	}
	return nil
}

// SumCostSince returns the signed sum of all cost records recorded at or
// after the given instant. Correction records carry negative amounts, so the
// sum is the eventually-exact spend for the window.
func (s *Store) SumCostSince(ctx context.Context, since time.Time) (float64, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(amount_usd), 0) FROM cost_records WHERE recorded_at >= ?`,
		since.UTC().Unix(),
	)
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum cost records: %w", err)
	}
	return total, nil
}

func (s *Store) CreateEscalation(ctx context.Context, esc domain.Escalation) error {
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = time.Now().UTC()
	}
	if esc.Status == "" {
		esc.Status = domain.EscalationOpen
	}
	contextJSON, err := json.Marshal(esc.Context)
	if err != nil {
		return fmt.Errorf("marshal escalation context: %w", err)
	}
	optionsJSON, err := json.Marshal(emptyIfNilOptions(esc.Options))
	if err != nil {
		return fmt.Errorf("marshal escalation options: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO escalations(id, job_id, trigger_type, context, options, status, resolution, created_at)
		VALUES(?, ?, ?, ?, ?, ?, '', ?)`,
		esc.ID, esc.JobID, string(esc.Trigger), string(contextJSON), string(optionsJSON),
		string(esc.Status), esc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create escalation: %w", err)
	}
	return nil
}

func (s *Store) GetEscalationByJob(ctx context.Context, jobID string) (domain.Escalation, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, job_id, trigger_type, context, options, status, resolution, created_at, resolved_at
		FROM escalations WHERE job_id = ?
		ORDER BY created_at DESC LIMIT 1`,
		jobID,
	)
	esc, err := scanEscalation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Escalation{}, fmt.Errorf("escalation for job %s: %w", jobID, ErrNotFound)
		}
		return domain.Escalation{}, fmt.Errorf("get escalation: %w", err)
	}
	return esc, nil
}

func (s *Store) ResolveEscalation(ctx context.Context, escalationID string, status domain.EscalationStatus, resolution string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE escalations SET status = ?, resolution = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		string(status), resolution, time.Now().UTC().Unix(), escalationID, string(domain.EscalationOpen),
	)
	if err != nil {
		return fmt.Errorf("resolve escalation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve escalation affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("escalation %s is not open: %w", escalationID, ErrNotFound)
	}
	return nil
}

func scanEscalation(row rowScanner) (domain.Escalation, error) {
	var e domain.Escalation
	var trigger, contextRaw, optionsRaw, status string
	var created int64
	var resolved sql.NullInt64
	if err := row.Scan(
		&e.ID, &e.JobID, &trigger, &contextRaw, &optionsRaw, &status, &e.Resolution, &created, &resolved,
	); err != nil {
		return domain.Escalation{}, err
	}
	e.Trigger = domain.EscalationTrigger(trigger)
	e.Status = domain.EscalationStatus(status)
	if err := json.Unmarshal([]byte(contextRaw), &e.Context); err != nil {
		return domain.Escalation{}, fmt.Errorf("decode escalation context: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsRaw), &e.Options); err != nil {
		return domain.Escalation{}, fmt.Errorf("decode escalation options: %w", err)
	}
	e.CreatedAt = unixToTime(created)
	e.ResolvedAt = int64ToTimePtr(resolved)
	return e, nil
}

func (s *Store) LogDecision(ctx context.Context, entry domain.DecisionLog) error {
	payload := string(entry.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO decision_log(job_id, actor, action, reason, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		entry.JobID, entry.Actor, entry.Action, entry.Reason, payload, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

func (s *Store) ListJobDecisions(ctx context.Context, jobID string, limit int) ([]domain.DecisionLog, error) {
	if limit <= 0 {
		limit = 300
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, actor, action, reason, payload, created_at
		FROM decision_log
		WHERE job_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list job decisions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DecisionLog, 0, limit)
	for rows.Next() {
		var item domain.DecisionLog
		var payload string
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.JobID, &item.Actor, &item.Action, &item.Reason, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		item.Payload = []byte(payload)
		item.CreatedAt = unixToTime(createdAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return result, nil
}

func (s *Store) ListRecentDecisions(ctx context.Context, limit int) ([]domain.DecisionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, actor, action, reason, payload, created_at
		FROM decision_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent decisions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DecisionLog, 0, limit)
	for rows.Next() {
		var item domain.DecisionLog
		var payload string
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.JobID, &item.Actor, &item.Action, &item.Reason, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		item.Payload = []byte(payload)
		item.CreatedAt = unixToTime(createdAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return result, nil
}

func requireRow(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func int64ToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func emptyIfNilOptions(v []domain.ResolutionOption) []domain.ResolutionOption {
	if v == nil {
		return []domain.ResolutionOption{}
	}
	return v
}
