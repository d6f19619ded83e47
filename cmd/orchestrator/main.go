package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"foundry/internal/budget"
	"foundry/internal/cache"
	"foundry/internal/collab"
	"foundry/internal/config"
	"foundry/internal/domain"
	"foundry/internal/events"
	"foundry/internal/locker"
	"foundry/internal/orchestrator"
	"foundry/internal/routing"
	sqlitestore "foundry/internal/store/sqlite"
)

type app struct {
	cfg    config.Config
	store  *sqlitestore.Store
	engine *orchestrator.Engine
	ledger *budget.Ledger
	bus    *events.Bus
}

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: ~/.foundry/config.toml)")
	addrFlag := flag.String("addr", "", "http listen address override")
	dbPathFlag := flag.String("db", "", "sqlite database path override")
	workspaceFlag := flag.String("workspace", "", "workspace root for applied files override")
	demo := flag.Bool("demo", false, "seed a demo roster and sample work orders on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	addr := firstNonEmpty(*addrFlag, cfg.Addr, ":8092")
	dbPath := filepath.Clean(firstNonEmpty(*dbPathFlag, cfg.DBPath, "data/foundry.db"))
	workspaceRoot := filepath.Clean(firstNonEmpty(*workspaceFlag, cfg.WorkspaceRoot, "workspace"))

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("create db directory: %v", err)
	}

	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		log.Fatalf("open sqlite store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate sqlite: %v", err)
	}

	locks := locker.New(log.Default())
	bus := events.New(
		intOrDefault(cfg.Events.BufferSize, 64),
		durationMS(cfg.Events.GraceDelayMS, 2*time.Second),
	)
	roster := cache.New(time.Minute)
	defer roster.Stop()
	ledger := budget.New(store, budget.Caps{
		DailySoftUSD:        cfg.Budget.DailySoftUSD,
		DailyHardUSD:        cfg.Budget.DailyHardUSD,
		DailyEmergencyUSD:   cfg.Budget.DailyEmergencyUSD,
		MonthlySoftUSD:      cfg.Budget.MonthlySoftUSD,
		MonthlyHardUSD:      cfg.Budget.MonthlyHardUSD,
		MonthlyEmergencyUSD: cfg.Budget.MonthlyEmergencyUSD,
	}, log.Default())

	invoker := collab.NewCLIInvoker(
		cfg.Agent.Binary,
		firstNonEmpty(cfg.Agent.Workdir, workspaceRoot),
		durationMS(cfg.Agent.TimeoutMS, 8*time.Minute),
		log.Default(),
	)
	applier, err := collab.NewApplier(workspaceRoot)
	if err != nil {
		log.Fatalf("create applier: %v", err)
	}
	publisher, err := buildPublisher(ctx, cfg.GitHub)
	if err != nil {
		log.Fatalf("create publisher: %v", err)
	}

	engCfg := orchestrator.Config{
		PollInterval:      durationMS(cfg.Engine.PollIntervalMS, 5*time.Second),
		RetryCeiling:      intOrDefault(cfg.Engine.RetryCeiling, routing.DefaultRetryCeiling),
		RosterTTL:         durationMS(cfg.Engine.RosterTTLMS, 30*time.Second),
		ProgressHeartbeat: durationMS(cfg.Engine.ProgressHeartbeatMS, 5*time.Second),
	}
	engine := orchestrator.New(store, locks, ledger, bus, roster, invoker, applier, publisher, engCfg, log.Default())

	if err := seedRosterFromEnv(ctx, store, engine); err != nil {
		log.Fatalf("seed agent roster: %v", err)
	}
	if *demo {
		if err := bootstrapDemo(ctx, store, engine); err != nil {
			log.Printf("demo bootstrap failed: %v", err)
		}
	}

	engine.StartPolling(ctx, engCfg.PollInterval)
	defer engine.StopPolling()

	a := &app{
		cfg:    cfg,
		store:  store,
		engine: engine,
		ledger: ledger,
		bus:    bus,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/budget", a.handleBudget)
	mux.HandleFunc("/agents", a.handleAgents)
	mux.HandleFunc("/jobs", a.handleJobs)
	mux.HandleFunc("/jobs/", a.handleJobByID)
	mux.HandleFunc("/escalations/", a.handleEscalationByJob)
	mux.HandleFunc("/poll/start", a.handlePollStart)
	mux.HandleFunc("/poll/stop", a.handlePollStop)

	server := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("foundry started addr=%s db=%s workspace=%s", addr, dbPath, workspaceRoot)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
	engine.Wait()
}

// buildPublisher returns the GitHub publisher when a token is configured and
// a local dry-run publisher otherwise, so the engine runs end to end without
// credentials.
func buildPublisher(ctx context.Context, gh config.GitHubConfig) (orchestrator.Publisher, error) {
	token := gh.Token()
	if token == "" {
		log.Printf("no github token configured, publishing in dry-run mode")
		return dryRunPublisher{}, nil
	}
	return collab.NewGitHubPublisher(ctx, token, gh.Owner, gh.Repo, gh.BaseBranch, log.Default())
}

// dryRunPublisher fabricates local refs instead of talking to a code host.
type dryRunPublisher struct{}

func (dryRunPublisher) Publish(_ context.Context, job domain.Job, _ string, files []collab.GeneratedFile) (collab.PublishResult, error) {
	short := job.ID
	if len(short) > 8 {
		short = short[:8]
	}
	log.Printf("dry-run publish job=%s files=%d", job.ID, len(files))
	return collab.PublishResult{
		BranchRef:      "local/" + short,
		PullRequestRef: "dry-run://" + job.ID,
	}, nil
}

func seedRosterFromEnv(ctx context.Context, store *sqlitestore.Store, engine *orchestrator.Engine) error {
	agents, err := routing.LoadRosterFromEnv()
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		return nil
	}
	for _, agent := range agents {
		if err := store.UpsertAgent(ctx, agent); err != nil {
			return fmt.Errorf("upsert agent %s: %w", agent.Name, err)
		}
	}
	engine.InvalidateRoster()
	log.Printf("seeded %d agents from roster file", len(agents))
	return nil
}

func bootstrapDemo(ctx context.Context, store *sqlitestore.Store, engine *orchestrator.Engine) error {
	agents := []domain.AgentProfile{
		{Name: "haiku-worker", Provider: "anthropic", ComplexityThreshold: 0.3, InputCostPerKTok: 0.001, OutputCostPerKTok: 0.005, Active: true},
		{Name: "sonnet-worker", Provider: "anthropic", ComplexityThreshold: 0.7, InputCostPerKTok: 0.003, OutputCostPerKTok: 0.015, Active: true},
		{Name: "opus-worker", Provider: "anthropic", ComplexityThreshold: 1.0, InputCostPerKTok: 0.015, OutputCostPerKTok: 0.075, Active: true},
	}
	for _, agent := range agents {
		if err := store.UpsertAgent(ctx, agent); err != nil {
			return err
		}
	}
	engine.InvalidateRoster()

	now := time.Now().UTC()
	first := domain.Job{
		ID:              uuid.NewString(),
		Title:           "Add request logging middleware",
		Instructions:    "Wrap all HTTP handlers with a middleware that logs method, path and latency.",
		TargetID:        "demo-service",
		Status:          domain.JobStatusApproved,
		ComplexityScore: 0.2,
		EstimatedCost:   0.25,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	second := domain.Job{
		ID:              uuid.NewString(),
		Title:           "Refactor storage layer behind an interface",
		Instructions:    "Extract the storage calls into an interface and add an in-memory implementation for tests.",
		TargetID:        "demo-service",
		Status:          domain.JobStatusApproved,
		ComplexityScore: 0.8,
		EstimatedCost:   1.5,
		DependsOn:       []string{first.ID},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, job := range []domain.Job{first, second} {
		if err := store.CreateJob(ctx, job); err != nil {
			return err
		}
	}
	log.Printf("demo bootstrap: %d agents, 2 work orders on target demo-service", len(agents))
	return nil
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := a.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"polling":          status.Polling,
		"poll_interval_ms": status.Interval.Milliseconds(),
		"in_flight":        status.InFlight,
	})
}

func (a *app) handleBudget(w http.ResponseWriter, r *http.Request) {
	status, err := a.ledger.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *app) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := a.store.ListAgents(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, agents)
	case http.MethodPost:
		var req domain.AgentProfile
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		if req.ComplexityThreshold <= 0 || req.ComplexityThreshold > 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("complexity_threshold must be in (0,1]"))
			return
		}
		if err := a.store.UpsertAgent(r.Context(), req); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.engine.InvalidateRoster()
		writeJSON(w, http.StatusCreated, req)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *app) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		var (
			jobs []domain.Job
			err  error
		)
		if status == "" {
			jobs, err = a.store.ListJobs(r.Context())
		} else {
			jobs, err = a.store.ListJobsByStatus(r.Context(), domain.JobStatus(status))
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	case http.MethodPost:
		var req struct {
			Title           string   `json:"title"`
			Instructions    string   `json:"instructions"`
			TargetID        string   `json:"target_id"`
			ComplexityScore float64  `json:"complexity_score"`
			EstimatedCost   float64  `json:"estimated_cost_usd"`
			DependsOn       []string `json:"depends_on"`
			Approve         bool     `json:"approve"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
			return
		}
		if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.TargetID) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("title and target_id are required"))
			return
		}
		if req.ComplexityScore < 0 || req.ComplexityScore > 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("complexity_score must be in [0,1]"))
			return
		}
		now := time.Now().UTC()
		job := domain.Job{
			ID:              uuid.NewString(),
			Title:           req.Title,
			Instructions:    req.Instructions,
			TargetID:        req.TargetID,
			Status:          domain.JobStatusPending,
			ComplexityScore: req.ComplexityScore,
			EstimatedCost:   req.EstimatedCost,
			DependsOn:       req.DependsOn,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if req.Approve {
			job.Status = domain.JobStatusApproved
		}
		if err := a.store.CreateJob(r.Context(), job); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *app) handleJobByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/jobs/")
	parts := strings.Split(trimmed, "/")
	jobID := parts[0]
	if jobID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id is required"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		job, err := a.store.GetJob(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	}

	action := parts[1]
	switch action {
	case "approve":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		job, err := a.store.GetJob(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if job.Status != domain.JobStatusPending {
			writeError(w, http.StatusConflict, fmt.Errorf("job is %s, only pending jobs can be approved", job.Status))
			return
		}
		if err := a.store.UpdateJobStatus(r.Context(), jobID, domain.JobStatusApproved); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "approved", "job_id": jobID})
	case "execute":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// Manual trigger runs in the background; the caller watches the
		// event stream or polls the job record.
		go func() {
			if err := a.engine.ExecuteWorkOrder(context.Background(), jobID); err != nil {
				log.Printf("manual execution of %s: %v", jobID, err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "dispatched", "job_id": jobID})
	case "events":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a.streamEvents(w, r, jobID)
	case "decisions":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items, err := a.store.ListJobDecisions(r.Context(), jobID, 300)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown action: %s", action))
	}
}

// streamEvents serves one job's live progress as server-sent events. The
// stream ends when a terminal event arrives, the bus closes the channel, or
// the client disconnects.
func (a *app) streamEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	ch, cancel := a.bus.Subscribe(jobID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if ev.Type.Terminal() {
				return
			}
		}
	}
}

func (a *app) handleEscalationByJob(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/escalations/")
	jobID := strings.Split(trimmed, "/")[0]
	if jobID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id is required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		esc, err := a.store.GetEscalationByJob(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, esc)
	case http.MethodPost:
		var req struct {
			Status     string `json:"status"`
			Resolution string `json:"resolution"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
			return
		}
		status := domain.EscalationStatus(req.Status)
		if status != domain.EscalationResolved && status != domain.EscalationAbandoned {
			writeError(w, http.StatusBadRequest, fmt.Errorf("status must be resolved or abandoned"))
			return
		}
		esc, err := a.store.GetEscalationByJob(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err := a.store.ResolveEscalation(r.Context(), esc.ID, status, req.Resolution); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": string(status), "job_id": jobID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *app) handlePollStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		IntervalMS int `json:"interval_ms"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	a.engine.StartPolling(context.Background(), durationMS(req.IntervalMS, 0))
	writeJSON(w, http.StatusOK, a.engine.Status())
}

func (a *app) handlePollStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a.engine.StopPolling()
	writeJSON(w, http.StatusOK, a.engine.Status())
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func durationMS(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func intOrDefault(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
