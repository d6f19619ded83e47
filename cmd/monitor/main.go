package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"foundry/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	addr := flag.String("addr", "http://localhost:8092", "orchestrator base URL")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	flag.Parse()

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := waitHealth(c, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator health check failed: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	jobsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	jobsTable.SetTitle("Work Orders (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	detailView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	detailView.SetTitle("Job Detail").SetBorder(true)

	budgetView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	budgetView.SetTitle("Budget").SetBorder(true)

	decisionsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	decisionsView.SetTitle("Decisions").SetBorder(true)

	promptInput := tview.NewInputField().
		SetLabel("New work order: ")
	promptInput.SetBorder(true).SetTitle("Enter = create+approve+execute (title | instructions | target)")

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf(
		"Connected to %s | shortcuts: F10 quit, F5 refresh, Ctrl+L focus prompt, Ctrl+T focus jobs",
		c.baseURL,
	))

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(detailView, 0, 3, false).
		AddItem(budgetView, 9, 0, false).
		AddItem(decisionsView, 0, 2, false)

	mainLayout := tview.NewFlex().
		AddItem(jobsTable, 0, 1, false).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(promptInput, 3, 0, true).
		AddItem(statusView, 3, 0, false)

	var selectedJobID string
	var lastJobs []domain.Job
	var detailsVersion uint64

	setStatusUI := func(msg string) {
		statusView.SetText(msg)
	}
	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	refreshJobs := func() {
		jobs, err := c.listJobs()
		if err != nil {
			app.QueueUpdateDraw(func() {
				jobsTable.Clear()
				jobsTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("load error: %v", err)).SetTextColor(tview.Styles.ContrastSecondaryTextColor))
			})
			return
		}
		sort.Slice(jobs, func(i, j int) bool {
			return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt)
		})
		lastJobs = jobs
		app.QueueUpdateDraw(func() {
			renderJobsTable(jobsTable, jobs, selectedJobID)
		})
	}

	refreshBudget := func() {
		status, err := c.budgetStatus()
		app.QueueUpdateDraw(func() {
			if err != nil {
				budgetView.SetText(fmt.Sprintf("error: %v", err))
				return
			}
			budgetView.SetText(renderBudget(status))
		})
	}

	refreshDetailsAsync := func(jobID string) {
		if strings.TrimSpace(jobID) == "" {
			return
		}
		version := atomic.AddUint64(&detailsVersion, 1)
		app.QueueUpdateDraw(func() {
			detailView.SetText("Loading...")
			decisionsView.SetText("Loading...")
		})

		go func(selected string, v uint64) {
			job, jobErr := c.getJob(selected)
			decisions, decErr := c.listJobDecisions(selected, 250)

			if atomic.LoadUint64(&detailsVersion) != v {
				return
			}
			app.QueueUpdateDraw(func() {
				if selected != selectedJobID {
					return
				}
				if jobErr != nil {
					detailView.SetText(fmt.Sprintf("error: %v", jobErr))
				} else {
					detailView.SetText(renderJobDetail(job))
				}
				if decErr != nil {
					decisionsView.SetText(fmt.Sprintf("error: %v", decErr))
				} else {
					decisionsView.SetText(renderDecisions(decisions))
				}
			})
		}(jobID, version)
	}

	submitPrompt := func(prompt string) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return
		}
		setStatusUI("Creating work order...")
		promptInput.SetText("")
		go func(input string) {
			jobID, err := c.createAndExecuteJob(input)
			if err != nil {
				setStatusAsync("Failed to create/execute work order: " + err.Error())
				return
			}
			selectedJobID = jobID
			refreshJobs()
			refreshDetailsAsync(selectedJobID)
			setStatusAsync("Work order dispatched: " + jobID)
		}(prompt)
	}

	promptInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		submitPrompt(promptInput.GetText())
	})

	jobsTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(lastJobs) {
			return
		}
		selectedJobID = lastJobs[row-1].ID
		refreshDetailsAsync(selectedJobID)
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if app.GetFocus() == promptInput {
			if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyTAB {
				app.SetFocus(jobsTable)
				setStatusUI("Focus -> jobs")
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlT:
			app.SetFocus(jobsTable)
			setStatusUI("Focus -> jobs")
			return nil
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			refreshJobs()
			refreshBudget()
			refreshDetailsAsync(selectedJobID)
			setStatusUI("Manual refresh complete")
			return nil
		case tcell.KeyCtrlL:
			app.SetFocus(promptInput)
			setStatusUI("Focus -> prompt")
			return nil
		case tcell.KeyTAB:
			app.SetFocus(promptInput)
			return nil
		case tcell.KeyRune:
			app.SetFocus(promptInput)
			return event
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		refreshJobs()
		refreshBudget()
		for _, job := range lastJobs {
			if job.Status == domain.JobStatusInProgress || job.Status == domain.JobStatusEscalated {
				selectedJobID = job.ID
				break
			}
		}
		if selectedJobID != "" {
			refreshDetailsAsync(selectedJobID)
		}

		for range ticker.C {
			refreshJobs()
			refreshBudget()
			if selectedJobID == "" && len(lastJobs) > 0 {
				selectedJobID = lastJobs[0].ID
			}
			refreshDetailsAsync(selectedJobID)
		}
	}()

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(promptInput).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func waitHealth(c *client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
		if err == nil {
			resp, err := c.http.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func renderJobsTable(table *tview.Table, jobs []domain.Job, selectedJobID string) {
	table.Clear()
	headers := []string{"Job", "Status", "Target", "Score", "Updated", "Title"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, job := range jobs {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(shortID(job.ID)))
		table.SetCell(row, 1, tview.NewTableCell(string(job.Status)))
		table.SetCell(row, 2, tview.NewTableCell(job.TargetID))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%.2f", job.ComplexityScore)))
		table.SetCell(row, 4, tview.NewTableCell(job.UpdatedAt.Format("15:04:05")))
		table.SetCell(row, 5, tview.NewTableCell(trimLine(job.Title, 48)))
		if job.ID == selectedJobID {
			table.Select(row, 0)
		}
	}
}

func renderJobDetail(job domain.Job) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Job: %s\nTitle: %s\nTarget: %s  status=%s  score=%.2f  est=$%.2f\n",
		job.ID, job.Title, job.TargetID, job.Status, job.ComplexityScore, job.EstimatedCost))
	if len(job.DependsOn) > 0 {
		b.WriteString("Depends on: " + strings.Join(job.DependsOn, ", ") + "\n")
	}
	if job.Routing != nil {
		b.WriteString(fmt.Sprintf("Routed to: %s", job.Routing.Agent))
		if job.Routing.BelowConfidence {
			b.WriteString(" (below confidence)")
		}
		b.WriteString("\n  reason: " + trimLine(job.Routing.Reason, 120) + "\n")
	}
	if len(job.Attempts) > 0 {
		b.WriteString("Attempts:\n")
		for _, a := range job.Attempts {
			b.WriteString(fmt.Sprintf("  #%d %s cost=$%.4f", a.Number, a.Agent, a.CostUSD))
			if a.FailureClass != "" {
				b.WriteString(fmt.Sprintf(" %s: %s", a.FailureClass, trimLine(a.Error, 80)))
			}
			b.WriteString("\n")
		}
	}
	if job.BranchRef != "" {
		b.WriteString("Branch: " + job.BranchRef + "\n")
	}
	if job.PullRequestRef != "" {
		b.WriteString("PR: " + job.PullRequestRef + "\n")
	}
	if job.LastError != nil {
		b.WriteString(fmt.Sprintf("Error: stage=%s class=%s\n  %s\n",
			job.LastError.Stage, job.LastError.FailureClass, trimLine(job.LastError.Message, 160)))
	}
	return b.String()
}

func renderBudget(status domain.BudgetStatus) string {
	line := func(name string, w domain.BudgetWindow) string {
		alerts := make([]string, 0, 3)
		if w.SoftAlert {
			alerts = append(alerts, "soft")
		}
		if w.HardAlert {
			alerts = append(alerts, "hard")
		}
		if w.EmergencyAlert {
			alerts = append(alerts, "EMERGENCY")
		}
		suffix := ""
		if len(alerts) > 0 {
			suffix = "  alerts: " + strings.Join(alerts, ",")
		}
		return fmt.Sprintf("%-8s $%.2f / $%.2f (%.0f%%) remaining $%.2f%s",
			name, w.SpentUSD, w.HardCapUSD, w.Percent, w.RemainingUSD, suffix)
	}
	return line("daily", status.Daily) + "\n" + line("monthly", status.Monthly)
}

func renderDecisions(items []domain.DecisionLog) string {
	if len(items) == 0 {
		return "No decisions"
	}
	var b strings.Builder
	for _, d := range items {
		b.WriteString(fmt.Sprintf(
			"[%s] %s %s\n  reason: %s\n",
			d.CreatedAt.Format("15:04:05"),
			d.Actor,
			d.Action,
			trimLine(d.Reason, 100),
		))
	}
	return b.String()
}

// createAndExecuteJob parses "title | instructions | target" (instructions
// and target optional), creates the job approved, and dispatches it.
func (c *client) createAndExecuteJob(prompt string) (string, error) {
	parts := strings.SplitN(prompt, "|", 3)
	title := strings.TrimSpace(parts[0])
	instructions := title
	target := "default"
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		instructions = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		target = strings.TrimSpace(parts[2])
	}

	createReq := map[string]any{
		"title":            title,
		"instructions":     instructions,
		"target_id":        target,
		"complexity_score": 0.5,
		"approve":          true,
	}
	var job domain.Job
	if err := c.postJSON("/jobs", createReq, &job); err != nil {
		return "", err
	}
	if err := c.postJSON(fmt.Sprintf("/jobs/%s/execute", job.ID), map[string]any{}, nil); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (c *client) listJobs() ([]domain.Job, error) {
	var out []domain.Job
	if err := c.getJSON("/jobs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) getJob(jobID string) (domain.Job, error) {
	var out domain.Job
	if err := c.getJSON("/jobs/"+jobID, &out); err != nil {
		return domain.Job{}, err
	}
	return out, nil
}

func (c *client) budgetStatus() (domain.BudgetStatus, error) {
	var out domain.BudgetStatus
	if err := c.getJSON("/budget", &out); err != nil {
		return domain.BudgetStatus{}, err
	}
	return out, nil
}

func (c *client) listJobDecisions(jobID string, limit int) ([]domain.DecisionLog, error) {
	var out []domain.DecisionLog
	if err := c.getJSON(fmt.Sprintf("/jobs/%s/decisions?limit=%d", jobID, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func (c *client) postJSON(path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
