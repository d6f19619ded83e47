// Package collab holds the pieces the orchestrator delegates real work to:
// invoking an AI agent binary, applying its generated files to a workspace,
// and publishing the result as a pull request.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"foundry/internal/domain"
)

// GeneratedFile is one file produced by an agent run.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// AgentResult is the parsed output of a completed agent invocation.
type AgentResult struct {
	Summary   string          `json:"summary"`
	Files     []GeneratedFile `json:"files"`
	TokensIn  int             `json:"tokens_in"`
	TokensOut int             `json:"tokens_out"`
}

// CostUSD prices the run against the invoked agent's per-kilotoken rates.
func (r AgentResult) CostUSD(agent domain.AgentProfile) float64 {
	return float64(r.TokensIn)/1000*agent.InputCostPerKTok +
		float64(r.TokensOut)/1000*agent.OutputCostPerKTok
}

// Invoker runs a work order against a concrete agent and returns its output.
type Invoker interface {
	Invoke(ctx context.Context, job domain.Job, agent domain.AgentProfile) (AgentResult, error)
}

// CLIInvoker shells out to an agent binary that accepts a prompt and writes
// schema-constrained JSON to an output file.
type CLIInvoker struct {
	binary  string
	workdir string
	timeout time.Duration
	logger  *log.Logger
}

func NewCLIInvoker(binary, workdir string, timeout time.Duration, logger *log.Logger) *CLIInvoker {
	if logger == nil {
		logger = log.Default()
	}
	if strings.TrimSpace(binary) == "" {
		binary = "codex"
	}
	if strings.TrimSpace(workdir) == "" {
		workdir = "."
	}
	if timeout <= 0 {
		timeout = 8 * time.Minute
	}
	return &CLIInvoker{
		binary:  binary,
		workdir: workdir,
		timeout: timeout,
		logger:  logger,
	}
}

const outputSchema = `{
  "type":"object",
  "additionalProperties":false,
  "required":["summary","files"],
  "properties":{
    "summary":{"type":"string","minLength":1},
    "files":{
      "type":"array",
      "minItems":1,
      "items":{
        "type":"object",
        "additionalProperties":false,
        "required":["path","content"],
        "properties":{
          "path":{"type":"string","minLength":1},
          "content":{"type":"string"}
        }
      }
    },
    "tokens_in":{"type":"integer","minimum":0},
    "tokens_out":{"type":"integer","minimum":0}
  }
}`

func (c *CLIInvoker) Invoke(ctx context.Context, job domain.Job, agent domain.AgentProfile) (AgentResult, error) {
	schemaFile, err := os.CreateTemp("", "foundry_schema_*.json")
	if err != nil {
		return AgentResult{}, fmt.Errorf("create schema temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(schemaFile.Name())
	}()
	defer schemaFile.Close()
	if _, err := schemaFile.WriteString(outputSchema); err != nil {
		return AgentResult{}, fmt.Errorf("write schema file: %w", err)
	}

	outFile, err := os.CreateTemp("", "foundry_output_*.json")
	if err != nil {
		return AgentResult{}, fmt.Errorf("create output temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(outFile.Name())
	}()
	outFile.Close()

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"exec",
		"--skip-git-repo-check",
		"--model", agent.Name,
		"--output-schema", schemaFile.Name(),
		"-o", outFile.Name(),
		buildPrompt(job),
	}
	cmd := exec.CommandContext(runCtx, c.binary, args...)
	cmd.Dir = c.workdir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return AgentResult{}, fmt.Errorf("agent exec failed: %w; output: %s", err, string(output))
	}

	raw, err := os.ReadFile(outFile.Name())
	if err != nil {
		return AgentResult{}, fmt.Errorf("read agent output: %w", err)
	}
	result, err := parseAgentOutput(raw)
	if err != nil {
		return AgentResult{}, fmt.Errorf("parse agent output: %w", err)
	}
	if len(result.Files) == 0 {
		return AgentResult{}, fmt.Errorf("agent returned empty file list")
	}
	c.logger.Printf("agent %s finished job %s: %d files", agent.Name, job.ID, len(result.Files))
	return result, nil
}

func buildPrompt(job domain.Job) string {
	var b strings.Builder
	b.WriteString("Implement the work order below.\n")
	b.WriteString("Return only valid JSON matching the provided output schema.\n")
	b.WriteString("Do not wrap output in markdown fences.\n")
	b.WriteString("Paths must be relative, must not start with '/' or contain '..'.\n\n")
	b.WriteString("Title:\n")
	b.WriteString(job.Title)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString(job.Instructions)
	b.WriteString("\n")
	return b.String()
}

func parseAgentOutput(raw []byte) (AgentResult, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var result AgentResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return AgentResult{}, err
	}
	return result, nil
}
