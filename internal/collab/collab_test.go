package collab

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-github/v57/github"

	"foundry/internal/domain"
)

func TestApplyWritesUnderJobDir(t *testing.T) {
	applier, err := NewApplier(t.TempDir())
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	files := []GeneratedFile{
		{Path: "cmd/main.go", Content: "package main\n"},
		{Path: "./README.md", Content: "hello\n"},
	}
	written, err := applier.Apply(context.Background(), "job-1", files)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("wrote %d files, want 2", len(written))
	}
	if written[1] != "README.md" {
		t.Fatalf("normalized path = %q, want README.md", written[1])
	}

	content, err := os.ReadFile(filepath.Join(applier.root, "job-1", "cmd", "main.go"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "package main\n" {
		t.Fatalf("content = %q", content)
	}
}

func TestApplyRejectsEscapingPaths(t *testing.T) {
	applier, err := NewApplier(t.TempDir())
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	for _, path := range []string{"../outside.txt", "a/../../etc/passwd", "", "."} {
		_, err := applier.Apply(context.Background(), "job-1", []GeneratedFile{{Path: path, Content: "x"}})
		if err == nil {
			t.Fatalf("Apply accepted path %q", path)
		}
	}
}

func TestParseAgentOutputStripsFences(t *testing.T) {
	raw := []byte("```json\n{\"summary\":\"done\",\"files\":[{\"path\":\"a.go\",\"content\":\"x\"}],\"tokens_in\":1200,\"tokens_out\":340}\n```")
	result, err := parseAgentOutput(raw)
	if err != nil {
		t.Fatalf("parseAgentOutput: %v", err)
	}
	if result.Summary != "done" || len(result.Files) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.TokensIn != 1200 || result.TokensOut != 340 {
		t.Fatalf("tokens = %d/%d", result.TokensIn, result.TokensOut)
	}
}

func TestAgentResultCost(t *testing.T) {
	result := AgentResult{TokensIn: 2000, TokensOut: 1000}
	agent := domain.AgentProfile{InputCostPerKTok: 0.003, OutputCostPerKTok: 0.015}
	got := result.CostUSD(agent)
	want := 2*0.003 + 1*0.015
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cost = %f, want %f", got, want)
	}
}

func TestTransientClassification(t *testing.T) {
	withStatus := func(code int) *github.Response {
		return &github.Response{Response: &http.Response{StatusCode: code}}
	}

	cases := []struct {
		name string
		resp *github.Response
		want bool
	}{
		{"nil response is network failure", nil, true},
		{"rate limited", withStatus(http.StatusTooManyRequests), true},
		{"bad gateway", withStatus(http.StatusBadGateway), true},
		{"unauthorized", withStatus(http.StatusUnauthorized), false},
		{"validation failed", withStatus(http.StatusUnprocessableEntity), false},
		{"not found", withStatus(http.StatusNotFound), false},
	}
	for _, tc := range cases {
		if got := isTransientGitHub(tc.resp); got != tc.want {
			t.Errorf("%s: isTransientGitHub = %v, want %v", tc.name, got, tc.want)
		}
	}

	forbidden := withStatus(http.StatusForbidden)
	forbidden.Rate.Limit = 5000
	if !isTransientGitHub(forbidden) {
		t.Errorf("403 with rate info should be transient")
	}
	if isTransientGitHub(withStatus(http.StatusForbidden)) {
		t.Errorf("plain 403 should not be transient")
	}
}

func TestBranchNameSlug(t *testing.T) {
	job := domain.Job{
		ID:    "0b6c9a2e-1111-2222-3333-444455556666",
		Title: "Fix: flaky CI on ARM builders!!",
	}
	got := branchName(job)
	if !strings.HasPrefix(got, "foundry/0b6c9a2e-") {
		t.Fatalf("branch = %q", got)
	}
	if strings.Contains(got, "--") || strings.ContainsAny(got, " !:") {
		t.Fatalf("branch has unclean characters: %q", got)
	}
}
