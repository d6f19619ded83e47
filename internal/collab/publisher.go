package collab

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"foundry/internal/domain"
)

// PublishResult identifies the branch and pull request a job's output landed on.
type PublishResult struct {
	BranchRef      string
	PullRequestRef string
}

// Publisher pushes applied files to a code host and opens a review request.
type Publisher interface {
	Publish(ctx context.Context, job domain.Job, summary string, files []GeneratedFile) (PublishResult, error)
}

// GitHubPublisher commits generated files to a fresh branch off the base
// branch and opens a pull request for review.
type GitHubPublisher struct {
	client *github.Client
	owner  string
	repo   string
	base   string
	logger *log.Logger
}

func NewGitHubPublisher(ctx context.Context, token, owner, repo, baseBranch string, logger *log.Logger) (*GitHubPublisher, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("github token not set")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	if baseBranch == "" {
		baseBranch = "main"
	}
	if logger == nil {
		logger = log.Default()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &GitHubPublisher{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
		base:   baseBranch,
		logger: logger,
	}, nil
}

func (p *GitHubPublisher) Publish(ctx context.Context, job domain.Job, summary string, files []GeneratedFile) (PublishResult, error) {
	if len(files) == 0 {
		return PublishResult{}, fmt.Errorf("nothing to publish")
	}

	branch := branchName(job)
	var baseRef *github.Reference
	err := p.withTransientRetry(ctx, func() (*github.Response, error) {
		ref, resp, err := p.client.Git.GetRef(ctx, p.owner, p.repo, "refs/heads/"+p.base)
		baseRef = ref
		return resp, err
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("resolve base branch %s: %w", p.base, err)
	}
	err = p.withTransientRetry(ctx, func() (*github.Response, error) {
		_, resp, err := p.client.Git.CreateRef(ctx, p.owner, p.repo, &github.Reference{
			Ref:    github.String("refs/heads/" + branch),
			Object: &github.GitObject{SHA: baseRef.Object.SHA},
		})
		return resp, err
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("create branch %s: %w", branch, err)
	}

	for _, file := range files {
		message := fmt.Sprintf("Add %s for work order %s", file.Path, job.ID)
		err := p.withTransientRetry(ctx, func() (*github.Response, error) {
			_, resp, err := p.client.Repositories.CreateFile(ctx, p.owner, p.repo, file.Path, &github.RepositoryContentFileOptions{
				Message: github.String(message),
				Content: []byte(file.Content),
				Branch:  github.String(branch),
			})
			return resp, err
		})
		if err != nil {
			return PublishResult{BranchRef: branch}, fmt.Errorf("commit %s: %w", file.Path, err)
		}
	}

	body := summary
	if body == "" {
		body = job.Instructions
	}
	var pr *github.PullRequest
	err = p.withTransientRetry(ctx, func() (*github.Response, error) {
		created, resp, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, &github.NewPullRequest{
			Title: github.String(job.Title),
			Head:  github.String(branch),
			Base:  github.String(p.base),
			Body:  github.String(body),
		})
		pr = created
		return resp, err
	})
	if err != nil {
		return PublishResult{BranchRef: branch}, fmt.Errorf("open pull request: %w", err)
	}

	p.logger.Printf("published job %s: branch %s pr #%d", job.ID, branch, pr.GetNumber())
	return PublishResult{
		BranchRef:      branch,
		PullRequestRef: pr.GetHTMLURL(),
	}, nil
}

// withTransientRetry runs op and retries it once after a short pause when the
// failure looks transient (rate limit or 5xx). Non-transient failures return
// immediately.
func (p *GitHubPublisher) withTransientRetry(ctx context.Context, op func() (*github.Response, error)) error {
	resp, err := op()
	if err == nil {
		return nil
	}
	if !isTransientGitHub(resp) {
		return err
	}
	p.logger.Printf("github call failed transiently (status=%d), retrying once: %v", statusCode(resp), err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
	}
	if _, err := op(); err != nil {
		return err
	}
	return nil
}

func isTransientGitHub(resp *github.Response) bool {
	code := statusCode(resp)
	switch {
	case code == http.StatusTooManyRequests:
		return true
	case code == http.StatusForbidden && resp.Rate.Limit > 0:
		// secondary rate limit
		return true
	case code >= 500 && code < 600:
		return true
	}
	// no response at all means a network-level failure
	return resp == nil || resp.Response == nil
}

func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}

func branchName(job domain.Job) string {
	slug := strings.ToLower(strings.TrimSpace(job.Title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	short := job.ID
	if len(short) > 8 {
		short = short[:8]
	}
	if slug == "" {
		return "foundry/" + short
	}
	return "foundry/" + short + "-" + slug
}
