package collab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Applier materializes agent output into a per-job workspace directory so the
// publish stage has concrete files to push. All writes are confined to the
// workspace root.
type Applier struct {
	root string
}

func NewApplier(root string) (*Applier, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Applier{root: absRoot}, nil
}

// Apply writes the generated files under <root>/<jobID>/ and returns the
// normalized relative paths that were written. A path that escapes the job
// directory fails the whole apply; partial writes are not rolled back.
func (a *Applier) Apply(ctx context.Context, jobID string, files []GeneratedFile) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to apply")
	}
	jobRoot := filepath.Join(a.root, jobID)
	written := make([]string, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		absPath, normalized, err := resolveWithin(jobRoot, file.Path)
		if err != nil {
			return written, fmt.Errorf("apply %q: %w", file.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return written, fmt.Errorf("create parent directories: %w", err)
		}
		if err := os.WriteFile(absPath, []byte(file.Content), 0o644); err != nil {
			return written, fmt.Errorf("write file %s: %w", normalized, err)
		}
		written = append(written, normalized)
	}
	return written, nil
}

func resolveWithin(root, relPath string) (absolute string, normalized string, err error) {
	normalized = strings.ReplaceAll(strings.TrimSpace(relPath), "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.TrimPrefix(normalized, "/")
	if normalized == "" || normalized == "." {
		return "", "", fmt.Errorf("invalid relative path %q", relPath)
	}

	abs := filepath.Clean(filepath.Join(root, filepath.FromSlash(normalized)))
	rel, err := filepath.Rel(filepath.Clean(root), abs)
	if err != nil {
		return "", "", fmt.Errorf("resolve relative path: %w", err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", "", fmt.Errorf("path escapes workspace root: %q", relPath)
	}
	return abs, strings.ReplaceAll(rel, "\\", "/"), nil
}
