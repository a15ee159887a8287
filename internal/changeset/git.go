package changeset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"svcpipe/internal/core"
)

// Git runs git subcommands against one repository and returns trimmed stdout.
type Git interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecGit invokes the git binary through the core executor.
type ExecGit struct {
	dir  string
	exec *core.Executor
}

// NewExecGit creates a Git bound to repoDir. Every call is bounded by timeout.
func NewExecGit(repoDir string, timeout time.Duration) *ExecGit {
	return &ExecGit{dir: repoDir, exec: core.NewExecutor(timeout)}
}

// Run executes "git <args>" in the repository directory.
func (g *ExecGit) Run(ctx context.Context, args ...string) (string, error) {
	res, err := g.exec.Run(ctx, core.Command{Name: "git", Args: args, Dir: g.dir})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ChangedFiles lists the paths touched by the given range.
func ChangedFiles(ctx context.Context, git Git, ref ChangeRef) ([]string, error) {
	if ref.Full {
		return nil, fmt.Errorf("change ref selects the full service set, there is no range to diff")
	}
	out, err := git.Run(ctx, "diff", "--name-only", ref.Range)
	if err != nil {
		return nil, fmt.Errorf("list changed files for %s: %w", ref.Range, err)
	}
	if out == "" {
		return nil, nil
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
