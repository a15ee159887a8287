package lint

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"svcpipe/internal/core"
	"svcpipe/internal/storage"
)

const (
	VersionTimeout = 5 * time.Second
	LintTimeout    = 120 * time.Second
)

// Status is the outcome of one linter.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one linter run.
type Result struct {
	Name     string
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string
	LogPath  string
	Err      error // why the linter could not run, if it could not
}

// Report collects the results in the order the linters were given.
type Report struct {
	Results []Result
}

// Failed reports whether any linter failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// ExitCode is 0 when every linter passed or was skipped, else 1.
func (r *Report) ExitCode() int {
	if r.Failed() {
		return 1
	}
	return 0
}

// Result returns the result of the named linter.
func (r *Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// Runner executes linters concurrently.
type Runner struct {
	exec     *core.Executor
	logs     *storage.LogStorage // nil disables log files
	logger   *zap.Logger
	lookPath func(string) (string, error)
}

// NewRunner creates a Runner. logs may be nil.
func NewRunner(logs *storage.LogStorage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		exec:     core.NewExecutor(LintTimeout),
		logs:     logs,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

// Run executes every linter in repoDir and waits for all of them. Linter
// failures are reported in the Report; Run itself only fails when ctx ends.
func (r *Runner) Run(ctx context.Context, repoDir string, linters []Linter) (*Report, error) {
	report := &Report{Results: make([]Result, len(linters))}

	g, gctx := errgroup.WithContext(ctx)
	for i, l := range linters {
		g.Go(func() error {
			report.Results[i] = r.runOne(gctx, repoDir, l)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, repoDir string, l Linter) Result {
	res := Result{Name: l.Name}
	log := r.logger.With(zap.String("linter", l.Name))

	bin, err := r.lookPath(l.Binary)
	if err != nil {
		res.Err = err
		if l.Optional {
			log.Warn("Linter not installed, skipping", zap.String("binary", l.Binary))
			res.Status = StatusSkipped
			return res
		}
		log.Error("Linter not installed", zap.String("binary", l.Binary))
		res.Status = StatusFailed
		res.ExitCode = 1
		return res
	}

	r.probeVersion(ctx, bin, log)

	var args []string
	if l.Args != nil {
		args, err = l.Args(repoDir)
	}
	if errors.Is(err, ErrNothingToLint) {
		log.Info("No files to lint")
		res.Status = StatusSkipped
		return res
	}
	if err != nil {
		log.Error("Collecting lint targets failed", zap.Error(err))
		res.Err = err
		res.Status = StatusFailed
		res.ExitCode = 1
		return res
	}

	start := time.Now()
	out, err := r.exec.Run(ctx, core.Command{Name: bin, Args: args, Dir: repoDir, Timeout: LintTimeout})
	res.Stdout, res.Stderr, res.ExitCode = out.Stdout, out.Stderr, out.ExitCode
	res.Status = StatusPassed
	if err != nil {
		res.Err = err
		res.Status = StatusFailed
	}

	if r.logs != nil {
		path, logErr := r.logs.SaveLog("lint", l.Name, out.Stdout+out.Stderr)
		if logErr != nil {
			log.Warn("Failed to save lint log", zap.Error(logErr))
		}
		res.LogPath = path
	}

	log.Info("Linter finished",
		zap.String("status", string(res.Status)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", time.Since(start)))
	return res
}

// probeVersion logs the linter version; failures only produce a warning.
func (r *Runner) probeVersion(ctx context.Context, bin string, log *zap.Logger) {
	out, err := r.exec.Run(ctx, core.Command{Name: bin, Args: []string{"--version"}, Timeout: VersionTimeout})
	if err != nil {
		log.Warn("Could not get linter version", zap.Error(err))
		return
	}
	version := strings.TrimSpace(out.Stdout)
	for _, line := range strings.Split(version, "\n") {
		if strings.HasPrefix(line, "version:") {
			version = strings.TrimSpace(strings.TrimPrefix(line, "version:"))
			break
		}
	}
	log.Debug("Linter version", zap.String("version", version))
}
