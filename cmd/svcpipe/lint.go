package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"svcpipe/internal/lint"
	"svcpipe/internal/storage"
)

var (
	lintFormat string
	lintOnly   []string
	lintOutput string
	lintLogDir string
)

// lintCmd runs the repository linters
var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Run markdown, shell and YAML linters",
	Long: `Runs markdownlint-cli2, shellcheck and yamllint concurrently in the
repository root. A missing shellcheck or yamllint counts as a failure;
markdownlint-cli2 is optional.

With --format gitlab the yamllint findings are written as a GitLab
code-quality report to --output (or stdout).`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().StringVar(&lintFormat, "format", string(lint.FormatStandard), "yamllint output: standard, parsable or gitlab")
	lintCmd.Flags().StringSliceVar(&lintOnly, "only", nil, "Run only these linters (markdown, shell, yaml)")
	lintCmd.Flags().StringVarP(&lintOutput, "output", "o", "", "Code-quality report path for --format gitlab")
	lintCmd.Flags().StringVar(&lintLogDir, "log-dir", "", "Save linter output under this directory")
}

func runLint(cmd *cobra.Command, args []string) error {
	format := lint.Format(lintFormat)
	switch format {
	case lint.FormatStandard, lint.FormatParsable, lint.FormatGitLab:
	default:
		return fmt.Errorf("unknown format %q", lintFormat)
	}

	linters, err := selectLinters(format, lintOnly)
	if err != nil {
		return err
	}

	var logs *storage.LogStorage
	if lintLogDir != "" {
		logs = storage.NewLogStorage(lintLogDir)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	report, err := lint.NewRunner(logs, logger).Run(ctx, repoDir, linters)
	if err != nil {
		return err
	}

	for _, res := range report.Results {
		if format == lint.FormatGitLab && res.Name == "yaml" {
			if err := writeCodeQuality(cmd, res.Stdout); err != nil {
				return err
			}
			continue
		}
		fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
		fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
	}

	if report.Failed() {
		var failed []string
		for _, res := range report.Results {
			if res.Status == lint.StatusFailed {
				failed = append(failed, res.Name)
			}
		}
		return fmt.Errorf("lint failed: %v", failed)
	}
	logger.Info("Lint passed", zap.Int("linters", len(report.Results)))
	return nil
}

func selectLinters(format lint.Format, only []string) ([]lint.Linter, error) {
	all := []lint.Linter{lint.Markdown(), lint.Shell(), lint.YAML(format)}
	if len(only) == 0 {
		return all, nil
	}
	byName := make(map[string]lint.Linter, len(all))
	for _, l := range all {
		byName[l.Name] = l
	}
	var out []lint.Linter
	for _, name := range only {
		l, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown linter %q", name)
		}
		out = append(out, l)
	}
	return out, nil
}

func writeCodeQuality(cmd *cobra.Command, parsable string) error {
	data, err := lint.CodeQualityJSON(lint.ParseYamllint(parsable))
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if lintOutput == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := storage.WriteFile(lintOutput, data); err != nil {
		return err
	}
	logger.Info("Wrote code-quality report", zap.String("path", lintOutput))
	return nil
}

