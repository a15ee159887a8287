// Package changeset decides which git comparison range describes "what changed"
// for the current CI context.
package changeset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FallbackRange compares HEAD with its first parent only.
const FallbackRange = "HEAD~1..HEAD"

// Signals are the CI inputs the resolver decides on. They are vendor neutral;
// the config package maps concrete environment variables onto them.
type Signals struct {
	Tag          string // release tag, empty when not a tag pipeline
	DeployAll    bool   // explicit override: treat every service as changed
	Branch       string // current branch
	BeforeSHA    string // last commit known before this push
	TargetBranch string // merge target for non-trunk branches
	CI           bool   // running inside CI; enables fetching the target
}

// ChangeRef is the resolved comparison. When Full is set there is no range:
// every known service counts as changed.
type ChangeRef struct {
	Full     bool
	Range    string
	Fallback bool   // Range is the weaker single-commit lookback
	Reason   string // human readable decision summary
}

func (r ChangeRef) String() string {
	if r.Full {
		return "<all services>"
	}
	return r.Range
}

// Options tune the resolver.
type Options struct {
	TrunkBranches []string // e.g. main, master
	Remote        string   // remote holding the merge target
	FetchDepth    int      // shallow fetch depth for the target; 0 fetches fully
}

// Resolver picks the git comparison range.
type Resolver struct {
	git    Git
	opts   Options
	logger *zap.Logger
}

// NewResolver creates a Resolver. Empty options fall back to main/master and origin.
func NewResolver(git Git, opts Options, logger *zap.Logger) *Resolver {
	if len(opts.TrunkBranches) == 0 {
		opts.TrunkBranches = []string{"main", "master"}
	}
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{git: git, opts: opts, logger: logger}
}

// Resolve applies the decision order: tag, deploy-all override, trunk branch,
// then merge-target comparison. The first match wins.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) (ChangeRef, error) {
	if sig.Tag != "" {
		r.logger.Info("Tag detected, processing all services", zap.String("tag", sig.Tag))
		return ChangeRef{Full: true, Reason: "tag " + sig.Tag}, nil
	}
	if sig.DeployAll {
		r.logger.Info("Deploy-all override set, processing all services")
		return ChangeRef{Full: true, Reason: "deploy-all override"}, nil
	}

	if r.IsTrunk(sig.Branch) {
		if IsValidSHA(sig.BeforeSHA) {
			ref := ChangeRef{Range: sig.BeforeSHA + "..HEAD", Reason: "trunk push range"}
			r.logger.Info("Trunk branch detected, comparing range", zap.String("branch", sig.Branch), zap.String("range", ref.Range))
			return ref, nil
		}
		r.logger.Info("Trunk branch without before commit, comparing previous commit", zap.String("branch", sig.Branch))
		return ChangeRef{Range: FallbackRange, Fallback: true, Reason: "trunk without before commit"}, nil
	}

	return r.resolveAgainstTarget(ctx, sig)
}

func (r *Resolver) resolveAgainstTarget(ctx context.Context, sig Signals) (ChangeRef, error) {
	target := sig.TargetBranch
	if target == "" {
		target = r.opts.TrunkBranches[0]
	}
	remoteRef := r.opts.Remote + "/" + target

	if sig.CI {
		args := []string{"fetch", r.opts.Remote, target}
		if r.opts.FetchDepth > 0 {
			args = append(args, fmt.Sprintf("--depth=%d", r.opts.FetchDepth))
		}
		if _, err := r.git.Run(ctx, args...); err != nil {
			r.logger.Debug("Fetching merge target failed, continuing", zap.String("target", target), zap.Error(err))
		}
	}

	if _, err := r.git.Run(ctx, "rev-parse", "--verify", remoteRef); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ChangeRef{}, fmt.Errorf("resolve %s: %w", remoteRef, err)
		}
		r.logger.Warn("Could not find merge target, comparing with previous commit",
			zap.String("target", remoteRef),
			zap.String("range", FallbackRange),
			zap.Error(err))
		return ChangeRef{Range: FallbackRange, Fallback: true, Reason: "merge target " + remoteRef + " not found"}, nil
	}

	ref := ChangeRef{Range: remoteRef + "...HEAD", Reason: "merge-base comparison with " + remoteRef}
	r.logger.Info("Comparing against merge target", zap.String("target", remoteRef), zap.String("range", ref.Range))
	return ref, nil
}

// IsTrunk reports whether branch is one of the configured trunk branches.
func (r *Resolver) IsTrunk(branch string) bool {
	for _, b := range r.opts.TrunkBranches {
		if b == branch {
			return true
		}
	}
	return false
}

// IsValidSHA reports whether sha is usable as a range start: non-empty and
// not the all-zero hash CI systems send for new branches.
func IsValidSHA(sha string) bool {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return false
	}
	return strings.Trim(sha, "0") != ""
}
