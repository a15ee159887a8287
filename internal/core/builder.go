package core

import (
	"fmt"
)

// DefaultScripts maps each stage to the external command it invokes.
var DefaultScripts = map[Stage]string{
	StageValidate:  "./scripts/ci/validate-service.sh",
	StagePreflight: "./scripts/ci/preflight-check.sh",
	StageBackup:    "./scripts/ci/backup-service.sh",
	StageDeploy:    "./scripts/ci/deploy_service.sh",
	StageVerify:    "./scripts/ci/health-check.sh",
}

// BuildOptions controls the shape of generated jobs.
type BuildOptions struct {
	Image           string           // job image, e.g. "${CI_IMAGE}"
	RunnerTag       string           // runner tag every job is pinned to
	ResourceGroup   string           // lock shared by all deploy jobs for one target
	Scripts         map[Stage]string // command per stage
	ServiceVariable string           // variable carrying the ServiceID
	TagVariable     string           // CI variable set on tag pipelines
	BranchVariable  string           // CI variable holding the branch name
	TrunkBranch     string           // branch whose deploys require approval
}

// DefaultBuildOptions returns the options used when nothing is configured.
func DefaultBuildOptions() BuildOptions {
	scripts := make(map[Stage]string, len(DefaultScripts))
	for k, v := range DefaultScripts {
		scripts[k] = v
	}
	return BuildOptions{
		Image:           "${CI_IMAGE}",
		RunnerTag:       "talos",
		ResourceGroup:   "production",
		Scripts:         scripts,
		ServiceVariable: "SERVICE",
		TagVariable:     "$CI_COMMIT_TAG",
		BranchVariable:  "$CI_COMMIT_BRANCH",
		TrunkBranch:     "main",
	}
}

// Builder synthesizes the per-service job chain.
type Builder struct {
	opts BuildOptions
}

// NewBuilder creates a Builder. Missing options fall back to the defaults.
func NewBuilder(opts BuildOptions) *Builder {
	def := DefaultBuildOptions()
	if opts.Image == "" {
		opts.Image = def.Image
	}
	if opts.RunnerTag == "" {
		opts.RunnerTag = def.RunnerTag
	}
	if opts.ResourceGroup == "" {
		opts.ResourceGroup = def.ResourceGroup
	}
	if opts.ServiceVariable == "" {
		opts.ServiceVariable = def.ServiceVariable
	}
	if opts.TagVariable == "" {
		opts.TagVariable = def.TagVariable
	}
	if opts.BranchVariable == "" {
		opts.BranchVariable = def.BranchVariable
	}
	if opts.TrunkBranch == "" {
		opts.TrunkBranch = def.TrunkBranch
	}
	scripts := make(map[Stage]string, len(stageOrder))
	for _, st := range stageOrder {
		scripts[st] = def.Scripts[st]
		if s, ok := opts.Scripts[st]; ok && s != "" {
			scripts[st] = s
		}
	}
	opts.Scripts = scripts
	return &Builder{opts: opts}
}

// Options returns the effective options.
func (b *Builder) Options() BuildOptions {
	return b.opts
}

// BuildJobs returns the five jobs of one service, in stage order.
func (b *Builder) BuildJobs(service ServiceID) []*Job {
	jobs := make([]*Job, 0, len(stageOrder))
	for _, st := range stageOrder {
		job := b.baseJob(st, service)
		if prev, ok := PreviousStage(st); ok {
			job.Needs = []Need{{Job: JobID(prev, service), Required: false}}
		}
		switch st {
		case StageDeploy:
			job.ResourceGroup = b.opts.ResourceGroup
			job.Rules = b.deployRules()
		case StageVerify:
			job.Rules = b.verifyRules()
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func (b *Builder) baseJob(stage Stage, service ServiceID) *Job {
	return &Job{
		Name:   JobID(stage, service),
		Stage:  stage,
		Image:  b.opts.Image,
		Tags:   []string{b.opts.RunnerTag},
		Script: []string{fmt.Sprintf("%s \"$%s\"", b.opts.Scripts[stage], b.opts.ServiceVariable)},
		Variables: Vars{
			{Name: b.opts.ServiceVariable, Value: string(service)},
		},
	}
}

func (b *Builder) trunkCondition() string {
	return fmt.Sprintf("%s == %q", b.opts.BranchVariable, b.opts.TrunkBranch)
}

// deployRules: tag → always, trunk → manual and blocking, anything else → never.
func (b *Builder) deployRules() []Rule {
	allowFailure := false
	return []Rule{
		{If: b.opts.TagVariable, When: WhenAlways},
		{If: b.trunkCondition(), When: WhenManual, AllowFailure: &allowFailure},
		{When: WhenNever},
	}
}

// verifyRules: tag → always, trunk → after a successful deploy, anything else → never.
func (b *Builder) verifyRules() []Rule {
	return []Rule{
		{If: b.opts.TagVariable, When: WhenAlways},
		{If: b.trunkCondition(), When: WhenOnSuccess},
		{When: WhenNever},
	}
}

// PlaceholderJob is the informational job emitted when no service changed.
func (b *Builder) PlaceholderJob() *Job {
	return &Job{
		Name:  PlaceholderJobName,
		Stage: StageValidate,
		Image: b.opts.Image,
		Tags:  []string{b.opts.RunnerTag},
		Script: []string{
			"echo '=========================================='",
			"echo 'No service changes detected'",
			"echo 'Validation skipped'",
			"echo '=========================================='",
		},
	}
}

// FallbackJob always fails; it surfaces a generator defect as a red pipeline.
func (b *Builder) FallbackJob() *Job {
	return &Job{
		Name:  FallbackJobName,
		Stage: StageValidate,
		Image: b.opts.Image,
		Tags:  []string{b.opts.RunnerTag},
		Script: []string{
			"echo 'ERROR: Pipeline generation failed - no jobs created'",
			"exit 1",
		},
	}
}

const (
	PlaceholderJobName = "no-changes"
	FallbackJobName    = "fallback-job"
)
