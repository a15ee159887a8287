package core

import (
	"sort"

	"go.uber.org/zap"
)

// DefaultVariables are the global variables of the generated document.
func DefaultVariables() Vars {
	return Vars{
		{Name: "CI_IMAGE", Value: "${CI_IMAGE}"},
		{Name: "SERVICES_DIR", Value: "services"},
		{Name: "DOCKER_COMPOSE_DIR", Value: "${DOCKER_COMPOSE_DIR}"},
		{Name: "SSH_USER", Value: "${SSH_USER}"},
	}
}

// Assembler merges per-service job sets with the pipeline metadata.
type Assembler struct {
	builder   *Builder
	variables Vars
	logger    *zap.Logger
}

// NewAssembler creates an Assembler. A nil logger discards diagnostics.
func NewAssembler(builder *Builder, variables Vars, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{builder: builder, variables: variables, logger: logger}
}

// Assemble builds the complete document for the given services. Services are
// sorted and de-duplicated first, so the output is reproducible.
func (a *Assembler) Assemble(services []ServiceID) *Pipeline {
	p := &Pipeline{
		Variables: append(Vars(nil), a.variables...),
		Stages:    Stages(),
	}

	for _, svc := range NormalizeServices(services) {
		for _, job := range a.builder.BuildJobs(svc) {
			if err := p.AddJob(job); err != nil {
				a.logger.Error("Dropping job", zap.String("job", job.Name), zap.Error(err))
			}
		}
	}

	if p.JobCount() == 0 {
		_ = p.AddJob(a.builder.PlaceholderJob())
	}

	// The generated child pipeline was filtered upstream; it must not filter itself out.
	p.Workflow = &Workflow{Rules: []Rule{{When: WhenAlways}}}

	a.EnsureJobs(p)
	return p
}

// EnsureJobs injects the failing fallback job when p has no jobs at all.
// It reports whether the fallback was added.
func (a *Assembler) EnsureJobs(p *Pipeline) bool {
	if p.JobCount() > 0 {
		return false
	}
	a.logger.Warn("No jobs generated, adding fallback job", zap.String("job", FallbackJobName))
	_ = p.AddJob(a.builder.FallbackJob())
	return true
}

// NormalizeServices returns a sorted, duplicate-free copy without empty IDs.
func NormalizeServices(services []ServiceID) []ServiceID {
	seen := make(map[ServiceID]struct{}, len(services))
	out := make([]ServiceID, 0, len(services))
	for _, s := range services {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
