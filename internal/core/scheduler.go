package core

// stageOrder is the fixed total order of pipeline stages.
var stageOrder = []Stage{StageValidate, StagePreflight, StageBackup, StageDeploy, StageVerify}

// Stages returns the stage order. The slice is a copy.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// StageIndex returns the position of s in the stage order, or -1.
func StageIndex(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// PreviousStage returns the stage immediately before s.
func PreviousStage(s Stage) (Stage, bool) {
	i := StageIndex(s)
	if i <= 0 {
		return "", false
	}
	return stageOrder[i-1], true
}

// Scheduler answers ordering questions about a generated pipeline.
type Scheduler struct{}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// JobsInStage returns the jobs of one stage, in document order.
// Jobs of different services in the same stage may run concurrently.
func (s *Scheduler) JobsInStage(p *Pipeline, stage Stage) []*Job {
	var out []*Job
	for _, j := range p.Jobs {
		if j.Stage == stage {
			out = append(out, j)
		}
	}
	return out
}

// StageCounts returns the number of jobs per declared stage.
func (s *Scheduler) StageCounts(p *Pipeline) map[Stage]int {
	counts := make(map[Stage]int, len(p.Stages))
	for _, st := range p.Stages {
		counts[st] = len(s.JobsInStage(p, st))
	}
	return counts
}

// CheckNeeds verifies that every need edge names an existing job of the same
// service at the immediately preceding stage.
func (s *Scheduler) CheckNeeds(p *Pipeline, services []ServiceID) error {
	owner := make(map[string]ServiceID)
	for _, svc := range services {
		for _, st := range stageOrder {
			owner[JobID(st, svc)] = svc
		}
	}
	for _, j := range p.Jobs {
		svc, ok := owner[j.Name]
		if !ok {
			if len(j.Needs) > 0 {
				return &NeedError{Job: j.Name, Reason: "placeholder job must not declare needs"}
			}
			continue
		}
		prev, hasPrev := PreviousStage(j.Stage)
		switch {
		case !hasPrev && len(j.Needs) > 0:
			return &NeedError{Job: j.Name, Reason: "first stage must not declare needs"}
		case hasPrev && len(j.Needs) != 1:
			return &NeedError{Job: j.Name, Reason: "expected exactly one need"}
		case hasPrev && j.Needs[0].Job != JobID(prev, svc):
			return &NeedError{Job: j.Name, Reason: "need " + j.Needs[0].Job + " is not " + JobID(prev, svc)}
		}
	}
	return nil
}

// NeedError reports a malformed dependency edge.
type NeedError struct {
	Job    string
	Reason string
}

func (e *NeedError) Error() string {
	return "invalid needs on " + e.Job + ": " + e.Reason
}
