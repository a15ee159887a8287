package core

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Top-level document keys that are not jobs.
const (
	KeyVariables = "variables"
	KeyStages    = "stages"
	KeyWorkflow  = "workflow"
)

// IsMetaKey reports whether a top-level document key holds pipeline metadata.
func IsMetaKey(key string) bool {
	switch key {
	case KeyVariables, KeyStages, KeyWorkflow:
		return true
	}
	return false
}

// Pipeline represents the generated child pipeline document.
// Jobs keep the order in which they were added.
type Pipeline struct {
	Variables Vars      // global variables
	Stages    []Stage   // global stage order
	Jobs      []*Job    // jobs in emission order
	Workflow  *Workflow // admission rules
}

// Job returns the job with the given name, or nil.
func (p *Pipeline) Job(name string) *Job {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// JobCount returns the number of jobs, metadata keys excluded.
func (p *Pipeline) JobCount() int {
	return len(p.Jobs)
}

// JobNames returns job names in emission order.
func (p *Pipeline) JobNames() []string {
	names := make([]string, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		names = append(names, j.Name)
	}
	return names
}

// AddJob appends a job. Names must be unique within the document.
func (p *Pipeline) AddJob(job *Job) error {
	if job.Name == "" {
		return fmt.Errorf("job has no name")
	}
	if IsMetaKey(job.Name) {
		return fmt.Errorf("job name %q collides with a metadata key", job.Name)
	}
	if p.Job(job.Name) != nil {
		return fmt.Errorf("duplicate job %q", job.Name)
	}
	p.Jobs = append(p.Jobs, job)
	return nil
}

// MarshalYAML emits metadata first, then every job under its own key.
func (p *Pipeline) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	add := func(key string, v interface{}) error {
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&val,
		)
		return nil
	}

	if len(p.Variables) > 0 {
		if err := add(KeyVariables, p.Variables); err != nil {
			return nil, err
		}
	}
	if err := add(KeyStages, p.Stages); err != nil {
		return nil, err
	}
	for _, job := range p.Jobs {
		if err := add(job.Name, job); err != nil {
			return nil, err
		}
	}
	if p.Workflow != nil {
		if err := add(KeyWorkflow, p.Workflow); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// UnmarshalYAML rebuilds a Pipeline from a document mapping, keeping job order.
func (p *Pipeline) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("pipeline: expected mapping, got %s", nodeKind(value))
	}
	out := Pipeline{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		switch key {
		case KeyVariables:
			if err := val.Decode(&out.Variables); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case KeyStages:
			if err := val.Decode(&out.Stages); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case KeyWorkflow:
			out.Workflow = &Workflow{}
			if err := val.Decode(out.Workflow); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		default:
			job := &Job{}
			if err := val.Decode(job); err != nil {
				return fmt.Errorf("decode job %s: %w", key, err)
			}
			job.Name = key
			if err := out.AddJob(job); err != nil {
				return err
			}
		}
	}
	*p = out
	return nil
}
