package core

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ServiceID names one deployable service: a directory directly under the services root.
type ServiceID string

// Stage is one phase of the deployment pipeline.
type Stage string

const (
	StageValidate  Stage = "validate"
	StagePreflight Stage = "preflight"
	StageBackup    Stage = "backup"
	StageDeploy    Stage = "deploy"
	StageVerify    Stage = "verify"
)

// When is the action a rule takes once its condition matches.
type When string

const (
	WhenAlways    When = "always"
	WhenManual    When = "manual"
	WhenOnSuccess When = "on_success"
	WhenNever     When = "never"
)

// JobID returns the job identifier "{stage}:{service}".
func JobID(stage Stage, service ServiceID) string {
	return fmt.Sprintf("%s:%s", stage, service)
}

// Job represents one generated CI job.
type Job struct {
	Name          string   `yaml:"-"`                        // "{stage}:{service}" or a placeholder name
	Stage         Stage    `yaml:"stage"`                    // pipeline stage
	Image         string   `yaml:"image,omitempty"`          // container image
	Tags          []string `yaml:"tags,omitempty"`           // runner tags
	Script        []string `yaml:"script"`                   // commands, parameterised via Variables
	Needs         []Need   `yaml:"needs,omitempty"`          // ordering edges
	Variables     Vars     `yaml:"variables,omitempty"`      // per-job bindings (SERVICE)
	ResourceGroup string   `yaml:"resource_group,omitempty"` // mutual exclusion token
	Rules         []Rule   `yaml:"rules,omitempty"`          // first match wins
}

// Need is a dependency edge onto another job. A non-required edge does not
// block the dependent job when the target is skipped or absent.
type Need struct {
	Job      string
	Required bool
}

type needYAML struct {
	Job      string `yaml:"job"`
	Optional bool   `yaml:"optional"`
}

// MarshalYAML renders the edge in the orchestrator's needs syntax.
func (n Need) MarshalYAML() (interface{}, error) {
	return needYAML{Job: n.Job, Optional: !n.Required}, nil
}

// UnmarshalYAML accepts both the mapping form and a bare job name.
func (n *Need) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.Job = value.Value
		n.Required = true
		return nil
	}
	var raw needYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	n.Job = raw.Job
	n.Required = !raw.Optional
	return nil
}

// Rule is one (condition, action) pair. An empty If matches everything.
type Rule struct {
	If           string `yaml:"if,omitempty"`
	When         When   `yaml:"when"`
	AllowFailure *bool  `yaml:"allow_failure,omitempty"`
}

// Workflow holds the pipeline admission rules.
type Workflow struct {
	Rules []Rule `yaml:"rules"`
}

// Var is a single named variable.
type Var struct {
	Name  string
	Value string
}

// Vars is an ordered variable mapping; emission order equals insertion order.
type Vars []Var

// Get returns the value bound to name.
func (v Vars) Get(name string) (string, bool) {
	for _, kv := range v {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// MarshalYAML emits the variables as a mapping in declaration order.
func (v Vars) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range v {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Value},
		)
	}
	return node, nil
}

// UnmarshalYAML keeps the document order of the mapping.
func (v *Vars) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("variables: expected mapping, got %s", nodeKind(value))
	}
	out := make(Vars, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		out = append(out, Var{Name: value.Content[i].Value, Value: value.Content[i+1].Value})
	}
	*v = out
	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
