// Package config assembles Settings from defaults, an optional HCL file and
// the environment.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"svcpipe/internal/changeset"
	"svcpipe/internal/core"
	"svcpipe/internal/inventory"
	"svcpipe/internal/services"
)

// DefaultFile is looked up in the repository root when no --config is given.
const DefaultFile = "svcpipe.hcl"

// Settings is the resolved configuration of one run.
type Settings struct {
	ServicesDir   string
	TemplateDir   string
	SkipPatterns  []string
	TrunkBranches []string
	Remote        string
	FetchDepth    int
	GitTimeout    time.Duration
	OutputFile    string

	Image          string
	RunnerTag      string
	ResourceGroup  string
	TagVariable    string
	BranchVariable string
	Scripts        map[core.Stage]string
	Variables      core.Vars

	UnknownRole string
	Projects    []inventory.Project
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	build := core.DefaultBuildOptions()
	return Settings{
		ServicesDir:    services.DefaultRoot,
		TemplateDir:    services.DefaultTemplate,
		SkipPatterns:   append([]string(nil), services.DefaultSkipPatterns...),
		TrunkBranches:  []string{"main", "master"},
		Remote:         "origin",
		FetchDepth:     50,
		GitTimeout:     30 * time.Second,
		OutputFile:     "child-pipeline.yml",
		Image:          build.Image,
		RunnerTag:      build.RunnerTag,
		ResourceGroup:  build.ResourceGroup,
		TagVariable:    build.TagVariable,
		BranchVariable: build.BranchVariable,
		Scripts:        build.Scripts,
		Variables:      core.DefaultVariables(),
		UnknownRole:    string(inventory.PolicyWorker),
		Projects:       inventory.DefaultProjects(),
	}
}

// BuildOptions maps the settings onto job builder options.
func (s Settings) BuildOptions() core.BuildOptions {
	opts := core.DefaultBuildOptions()
	opts.Image = s.Image
	opts.RunnerTag = s.RunnerTag
	opts.ResourceGroup = s.ResourceGroup
	opts.TagVariable = s.TagVariable
	opts.BranchVariable = s.BranchVariable
	for stage, script := range s.Scripts {
		opts.Scripts[stage] = script
	}
	if len(s.TrunkBranches) > 0 {
		opts.TrunkBranch = s.TrunkBranches[0]
	}
	return opts
}

// ResolverOptions maps the settings onto change-set resolver options.
func (s Settings) ResolverOptions() changeset.Options {
	return changeset.Options{
		TrunkBranches: s.TrunkBranches,
		Remote:        s.Remote,
		FetchDepth:    s.FetchDepth,
	}
}

// ExtractorOptions maps the settings onto service extractor options.
func (s Settings) ExtractorOptions() services.Options {
	return services.Options{
		Root:         s.ServicesDir,
		TemplateDir:  s.TemplateDir,
		SkipPatterns: s.SkipPatterns,
	}
}

// UnknownPolicy parses the configured unknown-role policy.
func (s Settings) UnknownPolicy() (inventory.UnknownPolicy, error) {
	return inventory.ParseUnknownPolicy(s.UnknownRole)
}

// hclFile is the decoded layout of a settings file. Pointer fields are
// optional and only override defaults when present.
type hclFile struct {
	ServicesDir   *string           `hcl:"services_dir,optional"`
	TemplateDir   *string           `hcl:"template_dir,optional"`
	SkipPatterns  *[]string         `hcl:"skip_patterns,optional"`
	TrunkBranches *[]string         `hcl:"trunk_branches,optional"`
	Remote        *string           `hcl:"remote,optional"`
	FetchDepth    *int              `hcl:"fetch_depth,optional"`
	GitTimeout    *string           `hcl:"git_timeout,optional"`
	OutputFile    *string           `hcl:"output_file,optional"`
	Variables     map[string]string `hcl:"variables,optional"`
	Job           *hclJob           `hcl:"job,block"`
	Stages        []*hclStage       `hcl:"stage,block"`
	Inventory     *hclInventory     `hcl:"inventory,block"`
}

type hclJob struct {
	Image          *string `hcl:"image,optional"`
	RunnerTag      *string `hcl:"runner_tag,optional"`
	ResourceGroup  *string `hcl:"resource_group,optional"`
	TagVariable    *string `hcl:"tag_variable,optional"`
	BranchVariable *string `hcl:"branch_variable,optional"`
}

type hclStage struct {
	Name   string `hcl:"name,label"`
	Script string `hcl:"script"`
}

type hclInventory struct {
	UnknownRole *string       `hcl:"unknown_role,optional"`
	Projects    []*hclProject `hcl:"project,block"`
}

type hclProject struct {
	Name       string  `hcl:"name,label"`
	Path       *string `hcl:"path,optional"`
	EnvPrefix  *string `hcl:"env_prefix,optional"`
	OutputFile *string `hcl:"output_file,optional"`
	Group      *string `hcl:"group,optional"`
}

// LoadFile applies the settings file at path on top of s.
func LoadFile(s Settings, path string) (Settings, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return s, fmt.Errorf("failed to parse settings file %s: %w", path, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return s, fmt.Errorf("failed to decode settings file %s: %w", path, diags)
	}
	if err := parsed.apply(&s); err != nil {
		return s, fmt.Errorf("settings file %s: %w", path, err)
	}
	return s, nil
}

// Load returns defaults, overridden by the file at path when it exists and by
// the environment. An explicit path must exist; the default file may not.
func Load(path string, explicit bool, getenv func(string) string) (Settings, error) {
	s := Defaults()
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if s, err = LoadFile(s, path); err != nil {
				return s, err
			}
		case explicit:
			return s, fmt.Errorf("settings file: %w", err)
		}
	}
	return ApplyEnv(s, getenv)
}

func (f *hclFile) apply(s *Settings) error {
	setString(&s.ServicesDir, f.ServicesDir)
	setString(&s.TemplateDir, f.TemplateDir)
	if f.SkipPatterns != nil {
		s.SkipPatterns = *f.SkipPatterns
	}
	if f.TrunkBranches != nil {
		if len(*f.TrunkBranches) == 0 {
			return fmt.Errorf("trunk_branches must not be empty")
		}
		s.TrunkBranches = *f.TrunkBranches
	}
	setString(&s.Remote, f.Remote)
	if f.FetchDepth != nil {
		if *f.FetchDepth < 0 {
			return fmt.Errorf("fetch_depth must not be negative")
		}
		s.FetchDepth = *f.FetchDepth
	}
	if f.GitTimeout != nil {
		d, err := time.ParseDuration(*f.GitTimeout)
		if err != nil {
			return fmt.Errorf("git_timeout: %w", err)
		}
		s.GitTimeout = d
	}
	setString(&s.OutputFile, f.OutputFile)

	if f.ServicesDir != nil && f.Variables["SERVICES_DIR"] == "" {
		s.Variables = setVar(s.Variables, "SERVICES_DIR", *f.ServicesDir)
	}
	for _, name := range sortedKeys(f.Variables) {
		s.Variables = setVar(s.Variables, name, f.Variables[name])
	}

	if j := f.Job; j != nil {
		setString(&s.Image, j.Image)
		setString(&s.RunnerTag, j.RunnerTag)
		setString(&s.ResourceGroup, j.ResourceGroup)
		setString(&s.TagVariable, j.TagVariable)
		setString(&s.BranchVariable, j.BranchVariable)
	}

	for _, st := range f.Stages {
		stage := core.Stage(st.Name)
		if core.StageIndex(stage) < 0 {
			return fmt.Errorf("unknown stage %q", st.Name)
		}
		scripts := make(map[core.Stage]string, len(s.Scripts))
		for k, v := range s.Scripts {
			scripts[k] = v
		}
		scripts[stage] = st.Script
		s.Scripts = scripts
	}

	if inv := f.Inventory; inv != nil {
		setString(&s.UnknownRole, inv.UnknownRole)
		if len(inv.Projects) > 0 {
			s.Projects = projectsFromHCL(inv.Projects)
		}
	}
	if _, err := s.UnknownPolicy(); err != nil {
		return err
	}
	return nil
}

// projectsFromHCL fills unset project fields by convention from the label.
func projectsFromHCL(blocks []*hclProject) []inventory.Project {
	out := make([]inventory.Project, 0, len(blocks))
	for _, b := range blocks {
		p := inventory.Project{
			Path:       "terraform/" + b.Name,
			EnvPrefix:  strings.ToUpper(strings.ReplaceAll(b.Name, "-", "_")) + "_TF_",
			OutputFile: "ansible/" + b.Name + "/inventory/hosts.yml",
			Group:      strings.ReplaceAll(b.Name, "-", "_"),
		}
		setString(&p.Path, b.Path)
		setString(&p.EnvPrefix, b.EnvPrefix)
		setString(&p.OutputFile, b.OutputFile)
		setString(&p.Group, b.Group)
		out = append(out, p)
	}
	return out
}

// Environment variables that override settings.
const (
	EnvServicesDir = "SVCPIPE_SERVICES_DIR"
	EnvOutput      = "SVCPIPE_OUTPUT"
	EnvRemote      = "SVCPIPE_REMOTE"
	EnvFetchDepth  = "SVCPIPE_FETCH_DEPTH"
	EnvGitTimeout  = "SVCPIPE_GIT_TIMEOUT"
	EnvUnknownRole = "SVCPIPE_UNKNOWN_ROLE"
)

// ApplyEnv overrides s with the SVCPIPE_* variables that are set.
func ApplyEnv(s Settings, getenv func(string) string) (Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvServicesDir); v != "" {
		s.ServicesDir = v
		s.Variables = setVar(s.Variables, "SERVICES_DIR", v)
	}
	if v := getenv(EnvOutput); v != "" {
		s.OutputFile = v
	}
	if v := getenv(EnvRemote); v != "" {
		s.Remote = v
	}
	if v := getenv(EnvFetchDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s, fmt.Errorf("%s: invalid depth %q", EnvFetchDepth, v)
		}
		s.FetchDepth = n
	}
	if v := getenv(EnvGitTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvGitTimeout, err)
		}
		s.GitTimeout = d
	}
	if v := getenv(EnvUnknownRole); v != "" {
		if _, err := inventory.ParseUnknownPolicy(v); err != nil {
			return s, fmt.Errorf("%s: %w", EnvUnknownRole, err)
		}
		s.UnknownRole = v
	}
	return s, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// setVar replaces the value of name, or appends it.
func setVar(vars core.Vars, name, value string) core.Vars {
	out := append(core.Vars(nil), vars...)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, core.Var{Name: name, Value: value})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
