package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcpipe/internal/core"
	"svcpipe/internal/inventory"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.Equal(t, "services", s.ServicesDir)
	assert.Equal(t, "_templates", s.TemplateDir)
	assert.Equal(t, []string{"main", "master"}, s.TrunkBranches)
	assert.Equal(t, 30*time.Second, s.GitTimeout)
	assert.Equal(t, "child-pipeline.yml", s.OutputFile)
	assert.Len(t, s.Projects, 4)

	opts := s.BuildOptions()
	assert.Equal(t, "${CI_IMAGE}", opts.Image)
	assert.Equal(t, "main", opts.TrunkBranch)
	assert.Equal(t, "./scripts/ci/deploy_service.sh", opts.Scripts[core.StageDeploy])
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
services_dir   = "apps"
trunk_branches = ["trunk"]
fetch_depth    = 0
git_timeout    = "1m"
output_file    = "out/child.yml"

variables = {
  CI_IMAGE = "$${CI_IMAGE}"
  EXTRA    = "1"
}

job {
  runner_tag     = "k8s"
  resource_group = "staging"
}

stage "deploy" {
  script = "./deploy.sh"
}

inventory {
  unknown_role = "skip"

  project "lxc" {}

  project "talos-vms" {
    group = "talos_cluster"
  }
}
`)

	s, err := LoadFile(Defaults(), path)
	require.NoError(t, err)

	assert.Equal(t, "apps", s.ServicesDir)
	assert.Equal(t, []string{"trunk"}, s.TrunkBranches)
	assert.Equal(t, 0, s.FetchDepth)
	assert.Equal(t, time.Minute, s.GitTimeout)
	assert.Equal(t, "out/child.yml", s.OutputFile)
	assert.Equal(t, "k8s", s.RunnerTag)
	assert.Equal(t, "staging", s.ResourceGroup)
	assert.Equal(t, "${CI_IMAGE}", s.Image, "unset job fields keep defaults")

	v, _ := s.Variables.Get("SERVICES_DIR")
	assert.Equal(t, "apps", v)
	v, _ = s.Variables.Get("CI_IMAGE")
	assert.Equal(t, "${CI_IMAGE}", v)
	v, ok := s.Variables.Get("EXTRA")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	opts := s.BuildOptions()
	assert.Equal(t, "./deploy.sh", opts.Scripts[core.StageDeploy])
	assert.Equal(t, "./scripts/ci/validate-service.sh", opts.Scripts[core.StageValidate])
	assert.Equal(t, "trunk", opts.TrunkBranch)

	policy, err := s.UnknownPolicy()
	require.NoError(t, err)
	assert.Equal(t, inventory.PolicySkip, policy)

	assert.Equal(t, []inventory.Project{
		{Path: "terraform/lxc", EnvPrefix: "LXC_TF_", OutputFile: "ansible/lxc/inventory/hosts.yml", Group: "lxc"},
		{Path: "terraform/talos-vms", EnvPrefix: "TALOS_VMS_TF_", OutputFile: "ansible/talos-vms/inventory/hosts.yml", Group: "talos_cluster"},
	}, s.Projects)
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `services_dir = `},
		{"unknown attribute", `colour = "blue"`},
		{"unknown stage", "stage \"build\" {\n  script = \"x\"\n}\n"},
		{"bad timeout", `git_timeout = "soon"`},
		{"empty trunk", `trunk_branches = []`},
		{"bad policy", "inventory {\n  unknown_role = \"etcd\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(Defaults(), writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	missing := filepath.Join(t.TempDir(), DefaultFile)

	s, err := Load(missing, false, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults().OutputFile, s.OutputFile)

	_, err = Load(missing, true, envMap(nil))
	assert.Error(t, err)

	path := writeFile(t, `remote = "upstream"`)
	s, err = Load(path, true, envMap(map[string]string{EnvOutput: "env.yml"}))
	require.NoError(t, err)
	assert.Equal(t, "upstream", s.Remote)
	assert.Equal(t, "env.yml", s.OutputFile)
}

func TestApplyEnv(t *testing.T) {
	s, err := ApplyEnv(Defaults(), envMap(map[string]string{
		EnvServicesDir: "stacks",
		EnvFetchDepth:  "10",
		EnvGitTimeout:  "5s",
		EnvUnknownRole: "master",
	}))
	require.NoError(t, err)
	assert.Equal(t, "stacks", s.ServicesDir)
	assert.Equal(t, 10, s.FetchDepth)
	assert.Equal(t, 5*time.Second, s.GitTimeout)
	assert.Equal(t, "master", s.UnknownRole)
	v, _ := s.Variables.Get("SERVICES_DIR")
	assert.Equal(t, "stacks", v)

	for _, env := range []map[string]string{
		{EnvFetchDepth: "-1"},
		{EnvGitTimeout: "later"},
		{EnvUnknownRole: "etcd"},
	} {
		_, err := ApplyEnv(Defaults(), envMap(env))
		assert.Error(t, err, "%v", env)
	}
}

func TestDefaultsAreIndependent(t *testing.T) {
	a := Defaults()
	a.Scripts[core.StageDeploy] = "changed"
	a.Variables[0].Value = "changed"
	b := Defaults()
	assert.NotEqual(t, "changed", b.Scripts[core.StageDeploy])
	assert.NotEqual(t, "changed", b.Variables[0].Value)
}
