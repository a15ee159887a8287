package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEncodeKeyOrder(t *testing.T) {
	p := newTestAssembler(nil).Assemble([]ServiceID{"pihole-1", "adguard-1"})
	data, err := Encode(p)
	require.NoError(t, err)

	doc := string(data)
	require.True(t, strings.HasPrefix(doc, DocumentHeader))

	keys := []string{
		"\nvariables:",
		"\nstages:",
		"validate:adguard-1",
		"verify:adguard-1",
		"validate:pihole-1",
		"verify:pihole-1",
		"\nworkflow:",
	}
	last := -1
	for _, k := range keys {
		idx := strings.Index(doc, k)
		require.NotEqual(t, -1, idx, "missing %q in:\n%s", k, doc)
		assert.Greater(t, idx, last, "%q out of order", k)
		last = idx
	}
}

func TestEncodeIsValidYAML(t *testing.T) {
	data, err := Encode(newTestAssembler(nil).Assemble([]ServiceID{"pihole-1"}))
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &generic))

	deploy, ok := generic["deploy:pihole-1"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "production", deploy["resource_group"])

	needs, ok := deploy["needs"].([]interface{})
	require.True(t, ok)
	require.Len(t, needs, 1)
	assert.Equal(t, map[string]interface{}{"job": "backup:pihole-1", "optional": true}, needs[0])

	rules, ok := deploy["rules"].([]interface{})
	require.True(t, ok)
	require.Len(t, rules, 3)
	assert.Equal(t, map[string]interface{}{"if": `$CI_COMMIT_BRANCH == "main"`, "when": "manual", "allow_failure": false}, rules[1])
	assert.Equal(t, map[string]interface{}{"when": "never"}, rules[2])

	vars, ok := generic["variables"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "${CI_IMAGE}", vars["CI_IMAGE"])
}

func TestParsePipelineKeepsOrder(t *testing.T) {
	orig := newTestAssembler(nil).Assemble([]ServiceID{"b", "a"})
	data, err := Encode(orig)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "child-pipeline.yml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	parsed, err := LoadPipeline(path)
	require.NoError(t, err)

	assert.Equal(t, orig.JobNames(), parsed.JobNames())
	assert.Equal(t, orig.Variables, parsed.Variables)
	assert.Equal(t, orig.Stages, parsed.Stages)
	assert.Equal(t, orig.Job("deploy:a").Needs, parsed.Job("deploy:a").Needs)
	assert.Equal(t, orig.Job("deploy:a").Rules, parsed.Job("deploy:a").Rules)
}

func TestParsePipelineRejectsDuplicateMetaAsJob(t *testing.T) {
	_, err := ParsePipeline([]byte("- just\n- a list\n"))
	assert.Error(t, err)
}

func TestNeedBareName(t *testing.T) {
	var n Need
	require.NoError(t, yaml.Unmarshal([]byte(`validate:a`), &n))
	assert.Equal(t, Need{Job: "validate:a", Required: true}, n)
}
