package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJobsStructure(t *testing.T) {
	jobs := NewBuilder(BuildOptions{}).BuildJobs("pihole-1")
	require.Len(t, jobs, 5)

	wantNames := []string{
		"validate:pihole-1",
		"preflight:pihole-1",
		"backup:pihole-1",
		"deploy:pihole-1",
		"verify:pihole-1",
	}
	for i, job := range jobs {
		assert.Equal(t, wantNames[i], job.Name)
		assert.Equal(t, stageOrder[i], job.Stage)
	}
}

func TestBuildJobsNeeds(t *testing.T) {
	jobs := NewBuilder(BuildOptions{}).BuildJobs("pihole-1")

	assert.Empty(t, jobs[0].Needs, "validate has no dependency")
	for i := 1; i < len(jobs); i++ {
		require.Len(t, jobs[i].Needs, 1, jobs[i].Name)
		assert.Equal(t, jobs[i-1].Name, jobs[i].Needs[0].Job)
		assert.False(t, jobs[i].Needs[0].Required, "needs on %s must be optional", jobs[i].Name)
	}
}

func TestBuildJobsServiceBinding(t *testing.T) {
	jobs := NewBuilder(BuildOptions{}).BuildJobs("test-service")
	for _, job := range jobs {
		v, ok := job.Variables.Get("SERVICE")
		require.True(t, ok, job.Name)
		assert.Equal(t, "test-service", v)
		require.Len(t, job.Script, 1)
		assert.NotContains(t, job.Script[0], "test-service", "service must be passed via variable")
		assert.Contains(t, job.Script[0], `"$SERVICE"`)
	}
}

func TestDeployRules(t *testing.T) {
	jobs := NewBuilder(BuildOptions{}).BuildJobs("pihole-1")
	deploy := jobs[3]
	require.Equal(t, StageDeploy, deploy.Stage)

	assert.Equal(t, "production", deploy.ResourceGroup)
	require.Len(t, deploy.Rules, 3)

	assert.Equal(t, "$CI_COMMIT_TAG", deploy.Rules[0].If)
	assert.Equal(t, WhenAlways, deploy.Rules[0].When)

	assert.Equal(t, `$CI_COMMIT_BRANCH == "main"`, deploy.Rules[1].If)
	assert.Equal(t, WhenManual, deploy.Rules[1].When)
	require.NotNil(t, deploy.Rules[1].AllowFailure)
	assert.False(t, *deploy.Rules[1].AllowFailure)

	assert.Empty(t, deploy.Rules[2].If)
	assert.Equal(t, WhenNever, deploy.Rules[2].When)
}

func TestVerifyRules(t *testing.T) {
	verify := NewBuilder(BuildOptions{}).BuildJobs("pihole-1")[4]
	require.Len(t, verify.Rules, 3)
	assert.Equal(t, WhenAlways, verify.Rules[0].When)
	assert.Equal(t, WhenOnSuccess, verify.Rules[1].When)
	assert.Equal(t, WhenNever, verify.Rules[2].When)
	assert.Empty(t, verify.ResourceGroup)
}

func TestOnlyDeployAndVerifyCarryRules(t *testing.T) {
	for _, job := range NewBuilder(BuildOptions{}).BuildJobs("svc") {
		switch job.Stage {
		case StageDeploy, StageVerify:
			assert.NotEmpty(t, job.Rules, job.Name)
		default:
			assert.Empty(t, job.Rules, job.Name)
		}
	}
}

func TestBuilderCustomOptions(t *testing.T) {
	b := NewBuilder(BuildOptions{
		RunnerTag:     "docker",
		ResourceGroup: "staging",
		TrunkBranch:   "master",
		Scripts:       map[Stage]string{StageDeploy: "make deploy"},
	})
	jobs := b.BuildJobs("web")

	assert.Equal(t, []string{"docker"}, jobs[0].Tags)
	assert.Equal(t, "staging", jobs[3].ResourceGroup)
	assert.Equal(t, `make deploy "$SERVICE"`, jobs[3].Script[0])
	assert.Equal(t, `./scripts/ci/validate-service.sh "$SERVICE"`, jobs[0].Script[0])
	assert.Equal(t, `$CI_COMMIT_BRANCH == "master"`, jobs[3].Rules[1].If)
}

func TestPreviousStage(t *testing.T) {
	tests := []struct {
		stage  Stage
		want   Stage
		wantOK bool
	}{
		{StageValidate, "", false},
		{StagePreflight, StageValidate, true},
		{StageBackup, StagePreflight, true},
		{StageDeploy, StageBackup, true},
		{StageVerify, StageDeploy, true},
		{Stage("bogus"), "", false},
	}
	for _, tt := range tests {
		got, ok := PreviousStage(tt.stage)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PreviousStage(%s) = %q, %v, want %q, %v", tt.stage, got, ok, tt.want, tt.wantOK)
		}
	}
}
