package changeset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcpipe/internal/testutil"
)

func TestExecGitAgainstRepository(t *testing.T) {
	repo := testutil.InitRepo(t)
	before := testutil.Commit(t, repo, "add foo", map[string]string{"services/foo/compose.yml": "a"})
	testutil.Commit(t, repo, "add bar", map[string]string{
		"services/bar/compose.yml":        "b",
		"services/bar/config/deep/x.conf": "c",
	})

	git := NewExecGit(repo, 10*time.Second)
	ctx := context.Background()

	ref, err := NewResolver(git, Options{}, nil).Resolve(ctx, Signals{Branch: "main", BeforeSHA: before})
	require.NoError(t, err)
	assert.Equal(t, before+"..HEAD", ref.Range)

	files, err := ChangedFiles(ctx, git, ref)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"services/bar/compose.yml", "services/bar/config/deep/x.conf"}, files)
}

func TestExecGitFeatureBranchWithoutRemoteFallsBack(t *testing.T) {
	repo := testutil.InitRepo(t)
	testutil.Commit(t, repo, "one", map[string]string{"services/foo/a": "1"})
	testutil.Git(t, repo, "checkout", "-b", "feature/x")
	testutil.Commit(t, repo, "two", map[string]string{"services/baz/a": "2"})

	git := NewExecGit(repo, 10*time.Second)
	ref, err := NewResolver(git, Options{}, nil).Resolve(context.Background(), Signals{Branch: "feature/x", TargetBranch: "main", CI: true})
	require.NoError(t, err)
	assert.True(t, ref.Fallback)

	files, err := ChangedFiles(context.Background(), git, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"services/baz/a"}, files)
}
