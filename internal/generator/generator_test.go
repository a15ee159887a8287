package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"svcpipe/internal/changeset"
	"svcpipe/internal/config"
	"svcpipe/internal/core"
	"svcpipe/internal/ledger"
	"svcpipe/internal/security"
	"svcpipe/internal/testutil"
)

// seedRepo creates a repository with three services and a template, and
// returns the SHA before the last commit.
func seedRepo(t *testing.T) (repo, before string) {
	t.Helper()
	repo = testutil.InitRepo(t)
	before = testutil.Commit(t, repo, "seed", map[string]string{
		"services/adguard-1/compose.yml":  "a",
		"services/nginx/compose.yml":      "b",
		"services/postgres/compose.yml":   "c",
		"services/_templates/compose.yml": "t",
		"README.md":                       "readme",
	})
	testutil.Commit(t, repo, "touch nginx", map[string]string{
		"services/nginx/conf.d/site.conf": "server {}",
		"services/nginx/README.md":        "docs",
	})
	return repo, before
}

func newGenerator(t *testing.T, repo string, logger *zap.Logger) *Generator {
	t.Helper()
	s := config.Defaults()
	s.GitTimeout = 10 * time.Second
	g := New(repo, s, logger)
	g.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerateTrunkPush(t *testing.T) {
	repo, before := seedRepo(t)
	g := newGenerator(t, repo, nil)

	out, err := g.Generate(context.Background(), changeset.Signals{Branch: "main", BeforeSHA: before})
	require.NoError(t, err)

	assert.Equal(t, before+"..HEAD", out.Ref.Range)
	assert.Equal(t, []core.ServiceID{"nginx"}, out.Services)
	assert.Equal(t, 5, out.Pipeline.JobCount())
	assert.NotNil(t, out.Pipeline.Job("deploy:nginx"))
	assert.Nil(t, out.Pipeline.Job("deploy:postgres"))

	parsed, err := core.ParsePipeline(out.Document)
	require.NoError(t, err)
	assert.Equal(t, out.Pipeline.JobNames(), parsed.JobNames())
}

func TestGenerateTagSelectsAllServices(t *testing.T) {
	repo, _ := seedRepo(t)
	g := newGenerator(t, repo, nil)

	out, err := g.Generate(context.Background(), changeset.Signals{Tag: "v1.0.0", Branch: "main"})
	require.NoError(t, err)
	assert.True(t, out.Ref.Full)
	assert.Empty(t, out.ChangedFiles)
	assert.Equal(t, []core.ServiceID{"adguard-1", "nginx", "postgres"}, out.Services)
	assert.Equal(t, 15, out.Pipeline.JobCount())
}

func TestGenerateNoServiceChanges(t *testing.T) {
	repo, _ := seedRepo(t)
	before := testutil.Git(t, repo, "rev-parse", "HEAD")
	testutil.Commit(t, repo, "docs", map[string]string{"README.md": "changed"})

	obs, logs := observer.New(zapcore.WarnLevel)
	g := newGenerator(t, repo, zap.New(obs))

	out, err := g.Generate(context.Background(), changeset.Signals{Branch: "main", BeforeSHA: before})
	require.NoError(t, err)
	assert.Empty(t, out.Services)
	assert.Equal(t, []string{core.PlaceholderJobName}, out.Pipeline.JobNames())
	assert.Equal(t, 1, logs.FilterMessage("No services changed").Len())

	path := filepath.Join(t.TempDir(), "services.txt")
	wrote, err := g.WriteServices(path, out.Services)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.NoFileExists(t, path)
}

func TestWriteArtifacts(t *testing.T) {
	repo, before := seedRepo(t)
	g := newGenerator(t, repo, nil)
	out, err := g.Generate(context.Background(), changeset.Signals{Branch: "main", BeforeSHA: before})
	require.NoError(t, err)

	dir := t.TempDir()
	docPath := filepath.Join(dir, "child-pipeline.yml")
	require.NoError(t, g.WriteDocument(docPath, out))
	data, err := os.ReadFile(docPath)
	require.NoError(t, err)
	assert.Equal(t, out.Document, data)
	assert.Equal(t, core.DocumentHeader, string(data[:len(core.DocumentHeader)]))

	listPath := filepath.Join(dir, "services.txt")
	wrote, err := g.WriteServices(listPath, out.Services)
	require.NoError(t, err)
	assert.True(t, wrote)
	data, err = os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Equal(t, "nginx\n", string(data))
}

func TestRecordAppendsLedgerEntry(t *testing.T) {
	repo, before := seedRepo(t)
	g := newGenerator(t, repo, nil)
	out, err := g.Generate(context.Background(), changeset.Signals{Branch: "main", BeforeSHA: before})
	require.NoError(t, err)

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv, _, err := security.EnsureKeyPair(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, err)

	e, err := g.Record(l, priv, pub, out)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Index)
	assert.Equal(t, []string{"nginx"}, e.Services)
	assert.Equal(t, before+"..HEAD", e.ChangeRef)
	assert.Equal(t, "2026-03-01T12:00:00Z", e.Timestamp)
	assert.NoError(t, l.VerifyChain(pub))
}

func TestRenderChangedFiles(t *testing.T) {
	repo, _ := seedRepo(t)
	g := newGenerator(t, repo, nil)

	out, err := g.RenderChangedFiles([]string{
		"services/postgres/compose.yml",
		"services/adguard-1/.gitignore",
		"services/unknown/compose.yml",
		"docs/index.md",
	})
	require.NoError(t, err)
	assert.Equal(t, []core.ServiceID{"postgres"}, out.Services)
	assert.Len(t, out.ChangedFiles, 4)
}

func TestDetectFailsOnBrokenRange(t *testing.T) {
	repo, _ := seedRepo(t)
	g := newGenerator(t, repo, nil)

	_, err := g.Detect(context.Background(), changeset.Signals{Branch: "main", BeforeSHA: "0123456789abcdef0123456789abcdef01234567"})
	require.Error(t, err)
	var cmdErr *core.CommandError
	assert.ErrorAs(t, err, &cmdErr)
}
