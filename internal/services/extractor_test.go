package services

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"svcpipe/internal/core"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"services/foo/compose.yml":           {Data: []byte("a")},
		"services/bar/compose.yml":           {Data: []byte("b")},
		"services/bar/config/deep/nested.cf": {Data: []byte("c")},
		"services/notadir.txt":               {Data: []byte("d")},
		"services/README.md":                 {Data: []byte("e")},
		"services/_templates/compose.yml":    {Data: []byte("f")},
		"services/empty":                     {Mode: fs.ModeDir},
		"docs/guide.md":                      {Data: []byte("g")},
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []core.ServiceID
	}{
		{"file in service", []string{"services/foo/app.yaml", "services/notadir.txt"}, []core.ServiceID{"foo"}},
		{"deep path attributes to top level", []string{"services/bar/config/deep/nested.cf"}, []core.ServiceID{"bar"}},
		{"duplicates collapse and sort", []string{"services/foo/a", "services/bar/b", "services/foo/c"}, []core.ServiceID{"bar", "foo"}},
		{"template excluded", []string{"services/_templates/compose.yml"}, nil},
		{"outside root ignored", []string{"docs/guide.md", "servicesx/foo/a", "foo/services/bar"}, nil},
		{"readme and gitignore skipped", []string{"services/foo/README.md", "services/bar/.gitignore", "services/README.md"}, nil},
		{"unknown service dropped", []string{"services/ghost/compose.yml"}, nil},
		{"root itself", []string{"services", "services/"}, nil},
		{"leading dot slash", []string{"./services/foo/a"}, []core.ServiceID{"foo"}},
		{"empty directory still a service", []string{"services/empty"}, []core.ServiceID{"empty"}},
		{"no paths", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(testFS(), Options{}, nil)
			got := e.Extract(tt.paths)
			assert.Equal(t, len(tt.want), len(got), "got %v", got)
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	paths := []string{"services/foo/a", "services/bar/b", "services/foo/b", "services/bar/c"}
	e := NewExtractor(testFS(), Options{}, nil)
	first := e.Extract(paths)
	assert.Equal(t, first, e.Extract(paths))
	assert.Equal(t, first, core.NormalizeServices(first))
}

func TestTemplateAlwaysExcluded(t *testing.T) {
	fsys := fstest.MapFS{"deploy/custom-tpl/x": {Data: []byte("x")}}
	e := NewExtractor(fsys, Options{Root: "deploy", TemplateDir: "custom-tpl"}, nil)
	assert.Empty(t, e.Extract([]string{"deploy/custom-tpl/x"}))
	assert.Empty(t, e.ListAll())
}

func TestListAll(t *testing.T) {
	e := NewExtractor(testFS(), Options{}, nil)
	assert.Equal(t, []core.ServiceID{"bar", "empty", "foo"}, e.ListAll())
}

func TestMissingRootWarnsAndReturnsEmpty(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	e := NewExtractor(fstest.MapFS{"other/x": {Data: []byte("x")}}, Options{}, zap.New(obs))

	assert.Empty(t, e.Extract([]string{"services/foo/a"}))
	assert.Empty(t, e.ListAll())
	assert.Equal(t, 2, logs.Len())
}

func TestNestedRoot(t *testing.T) {
	fsys := fstest.MapFS{"infra/services/api/main.tf": {Data: []byte("x")}}
	e := NewExtractor(fsys, Options{Root: "infra/services/"}, nil)
	assert.Equal(t, []core.ServiceID{"api"}, e.Extract([]string{"infra/services/api/main.tf"}))
}
