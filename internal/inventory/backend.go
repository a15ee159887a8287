package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"svcpipe/internal/core"
)

// BackendConfig holds the HTTP state backend credentials of one Terraform
// project. It is passed to the terraform process explicitly and never
// written into the generator's own environment.
type BackendConfig struct {
	Address       string
	LockAddress   string
	UnlockAddress string
	Username      string
	Password      string
	Headers       string
}

// BackendFromEnv reads <prefix>ADDRESS, <prefix>USERNAME, ... via getenv.
func BackendFromEnv(prefix string, getenv func(string) string) BackendConfig {
	if prefix == "" {
		return BackendConfig{}
	}
	return BackendConfig{
		Address:       getenv(prefix + "ADDRESS"),
		LockAddress:   getenv(prefix + "LOCK_ADDRESS"),
		UnlockAddress: getenv(prefix + "UNLOCK_ADDRESS"),
		Username:      getenv(prefix + "USERNAME"),
		Password:      getenv(prefix + "PASSWORD"),
		Headers:       getenv(prefix + "HEADERS"),
	}
}

// Environ returns the TF_HTTP_* assignments for the non-empty fields.
func (b BackendConfig) Environ() []string {
	pairs := []struct{ key, val string }{
		{"TF_HTTP_ADDRESS", b.Address},
		{"TF_HTTP_LOCK_ADDRESS", b.LockAddress},
		{"TF_HTTP_UNLOCK_ADDRESS", b.UnlockAddress},
		{"TF_HTTP_USERNAME", b.Username},
		{"TF_HTTP_PASSWORD", b.Password},
		{"TF_HTTP_HEADERS", b.Headers},
	}
	var out []string
	for _, p := range pairs {
		if p.val != "" {
			out = append(out, p.key+"="+p.val)
		}
	}
	return out
}

// String never prints secrets.
func (b BackendConfig) String() string {
	pw := ""
	if b.Password != "" {
		pw = "***"
	}
	return fmt.Sprintf("address=%s username=%s password=%s", b.Address, b.Username, pw)
}

// Output is one Terraform output value.
type Output struct {
	Sensitive bool            `json:"sensitive"`
	Value     json.RawMessage `json:"value"`
}

// Source returns the outputs of the Terraform project in dir.
type Source interface {
	Outputs(ctx context.Context, dir string, backend BackendConfig) (map[string]Output, error)
}

// TerraformSource runs "terraform output -json".
type TerraformSource struct {
	exec    *core.Executor
	baseEnv []string
}

// NewTerraformSource creates a source that inherits baseEnv (os.Environ() when nil).
func NewTerraformSource(timeout time.Duration, baseEnv []string) *TerraformSource {
	if baseEnv == nil {
		baseEnv = os.Environ()
	}
	return &TerraformSource{exec: core.NewExecutor(timeout), baseEnv: baseEnv}
}

func (s *TerraformSource) Outputs(ctx context.Context, dir string, backend BackendConfig) (map[string]Output, error) {
	res, err := s.exec.Run(ctx, core.Command{
		Name: "terraform",
		Args: []string{"output", "-json"},
		Dir:  dir,
		Env:  MergeEnv(withoutBackend(s.baseEnv), backend.Environ()),
	})
	if err != nil {
		return nil, err
	}
	var outputs map[string]Output
	if err := json.Unmarshal([]byte(res.Stdout), &outputs); err != nil {
		return nil, fmt.Errorf("decode terraform outputs in %s: %w", dir, err)
	}
	return outputs, nil
}

// withoutBackend drops inherited TF_HTTP_* so one project's credentials never
// reach another project's terraform run.
func withoutBackend(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if !strings.HasPrefix(kv, "TF_HTTP_") {
			out = append(out, kv)
		}
	}
	return out
}

// MergeEnv returns base with overrides applied; later keys win.
func MergeEnv(base, overrides []string) []string {
	index := make(map[string]int, len(base))
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range append(append([]string(nil), base...), overrides...) {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	return out
}
