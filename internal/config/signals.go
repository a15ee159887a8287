package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"svcpipe/internal/changeset"
)

// CI environment variables read into Signals.
const (
	EnvTag          = "CI_COMMIT_TAG"
	EnvDeployAll    = "DEPLOY_ALL"
	EnvBranch       = "CI_COMMIT_BRANCH"
	EnvBeforeSHA    = "CI_COMMIT_BEFORE_SHA"
	EnvTargetBranch = "CI_MERGE_REQUEST_TARGET_BRANCH_NAME"
	EnvCI           = "CI"
)

// DefaultTargetBranch is the merge target when the CI does not name one.
const DefaultTargetBranch = "main"

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// LoadSignals loads .env files, then reads Signals from the environment.
func LoadSignals(envFiles ...string) changeset.Signals {
	LoadDotEnv(envFiles...)
	return SignalsFromEnv(os.Getenv)
}

// SignalsFromEnv maps CI variables onto resolver signals.
func SignalsFromEnv(getenv func(string) string) changeset.Signals {
	target := strings.TrimSpace(getenv(EnvTargetBranch))
	if target == "" {
		target = DefaultTargetBranch
	}
	return changeset.Signals{
		Tag:          strings.TrimSpace(getenv(EnvTag)),
		DeployAll:    truthy(getenv(EnvDeployAll)),
		Branch:       strings.TrimSpace(getenv(EnvBranch)),
		BeforeSHA:    strings.TrimSpace(getenv(EnvBeforeSHA)),
		TargetBranch: target,
		CI:           truthy(getenv(EnvCI)),
	}
}

// truthy treats any non-empty value as set unless it parses as false.
func truthy(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}
