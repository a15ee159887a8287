package inventory

import (
	"fmt"
	"strings"
)

// Role is the cluster role of a k3s node.
type Role int

const (
	RoleUnknown Role = iota
	RoleMaster
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleWorker:
		return "worker"
	}
	return "unknown"
}

// Hostname prefixes recognised when a node carries no explicit role.
const (
	MasterPrefix = "k3s-master-"
	WorkerPrefix = "k3s-worker-"
)

// ParseRole maps a role field onto a Role. Matching is case-insensitive.
func ParseRole(field string) Role {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "master", "control-plane", "server":
		return RoleMaster
	case "worker", "agent", "node":
		return RoleWorker
	}
	return RoleUnknown
}

// Classify decides whether a host is a k3s node and, if so, its role.
// An explicit role field takes precedence over the hostname prefix.
func Classify(hostname, roleField string) (role Role, isK3s bool) {
	if strings.TrimSpace(roleField) != "" {
		return ParseRole(roleField), true
	}
	switch {
	case strings.HasPrefix(hostname, MasterPrefix):
		return RoleMaster, true
	case strings.HasPrefix(hostname, WorkerPrefix):
		return RoleWorker, true
	}
	return RoleUnknown, false
}

// UnknownPolicy says where a k3s node of unknown role goes.
type UnknownPolicy string

const (
	PolicyWorker UnknownPolicy = "worker"
	PolicyMaster UnknownPolicy = "master"
	PolicySkip   UnknownPolicy = "skip"
)

// ParseUnknownPolicy validates a configured policy. Empty means PolicyWorker.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyWorker, nil
	case PolicyWorker, PolicyMaster, PolicySkip:
		return p, nil
	}
	return "", fmt.Errorf("unknown role policy %q (want worker, master or skip)", s)
}

// ResolveRole applies policy to role. Known roles pass through unchanged;
// ok is false when the node should be left out of the k3s inventory.
func ResolveRole(role Role, policy UnknownPolicy) (resolved Role, ok bool) {
	if role != RoleUnknown {
		return role, true
	}
	switch policy {
	case PolicyMaster:
		return RoleMaster, true
	case PolicySkip:
		return RoleUnknown, false
	}
	return RoleWorker, true
}
