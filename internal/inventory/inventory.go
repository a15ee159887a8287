// Package inventory turns Terraform outputs into Ansible inventory documents.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AnsibleInfoOutput is the Terraform output carrying per-host data.
const AnsibleInfoOutput = "ansible_info"

// Project is one Terraform root module feeding an inventory group.
type Project struct {
	Path       string // Terraform directory, relative to the repository root
	EnvPrefix  string // prefix of its backend credential variables
	OutputFile string // inventory file, relative to the repository root
	Group      string // Ansible group name
}

// DefaultProjects mirrors the repository's Terraform layout.
func DefaultProjects() []Project {
	return []Project{
		{Path: "terraform/lxc", EnvPrefix: "LXC_TF_", OutputFile: "ansible/lxc/inventory/hosts.yml", Group: "lxc_containers"},
		{Path: "terraform/linux-vms", EnvPrefix: "LINUX_TF_", OutputFile: "ansible/linux-vms/inventory/hosts.yml", Group: "linux_vms"},
		{Path: "terraform/talos-vms", EnvPrefix: "TALOS_TF_", OutputFile: "ansible/talos/inventory/hosts.yml", Group: "talos_cluster"},
		{Path: "terraform/windows-vms", EnvPrefix: "WIN_TF_", OutputFile: "ansible/windows-vms/inventory/hosts.yml", Group: "windows_vms"},
	}
}

// HostVar is one host variable.
type HostVar struct {
	Key   string
	Value interface{}
}

// Host is one inventory host with ordered variables.
type Host struct {
	Name string
	Vars []HostVar
}

// Var returns the value of key.
func (h Host) Var(key string) (interface{}, bool) {
	for _, v := range h.Vars {
		if v.Key == key {
			return v.Value, true
		}
	}
	return nil, false
}

// ProjectHosts are the non-k3s hosts of one project.
type ProjectHosts struct {
	Project Project
	Hosts   []Host
}

// Result is everything collected in one run.
type Result struct {
	Projects []ProjectHosts
	Masters  []Host
	Workers  []Host
	All      []Host
}

// connection keys come first, in this order; these plus bookkeeping keys are
// never copied as extra vars.
var (
	connectionKeys = []string{"ansible_host", "ansible_user", "ansible_ssh_private_key_file"}
	reservedKeys   = map[string]bool{
		"ansible_host": true, "ansible_user": true, "ansible_ssh_private_key_file": true,
		"type": true, "groups": true, "k3s_role": true,
	}
)

// Collector gathers hosts from every configured project.
type Collector struct {
	source Source
	policy UnknownPolicy
	getenv func(string) string
	logger *zap.Logger
}

// NewCollector creates a Collector. getenv resolves backend credentials.
func NewCollector(source Source, policy UnknownPolicy, getenv func(string) string, logger *zap.Logger) *Collector {
	if getenv == nil {
		getenv = os.Getenv
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{source: source, policy: policy, getenv: getenv, logger: logger}
}

// Collect reads every project under repoDir. Projects that are missing, fail
// or lack ansible_info are skipped with a warning. A host name seen in more
// than one project keeps the data of the last project that reports it.
func (c *Collector) Collect(ctx context.Context, repoDir string, projects []Project) *Result {
	res := &Result{}
	all := map[string]Host{}
	masters := map[string]Host{}
	workers := map[string]Host{}
	for _, p := range projects {
		info, ok := c.ansibleInfo(ctx, repoDir, p)
		if !ok {
			continue
		}

		ph := ProjectHosts{Project: p}
		for _, name := range sortedKeys(info) {
			data := info[name]
			roleField, _ := data["k3s_role"].(string)
			host := buildHost(name, data, roleField)
			all[name] = host

			role, isK3s := Classify(name, roleField)
			if !isK3s {
				ph.Hosts = append(ph.Hosts, host)
				continue
			}
			if role == RoleUnknown {
				c.logger.Warn("Could not determine role for k3s node, applying policy",
					zap.String("host", name), zap.String("policy", string(c.policy)))
			}
			resolved, keep := ResolveRole(role, c.policy)
			switch {
			case !keep:
				continue
			case resolved == RoleMaster:
				masters[name] = host
			default:
				workers[name] = host
			}
		}
		if len(ph.Hosts) > 0 {
			res.Projects = append(res.Projects, ph)
		}
	}
	res.All = sortedHosts(all)
	res.Masters = sortedHosts(masters)
	res.Workers = sortedHosts(workers)
	return res
}

func sortedHosts(m map[string]Host) []Host {
	if len(m) == 0 {
		return nil
	}
	hosts := make([]Host, 0, len(m))
	for _, name := range sortedKeys(m) {
		hosts = append(hosts, m[name])
	}
	return hosts
}

func (c *Collector) ansibleInfo(ctx context.Context, repoDir string, p Project) (map[string]map[string]interface{}, bool) {
	dir := filepath.Join(repoDir, filepath.FromSlash(p.Path))
	if _, err := os.Stat(dir); err != nil {
		c.logger.Warn("Project path not found", zap.String("path", dir))
		return nil, false
	}

	backend := BackendFromEnv(p.EnvPrefix, c.getenv)
	outputs, err := c.source.Outputs(ctx, dir, backend)
	if err != nil {
		c.logger.Warn("Reading terraform outputs failed", zap.String("path", p.Path), zap.Error(err))
		return nil, false
	}

	out, ok := outputs[AnsibleInfoOutput]
	if !ok {
		c.logger.Warn("No ansible_info output", zap.String("path", p.Path))
		return nil, false
	}
	var info map[string]map[string]interface{}
	if err := json.Unmarshal(out.Value, &info); err != nil {
		c.logger.Warn("Malformed ansible_info output", zap.String("path", p.Path), zap.Error(err))
		return nil, false
	}
	if len(info) == 0 {
		c.logger.Warn("Empty ansible_info output", zap.String("path", p.Path))
		return nil, false
	}
	return info, true
}

func buildHost(name string, data map[string]interface{}, roleField string) Host {
	h := Host{Name: name}
	for _, k := range connectionKeys {
		h.Vars = append(h.Vars, HostVar{Key: k, Value: data[k]})
	}
	if roleField != "" {
		h.Vars = append(h.Vars, HostVar{Key: "k3s_role", Value: roleField})
	}
	for _, k := range sortedKeys(data) {
		if reservedKeys[k] || isEmpty(data[k]) {
			continue
		}
		h.Vars = append(h.Vars, HostVar{Key: k, Value: data[k]})
	}
	return h
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Documents

const headerRule = "# ============================================================================\n"

func header(title string) string {
	return headerRule +
		"# Ansible Inventory (" + title + ")\n" +
		headerRule +
		"# Auto-generated from Terraform state - DO NOT EDIT MANUALLY\n" +
		"# Regenerate with: svcpipe inventory\n" +
		headerRule + "\n"
}

// ProjectDocument renders the inventory of one project group.
func ProjectDocument(group string, hosts []Host) ([]byte, error) {
	doc := mapping(
		"all", mapping(
			"children", mapping(
				"proxmox_hosts", mapping(
					"children", mapping(
						group, mapping("hosts", hostsNode(hosts)),
					),
				),
			),
		),
	)
	return render(header(group), doc)
}

// K3sDocument renders the k3s inventory; empty role groups are omitted.
func K3sDocument(masters, workers []Host) ([]byte, error) {
	groups := mapping()
	if len(masters) > 0 {
		appendPair(groups, "masters", mapping("hosts", hostsNode(masters)))
	}
	if len(workers) > 0 {
		appendPair(groups, "workers", mapping("hosts", hostsNode(workers)))
	}
	doc := mapping(
		"all", mapping(
			"children", mapping(
				"proxmox_hosts", mapping(
					"children", mapping(
						"k3s_cluster", mapping("children", groups),
					),
				),
			),
		),
	)
	return render(header("k3s_cluster"), doc)
}

// MergedDocument renders every host under proxmox_hosts.
func MergedDocument(hosts []Host) ([]byte, error) {
	doc := mapping(
		"all", mapping(
			"children", mapping(
				"proxmox_hosts", mapping("hosts", hostsNode(hosts)),
			),
		),
	)
	return render(header("Merged - All Hosts"), doc)
}

func render(head string, doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(head)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	return buf.Bytes(), nil
}

func hostsNode(hosts []Host) *yaml.Node {
	n := mapping()
	for _, h := range hosts {
		vars := mapping()
		for _, v := range h.Vars {
			var val yaml.Node
			if err := val.Encode(v.Value); err != nil {
				val = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(v.Value)}
			}
			appendPair(vars, v.Key, &val)
		}
		appendPair(n, h.Name, vars)
	}
	return n
}

// mapping builds a mapping node from alternating key, *yaml.Node arguments.
func mapping(kv ...interface{}) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(kv); i += 2 {
		appendPair(n, kv[i].(string), kv[i+1].(*yaml.Node))
	}
	return n
}

func appendPair(n *yaml.Node, key string, val *yaml.Node) {
	n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
}
