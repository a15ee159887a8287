package lint

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// parsableLine matches yamllint's parsable format:
// file:line:column: [severity] message (rule). The rule name holds no
// parentheses, so messages may.
var parsableLine = regexp.MustCompile(`^(.+?):(\d+):(\d+): \[(\w+)\] (.+?) \(([^()]+)\)$`)

// Issue is one GitLab code-quality report entry.
type Issue struct {
	Description string   `json:"description"`
	CheckName   string   `json:"check_name"`
	Fingerprint string   `json:"fingerprint"`
	Severity    string   `json:"severity"`
	Location    Location `json:"location"`
}

type Location struct {
	Path  string `json:"path"`
	Lines Lines  `json:"lines"`
}

type Lines struct {
	Begin int `json:"begin"`
}

// ParseYamllint converts yamllint parsable output into code-quality issues.
// Lines that do not match the format are ignored.
func ParseYamllint(output string) []Issue {
	issues := []Issue{}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		m := parsableLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		file, lineNum, col, severity, message, rule := m[1], m[2], m[3], m[4], m[5], m[6]
		begin, _ := strconv.Atoi(lineNum)

		sev := "minor"
		if severity == "error" {
			sev = "major"
		}
		issues = append(issues, Issue{
			Description: fmt.Sprintf("%s (%s)", message, rule),
			CheckName:   "yamllint/" + rule,
			Fingerprint: fmt.Sprintf("%s:%s:%s:%s", file, lineNum, col, rule),
			Severity:    sev,
			Location:    Location{Path: file, Lines: Lines{Begin: begin}},
		})
	}
	return issues
}

// CodeQualityJSON renders issues as an indented JSON array.
func CodeQualityJSON(issues []Issue) ([]byte, error) {
	if issues == nil {
		issues = []Issue{}
	}
	return json.MarshalIndent(issues, "", "  ")
}
