package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogStorage manages saving tool output to files
type LogStorage struct {
	BaseDir string
	now     func() time.Time
}

// NewLogStorage creates a new log storage handler
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir, now: time.Now}
}

// SaveLog saves the output of one tool run. The file name carries the
// category, a sanitized tool name and a timestamp.
func (ls *LogStorage) SaveLog(category, name, output string) (string, error) {
	if err := os.MkdirAll(ls.BaseDir, 0o775); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	timestamp := ls.now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%s.log", sanitize(category), sanitize(name), timestamp)
	filePath := filepath.Join(ls.BaseDir, filename)

	if err := os.WriteFile(filePath, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("write log: %w", err)
	}
	return filePath, nil
}

// sanitize removes special characters from names for filenames
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "step"
	}
	return string(clean)
}
