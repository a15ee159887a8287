package core

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DocumentHeader starts every emitted pipeline document.
const DocumentHeader = "---\n"

// Encode renders the pipeline as a YAML document with two-space indentation.
func Encode(p *Pipeline) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(DocumentHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePipeline parses YAML content into a Pipeline object
func ParsePipeline(data []byte) (*Pipeline, error) {
	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	return &pipeline, nil
}

// LoadPipeline reads a generated document from disk
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePipeline(data)
}
