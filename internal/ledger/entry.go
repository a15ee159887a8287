// Package ledger records generated pipeline documents in an append-only,
// hash-chained and signed JSON lines file.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"svcpipe/pkg/utils"
)

// Entry is a tamper-evident record of one generation run.
type Entry struct {
	Index        int      `json:"index"`
	Timestamp    string   `json:"timestamp"`
	RunID        string   `json:"runId"`
	ChangeRef    string   `json:"changeRef"`
	Services     []string `json:"services"`
	DocumentHash string   `json:"documentHash"`
	PrevHash     string   `json:"prevHash"`
	Hash         string   `json:"hash"`
	Signature    string   `json:"signature"`
	PubKey       string   `json:"pubKey"`
}

// canonicalData excludes Hash, Signature and PubKey.
func (e *Entry) canonicalData() ([]byte, error) {
	services := e.Services
	if services == nil {
		services = []string{}
	}
	view := struct {
		Index        int      `json:"index"`
		Timestamp    string   `json:"timestamp"`
		RunID        string   `json:"runId"`
		ChangeRef    string   `json:"changeRef"`
		Services     []string `json:"services"`
		DocumentHash string   `json:"documentHash"`
		PrevHash     string   `json:"prevHash"`
	}{
		Index:        e.Index,
		Timestamp:    e.Timestamp,
		RunID:        e.RunID,
		ChangeRef:    e.ChangeRef,
		Services:     services,
		DocumentHash: e.DocumentHash,
		PrevHash:     e.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash returns the SHA-256 of the canonical fields.
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	return utils.HashBytes(data), nil
}

// NewEntry describes one generated document. Index and PrevHash are filled
// in by Ledger.Append.
func NewEntry(changeRef string, services []string, document []byte, now time.Time) (*Entry, error) {
	e := &Entry{
		Timestamp:    now.UTC().Format(time.RFC3339),
		RunID:        uuid.NewString(),
		ChangeRef:    changeRef,
		Services:     append([]string(nil), services...),
		DocumentHash: utils.HashBytes(document),
	}
	h, err := e.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	return e, nil
}
