package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"svcpipe/internal/security"
)

const (
	lockSuffix  = ".lock"
	lockTimeout = 10 * time.Second
	lockPoll    = 20 * time.Millisecond
)

// Ledger is an append-only list of entries backed by a JSON lines file.
// Writers in other processes are serialized through a lock file next to it.
type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
}

// Open loads the ledger at path. A missing file is an empty ledger; the file
// is created on first append.
func Open(path string) (*Ledger, error) {
	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	return &Ledger{path: path, entries: entries}, nil
}

func readEntries(path string) ([]*Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var entries []*Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode ledger entry %d: %w", len(entries), err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// Path returns the backing file.
func (l *Ledger) Path() string { return l.path }

// Append links e to the head of the file, signs it and persists it. The file
// is re-read under the lock so entries written by other processes since Open
// are chained onto.
func (l *Ledger) Append(e *Entry, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	if len(priv) == 0 {
		return errors.New("private key is empty, cannot sign entry")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	unlock, err := acquireLock(l.path + lockSuffix)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := readEntries(l.path)
	if err != nil {
		return err
	}

	e.Index = len(entries)
	e.PrevHash = ""
	if n := len(entries); n > 0 {
		e.PrevHash = entries[n-1].Hash
	}
	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h
	e.Signature = security.SignData(priv, []byte(e.Hash))
	e.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	l.entries = append(entries, e)
	return nil
}

// acquireLock creates path exclusively, polling until lockTimeout.
func acquireLock(path string) (func(), error) {
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock ledger: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock ledger: %s held for more than %s", path, lockTimeout)
		}
		time.Sleep(lockPoll)
	}
}

// Entries returns a copy of the entries in order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LastHash returns the head hash, or "" when empty.
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Hash
}
