package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"svcpipe/internal/security"
)

// VerifyError locates the first broken entry.
type VerifyError struct {
	Index  int
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("ledger entry %d: %s", e.Index, e.Reason)
}

// VerifyChain recomputes every hash and checks links, indices and signatures.
// Every entry must be signed by trusted; the key embedded in an entry is only
// compared against it.
func (l *Ledger) VerifyChain(trusted ed25519.PublicKey) error {
	if len(trusted) != ed25519.PublicKeySize {
		return errors.New("trusted public key is missing or malformed")
	}
	want := hex.EncodeToString(trusted)

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.Index != i {
			return &VerifyError{Index: i, Reason: fmt.Sprintf("index mismatch: got %d", e.Index)}
		}
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for entry %d: %w", i, err)
		}
		if h != e.Hash {
			return &VerifyError{Index: i, Reason: "hash mismatch"}
		}
		if i > 0 && e.PrevHash != l.entries[i-1].Hash {
			return &VerifyError{Index: i, Reason: "prev hash mismatch"}
		}
		if i == 0 && e.PrevHash != "" {
			return &VerifyError{Index: i, Reason: "first entry has a prev hash"}
		}
		if e.PubKey != want {
			return &VerifyError{Index: i, Reason: "signed by an untrusted key"}
		}
		ok, err := security.VerifySignature(trusted, []byte(e.Hash), e.Signature)
		if err != nil {
			return &VerifyError{Index: i, Reason: "malformed signature: " + err.Error()}
		}
		if !ok {
			return &VerifyError{Index: i, Reason: "bad signature"}
		}
	}
	return nil
}
