package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Identity is the deterministic fingerprint of a document plus its evaluation
// configuration. It namespaces every checkpoint: identical content and
// configuration reuse checkpoints, any change produces a disjoint namespace.
type Identity string

// ComputeIdentity hashes the document content together with the
// configuration fields that affect stage outputs (provider, model, sector).
// Field boundaries are delimited so concatenation cannot collide.
func ComputeIdentity(content []byte, provider, model, sector string) Identity {
	h := sha256.New()
	h.Write(content)
	for _, part := range []string{provider, model, sector} {
		h.Write([]byte{0})
		io.WriteString(h, part)
	}
	return Identity(hex.EncodeToString(h.Sum(nil)))
}
