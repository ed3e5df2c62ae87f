// ABOUTME: Derives storage identifiers from tenant identities
// ABOUTME: Uses a wide cryptographic digest rendered as uppercase hex

package tenant

import (
	"crypto"
	_ "crypto/sha256" // registers crypto.SHA256
	"encoding/hex"
	"fmt"
	"strings"
)

// ID is the storage-facing identifier of a tenant. It names the tenant's
// database files and keys the registry.
type ID string

// DefaultID is the sentinel identifier of the shared default database that
// holds account data.
const DefaultID ID = "db"

// minDigestSize is the narrowest digest accepted for identifiers, in bytes.
const minDigestSize = 32

// Deriver maps tenant identities to storage identifiers.
type Deriver struct {
	hash crypto.Hash
}

// NewDeriver returns a Deriver backed by h. It fails with ErrDerivation if h
// is not linked into the binary or produces fewer than 256 bits.
func NewDeriver(h crypto.Hash) (*Deriver, error) {
	if !h.Available() {
		return nil, fmt.Errorf("%w: hash %d not linked", ErrDerivation, h)
	}
	if h.Size() < minDigestSize {
		return nil, fmt.Errorf("%w: %s is %d bits, need at least %d", ErrDerivation, h, h.Size()*8, minDigestSize*8)
	}
	return &Deriver{hash: h}, nil
}

// Derive returns the identifier for identity. The same identity always
// yields the same identifier.
func (d *Deriver) Derive(identity string) ID {
	hh := d.hash.New()
	hh.Write([]byte(identity))
	return ID(strings.ToUpper(hex.EncodeToString(hh.Sum(nil))))
}

var defaultDeriver = mustDeriver(crypto.SHA256)

func mustDeriver(h crypto.Hash) *Deriver {
	d, err := NewDeriver(h)
	if err != nil {
		panic(err)
	}
	return d
}

// Derive maps identity to its identifier using SHA-256.
func Derive(identity string) ID {
	return defaultDeriver.Derive(identity)
}
