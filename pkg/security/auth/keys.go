package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// KeySet is an immutable set of accepted keys.
type KeySet struct {
	digests [][sha256.Size]byte
}

// NewKeySet builds a set from plaintext keys. Empty and duplicate keys are
// ignored.
func NewKeySet(keys []string) *KeySet {
	s := &KeySet{}
	seen := make(map[[sha256.Size]byte]bool, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		d := sha256.Sum256([]byte(k))
		if seen[d] {
			continue
		}
		seen[d] = true
		s.digests = append(s.digests, d)
	}
	return s
}

// Len returns the number of keys. A nil set is empty.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.digests)
}

// Validate reports whether key is in the set and returns its client ID.
// Every stored digest is compared, so timing does not depend on which key
// matched.
func (s *KeySet) Validate(key string) (clientID string, ok bool) {
	if s.Len() == 0 || key == "" {
		return "", false
	}
	d := sha256.Sum256([]byte(key))
	match := 0
	for i := range s.digests {
		match |= subtle.ConstantTimeCompare(d[:], s.digests[i][:])
	}
	if match != 1 {
		return "", false
	}
	return fingerprint(d), true
}

// ClientID returns the client ID of key, as Validate would.
func ClientID(key string) string {
	return fingerprint(sha256.Sum256([]byte(key)))
}

func fingerprint(d [sha256.Size]byte) string {
	return "key:" + hex.EncodeToString(d[:6])
}
