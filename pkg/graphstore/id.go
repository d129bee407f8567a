package graphstore

import (
	"crypto/sha256"
	"encoding/hex"
)

// CategoryL2ID derives the stable id of a second-level category node from
// its full path in the tree. The same (L1, L2) pair always maps to the
// same id, and the same L2 name under different L1 parents maps to
// different ids.
func CategoryL2ID(l1, l2 string) string {
	sum := sha256.Sum256([]byte(l1 + "/" + l2))
	return hex.EncodeToString(sum[:])[:16]
}
