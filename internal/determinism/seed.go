// Package determinism derives reproducible LLM sampling seeds from a
// review's scope, so re-running the same base/head pair produces the
// same provider sampling seed every time.
package determinism

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// GenerateSeed derives a deterministic uint64 seed from a base and target
// ref. The high bit is masked off so the result also fits the signed
// int64 seed parameter most provider APIs expect.
func GenerateSeed(baseRef, targetRef string) uint64 {
	input := fmt.Sprintf("%s|%s", baseRef, targetRef)
	hash := sha256.Sum256([]byte(input))
	seed := binary.BigEndian.Uint64(hash[:8])
	return seed & 0x7FFFFFFFFFFFFFFF
}
