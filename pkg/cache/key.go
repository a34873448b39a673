// Package cache implements the content-addressed response cache (C6):
// upstream LLM responses keyed by (model, prompt, temperature, max_tokens),
// with TTL and total-byte-budget LRU eviction.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Key computes the bit-exact cache key spec.md §6 defines: SHA-256 over
// UTF-8(model) ∥ UTF-8(prompt) ∥ LE-f32(temperature) ∥ LE-u32(max_tokens),
// lowercase hex. model must already be the override-rewritten model so a
// rewritten request shares an entry with native requests for the target.
func Key(model, prompt string, temperature float64, maxTokens uint32) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte(prompt))

	var tbuf [4]byte
	binary.LittleEndian.PutUint32(tbuf[:], math.Float32bits(float32(temperature)))
	h.Write(tbuf[:])

	var nbuf [4]byte
	binary.LittleEndian.PutUint32(nbuf[:], maxTokens)
	h.Write(nbuf[:])

	return hex.EncodeToString(h.Sum(nil))
}
