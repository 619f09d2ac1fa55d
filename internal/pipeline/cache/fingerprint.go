package cache

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Fingerprint is the canonical description of one unit of stage work. Two
// requests with identical fingerprints are identical work and share a cache
// slot.
type Fingerprint struct {
	Stage    string
	Provider string
	Model    string
	Input    string
}

// Key computes a deterministic cache key using FNV-1a over the canonical
// representation stage|provider|model|input. The stage name stays readable in
// the key so prefix deletion and diagnostics can target one stage.
func (f Fingerprint) Key() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(f.Stage))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(f.Provider))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(f.Model))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(NormalizeInput(f.Input)))
	return fmt.Sprintf("valluvarai:%s:%016x", f.Stage, h.Sum64())
}

// NormalizeInput collapses whitespace and case so cosmetic differences in the
// same logical input do not defeat the cache.
func NormalizeInput(input string) string {
	return strings.ToLower(strings.Join(strings.Fields(input), " "))
}
