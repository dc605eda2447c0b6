package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"surf-core/internal/coreapi"
)

// patternID computes the stable pattern_id = hash(type, lower(description))
// (§4.7). This is a purpose-built fingerprint for pattern identity, distinct
// from coreapi.PlanKey's "same screen under the same goal" hash.
func patternID(t coreapi.PatternType, description string) string {
	h := sha256.New()
	h.Write([]byte(t))
	h.Write([]byte("::"))
	h.Write([]byte(strings.ToLower(description)))
	return hex.EncodeToString(h.Sum(nil))
}
