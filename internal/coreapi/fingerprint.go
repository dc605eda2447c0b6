package coreapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprint implements the glossary's uniqueness key:
// lower(title) + "::" + lower(trigger).
func fingerprint(title, trigger string) string {
	return strings.ToLower(title) + "::" + strings.ToLower(trigger)
}

// PlanKey computes sha256(goal || captureBytes), the stable hash that lets
// the Planner recognize "the same screen under the same goal" as one
// situation (glossary: plan_key).
func PlanKey(goal string, captureBytes []byte) string {
	h := sha256.New()
	h.Write([]byte(goal))
	h.Write(captureBytes)
	return hex.EncodeToString(h.Sum(nil))
}
