// Package eventpipeline ingests raw Events, applies the privacy mask,
// persists them, and sessionizes them into bounded activity windows (§4.6).
package eventpipeline

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"surf-core/internal/coreapi"
)

// PrivacyMask drops, hashes, or redacts Event fields before persistence.
// denyFields are deleted from the Payload (the Event itself is kept, marked
// Dropped, with the deleted fields listed under Redacted; its other Payload
// fields stay); hashFields are replaced with an irreversible HMAC so the
// value is still comparable across events without being recoverable.
type PrivacyMask struct {
	salt       string
	denyFields map[string]bool
	hashFields map[string]bool
}

// NewPrivacyMask builds a mask. salt is PRIVACY_SALT; required in production
// (enforced by config.Load), optional otherwise.
func NewPrivacyMask(salt string, denyFields, hashFields []string) *PrivacyMask {
	m := &PrivacyMask{salt: salt, denyFields: map[string]bool{}, hashFields: map[string]bool{}}
	for _, f := range denyFields {
		m.denyFields[f] = true
	}
	for _, f := range hashFields {
		m.hashFields[f] = true
	}
	return m
}

// Apply deletes each deny field from ev.Payload and hashes each hash field
// in place. The Payload map is the caller's own map, so the caller's Event
// sees these changes too. Applying Apply twice is
// idempotent — once a field is dropped or hashed, the second pass sees
// nothing left to act on (§8 round-trip property).
func (m *PrivacyMask) Apply(ev coreapi.Event) coreapi.Event {
	ann := coreapi.PrivacyAnnotations{}
	if ev.Privacy != nil {
		ann = *ev.Privacy
	}

	for field := range m.denyFields {
		if _, ok := ev.Payload[field]; ok {
			delete(ev.Payload, field)
			ann.Dropped = true
			if !contains(ann.Redacted, field) {
				ann.Redacted = append(ann.Redacted, field)
			}
		}
	}

	for field := range m.hashFields {
		v, ok := ev.Payload[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || looksHashed(s) {
			continue
		}
		ev.Payload[field] = m.hash(s)
		if !contains(ann.Hashed, field) {
			ann.Hashed = append(ann.Hashed, field)
		}
	}

	if ann.Dropped || len(ann.Hashed) > 0 || len(ann.Redacted) > 0 {
		ev.Privacy = &ann
	}
	return ev
}

func (m *PrivacyMask) hash(value string) string {
	mac := hmac.New(sha256.New, []byte(m.salt))
	mac.Write([]byte(value))
	return "h:" + hex.EncodeToString(mac.Sum(nil))
}

func looksHashed(s string) bool {
	return len(s) > 2 && s[:2] == "h:"
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
