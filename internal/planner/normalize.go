package planner

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"surf-core/internal/coreapi"
)

// normalizeRaw turns one raw action JSON object from the plan LLM into a
// typed Action. It tries a direct unmarshal first, falls back to
// jsonrepair, and as a last resort a conservative truncation repair, mirroring
// the teacher's tool-call parsing chain.
func normalizeRaw(raw string) (coreapi.Action, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err == nil {
		return coreapi.NormalizeAction(fields)
	}

	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr == nil {
		if err := json.Unmarshal([]byte(repaired), &fields); err == nil {
			return coreapi.NormalizeAction(fields)
		}
	}

	fallback := simpleFallbackRepair(raw)
	if err := json.Unmarshal([]byte(fallback), &fields); err != nil {
		return coreapi.Action{}, err
	}
	return coreapi.NormalizeAction(fields)
}

// simpleFallbackRepair is a conservative repair for a JSON object truncated
// mid-value or mid-pair, used only when jsonrepair itself fails.
func simpleFallbackRepair(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "{") {
		return s
	}
	if strings.HasSuffix(s, "}") {
		return s
	}
	if strings.HasSuffix(s, ",") {
		s = s[:len(s)-1]
	} else if i := strings.LastIndex(s, ","); i > strings.LastIndex(s, ":") {
		s = s[:i]
	}
	return s + "}"
}
