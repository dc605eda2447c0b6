package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	coreerrors "surf-core/internal/errors"
)

// DesktopSensor is the production Sensor: screencapture for raster frames,
// the peekaboo CLI for accessibility snapshots.
type DesktopSensor struct {
	maxRasterBytes int
	displayScale   float64
}

// New builds a DesktopSensor. maxRasterBytes<=0 uses defaultMaxBytes;
// displayScale<=0 defaults to 1.0 (no known HiDPI scaling).
func New(maxRasterBytes int, displayScale float64) *DesktopSensor {
	if displayScale <= 0 {
		displayScale = 1.0
	}
	return &DesktopSensor{maxRasterBytes: maxRasterBytes, displayScale: displayScale}
}

var _ Sensor = (*DesktopSensor)(nil)

// Permissions reports whether the OS has granted the two capabilities the
// Screen Sensor depends on.
type Permissions struct {
	ScreenRecording *bool
	Accessibility   *bool
}

// CheckPermissions queries peekaboo's permission status, so remediation can
// be surfaced before a capture is attempted. No HTTP endpoint in this module
// calls it.
func CheckPermissions(ctx context.Context) (Permissions, error) {
	cmd := exec.CommandContext(ctx, "peekaboo", "permissions", "--json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Permissions{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "failed to query permission status")
	}

	var raw map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return Permissions{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "permission status returned non-JSON output")
	}

	return Permissions{
		ScreenRecording: findBoolAny(raw, "screenRecording", "screen_recording", "screen-recording"),
		Accessibility:   findBoolAny(raw, "accessibility"),
	}, nil
}

func findBoolAny(value any, keys ...string) *bool {
	switch v := value.(type) {
	case map[string]any:
		for _, k := range keys {
			if val, ok := v[k]; ok {
				if b, ok := asBool(val); ok {
					return &b
				}
			}
		}
		for _, val := range v {
			if b := findBoolAny(val, keys...); b != nil {
				return b
			}
		}
	case []any:
		for _, val := range v {
			if b := findBoolAny(val, keys...); b != nil {
				return b
			}
		}
	}
	return nil
}

func asBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		switch s {
		case "true", "granted", "yes":
			return true, true
		case "false", "denied", "no":
			return false, true
		}
	}
	return false, false
}
