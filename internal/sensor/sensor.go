// Package sensor is the Screen Sensor component (§4.1): it captures a raster
// snapshot of the primary display and walks the accessibility tree of the
// focused window. Both operations shell out to platform CLIs rather than
// binding to OS frameworks directly, mirroring
// original_source/core/src/visual_driver.rs's screencapture invocation and
// original_source/core/src/peekaboo_cli.rs's accessibility-snapshot CLI.
package sensor

import (
	"context"

	"surf-core/internal/coreapi"
)

// Scope narrows SnapshotUI to a specific application; nil means the
// currently focused window.
type Scope struct {
	App string
}

// RasterCapture is the result of CaptureRaster: a lossy-encoded screenshot
// plus the display scale factor needed to map UI tree bounds onto it.
type RasterCapture struct {
	Bytes  []byte
	Scale  float64
	Format string // "jpeg"
}

// Sensor is the Screen Sensor's public contract.
type Sensor interface {
	CaptureRaster(ctx context.Context) (RasterCapture, error)
	SnapshotUI(ctx context.Context, scope *Scope) (coreapi.UITree, error)
}
