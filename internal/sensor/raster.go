package sensor

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	coreerrors "surf-core/internal/errors"
)

// defaultMaxBytes is the base64-form budget from §4.1: output stays under
// roughly 1 MB so it fits process-argument/stdin limits used by downstream
// LLM bridges. The raw (pre-base64) budget is set a bit under 3/4 of that.
const defaultMaxBytes = 750_000

// CaptureRaster runs the platform screenshot tool into a temp file, reads it
// back, removes the temp file, and re-encodes down in quality until the
// result fits maxBytes (0 uses defaultMaxBytes).
func (d *DesktopSensor) CaptureRaster(ctx context.Context) (RasterCapture, error) {
	maxBytes := d.maxRasterBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("surf-capture-%s.jpg", uuid.NewString()))
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "jpg", "-C", tmpPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if isPermissionDenied(stderr.String()) {
			return RasterCapture{}, coreerrors.NewCoreError(coreerrors.KindPermissionDenied, err,
				"Screen Recording permission is required. Grant it to this application in System Settings > Privacy & Security > Screen Recording, then retry.")
		}
		return RasterCapture{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "screen capture command failed")
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return RasterCapture{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "failed to read captured screenshot")
	}

	data, err = shrinkToFit(data, maxBytes)
	if err != nil {
		return RasterCapture{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "failed to re-encode screenshot under size budget")
	}

	return RasterCapture{Bytes: data, Scale: d.displayScale, Format: "jpeg"}, nil
}

// shrinkToFit re-encodes a JPEG at progressively lower quality until it fits
// within maxBytes, or gives up after exhausting the quality ladder.
func shrinkToFit(data []byte, maxBytes int) ([]byte, error) {
	if len(data) <= maxBytes {
		return data, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		// Not decodable as JPEG (unexpected format); return as-is rather than fail the capture.
		return data, nil
	}
	for _, quality := range []int{80, 60, 40, 25} {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
		data = buf.Bytes()
	}
	return data, nil
}

func isPermissionDenied(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "not authorized") || strings.Contains(lower, "permission") || strings.Contains(lower, "not allowed")
}
