package httpapi

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type statusResponse struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemTotalMB float64 `json:"mem_total_mb"`
}

// status reports coarse process/host resource usage (§6 GET /api/status).
// Memory figures come from runtime.MemStats.Sys (all memory the Go runtime
// has obtained from the OS) and
// /proc/meminfo (host total) on Linux; cpu_percent approximates load from
// /proc/loadavg divided by core count, falling back to 0 on other
// platforms rather than failing the request.
func (h *handlers) status(ctx *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := statusResponse{
		MemUsedMB:  float64(ms.Sys) / (1024 * 1024),
		MemTotalMB: hostMemTotalMB(),
		CPUPercent: hostLoadPercent(),
	}
	ctx.JSON(200, resp)
}

func hostMemTotalMB() float64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}

func hostLoadPercent() float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	load1, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	cores := float64(runtime.NumCPU())
	if cores <= 0 {
		cores = 1
	}
	pct := (load1 / cores) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
