package handlers

import (
	"blogpress/internal/content"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

type memoryStats struct {
	Heap       string `json:"heap"`
	TotalAlloc string `json:"total_alloc"`
	System     string `json:"system"`
	GCCycles   uint32 `json:"gc_cycles"`
}

type uploadStats struct {
	content.UploadUsage
	Size string `json:"size"`
}

type metricsResponse struct {
	ServerTime time.Time    `json:"server_time"`
	Goroutines int          `json:"goroutines"`
	Cores      int          `json:"cpu_cores"`
	Memory     memoryStats  `json:"memory"`
	Uploads    *uploadStats `json:"uploads,omitempty"`
}

// HandleMetrics reports runtime memory figures and how much the upload
// directory holds.
func (h *BlogHandler) HandleMetrics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		resp := metricsResponse{
			ServerTime: time.Now().UTC().Truncate(time.Millisecond),
			Goroutines: runtime.NumGoroutine(),
			Cores:      runtime.NumCPU(),
			Memory: memoryStats{
				Heap:       humanize.IBytes(m.Alloc),
				TotalAlloc: humanize.IBytes(m.TotalAlloc),
				System:     humanize.IBytes(m.Sys),
				GCCycles:   m.NumGC,
			},
		}

		if h.Uploads != nil {
			usage, err := content.MeasureUploads(h.Uploads)
			if err != nil {
				h.log(r).Warn("could not measure upload dir", "err", err)
			} else {
				resp.Uploads = &uploadStats{UploadUsage: usage, Size: humanize.IBytes(uint64(usage.Bytes))}
			}
		}

		writeJSON(w, http.StatusOK, resp)
	})
}
