package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime"
)

// LivenessHandler answers /livez: it reports alive as long as the
// process can run a handler at all, independent of the intake
// service's own /health (which checks the database and queue).
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if encodeErr := json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		}); encodeErr != nil {
			log.Printf("liveness handler encode failed: %v", encodeErr)
		}
	}
}

// ReadinessHandler answers /readyz, reporting not_ready until ready is
// flipped true once startup (migrations, queue connect) has finished.
func ReadinessHandler(ready *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil && *ready {
			if encodeErr := json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
			}); encodeErr != nil {
				log.Printf("readiness handler encode failed: %v", encodeErr)
			}
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		if encodeErr := json.NewEncoder(w).Encode(map[string]string{
			"status": "not_ready",
		}); encodeErr != nil {
			log.Printf("readiness handler encode failed: %v", encodeErr)
		}
	}
}

// RuntimeStatsHandler exposes goroutine count and heap size for the
// intake process, for operators without a metrics scraper attached.
func RuntimeStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		w.Header().Set("Content-Type", "application/json")
		if encodeErr := json.NewEncoder(w).Encode(map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"alloc_mb":   m.Alloc / 1024 / 1024,
			"sys_mb":     m.Sys / 1024 / 1024,
			"num_gc":     m.NumGC,
			"go_version": runtime.Version(),
			"num_cpu":    runtime.NumCPU(),
		}); encodeErr != nil {
			log.Printf("runtime stats handler encode failed: %v", encodeErr)
		}
	}
}
