package ws

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/session"
)

// HealthStatus is the overall state reported by /api/health.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
)

// HealthResponse is the body of /api/health.
type HealthResponse struct {
	Status     HealthStatus `json:"status"`
	Sessions   int          `json:"sessions"`
	WSClients  int          `json:"wsClients"`
	Uptime     string       `json:"uptime"`
	Goroutines int          `json:"goroutines"`
	RSSBytes   uint64       `json:"rssBytes,omitempty"`
	CPUPercent float64      `json:"cpuPercent,omitempty"`
	SyncErrors int          `json:"syncErrors"` // sessions whose last sync failed
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opsToken != "" {
		if tok, _ := bearerToken(r); tok != s.opsToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) health() HealthResponse {
	resp := HealthResponse{
		Status:     StatusHealthy,
		Sessions:   s.sessions.Count(),
		WSClients:  s.hub.ClientCount(),
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}

	s.sessions.Each(func(sess *session.Session) {
		if sess.Engine.SyncStatus().LastError != "" {
			resp.SyncErrors++
		}
	})
	if resp.SyncErrors > 0 {
		resp.Status = StatusDegraded
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.WithError(err).Debug("Process stats unavailable")
		return resp
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		resp.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		resp.CPUPercent = cpu
	}
	return resp
}
