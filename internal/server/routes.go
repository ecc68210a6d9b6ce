package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Analysis jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.CreateJobHandler) // POST - queue a job
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)                // GET /{id}, POST /{id}/cancel

	// API routes - Queue
	mux.HandleFunc("/api/queue/stats", s.app.JobHandler.QueueStatsHandler)

	// API routes - User jobs
	mux.HandleFunc("/api/users/", s.handleUserRoutes) // GET /{id}/jobs

	// API routes - Platform connections
	mux.HandleFunc("/api/connections", s.app.TokenHandler.ConnectHandler) // POST - store OAuth outcome
	mux.HandleFunc("/api/connections/", s.handleConnectionRoutes)         // GET /{userId}, DELETE /{userId}/{platform}
	mux.HandleFunc("/api/tokens/cleanup", s.app.TokenHandler.CleanupHandler)

	// API routes - Result cache
	mux.HandleFunc("/api/cache/stats", s.app.CacheHandler.StatsHandler)
	mux.HandleFunc("/api/cache/invalidate", s.app.CacheHandler.InvalidateHandler)
	mux.HandleFunc("/api/cache/config", s.app.CacheHandler.ConfigHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes routes /api/jobs/{id} and /api/jobs/{id}/cancel.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// POST /api/jobs/{id}/cancel
	if jobID, ok := strings.CutSuffix(rest, "/cancel"); ok {
		s.app.JobHandler.CancelJobHandler(w, r, jobID)
		return
	}

	if strings.Contains(rest, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET /api/jobs/{id}
	s.app.JobHandler.GetJobHandler(w, r, rest)
}

// handleUserRoutes routes /api/users/{id}/jobs.
func (s *Server) handleUserRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")

	if userID, ok := strings.CutSuffix(rest, "/jobs"); ok && userID != "" {
		s.app.JobHandler.UserJobsHandler(w, r, userID)
		return
	}

	http.Error(w, "Not found", http.StatusNotFound)
}

// handleConnectionRoutes routes /api/connections/{userId} and
// /api/connections/{userId}/{platform}.
func (s *Server) handleConnectionRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/connections/")
	if rest == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		// GET /api/connections/{userId}
		s.app.TokenHandler.ConnectionsStatusHandler(w, r, parts[0])
	case 2:
		// DELETE /api/connections/{userId}/{platform}
		s.app.TokenHandler.DisconnectHandler(w, r, parts[0], parts[1])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
