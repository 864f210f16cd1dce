package http

import (
	"context"
	"net/http"
	"time"

	"carbontracker/internal/core"
)

type indexData struct {
	Categories    []core.Category
	DeliveryModes []core.DeliveryMode
	AssistEnabled bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	data := indexData{
		Categories:    core.Categories(),
		DeliveryModes: core.DeliveryModes(),
		AssistEnabled: s.assistant != nil,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil {
		checks["records"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["records"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["records"] = "ok"
		}
	} else {
		checks["records"] = "ok"
	}

	checks["assistant"] = map[bool]string{true: "enabled", false: "disabled"}[s.assistant != nil]
	checks["cache"] = s.purchases.Stats()
	checks["rate_limiter"] = map[string]any{
		"write_clients":  s.writeLimiter.GetMetrics().ClientCount,
		"assist_clients": s.assistLimiter.GetMetrics().ClientCount,
		"limited_total":  s.writeLimiter.GetMetrics().TotalHits + s.assistLimiter.GetMetrics().TotalHits,
	}
	m := s.tracer.Metrics()
	checks["requests"] = map[string]any{
		"total":           m.TotalRequests,
		"failed":          m.FailedRequests,
		"avg_duration_ms": m.AverageResponseTime.Milliseconds(),
		"blocked":         s.detector.Count(),
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}
