package http

import (
	"net/http"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	applog "carbontracker/internal/log"
)

type trendResponse struct {
	Granularity core.Granularity  `json:"granularity"`
	Buckets     []core.TimeBucket `json:"buckets"`
	// Skipped counts records left out because their date is unreadable.
	Skipped int `json:"skipped"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := core.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}

	sess, _ := auth.FromContext(ctx)
	list, err := s.loadPurchases(ctx, sess)
	if err != nil {
		s.writeLoadError(ctx, w, applog.OpAggregate, err)
		return
	}

	resp := trendResponse{
		Granularity: g,
		Buckets:     core.AggregateByPeriodIn(list, g, s.loc),
		Skipped:     core.CountUndated(list, s.loc),
	}
	if resp.Skipped > 0 {
		s.logger.DebugContext(ctx, "Undated purchases left out of trend",
			applog.FieldUserID, sess.UserID,
			applog.FieldGranularity, g,
			"skipped", resp.Skipped)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	list, err := s.loadPurchases(r.Context(), sess)
	if err != nil {
		s.writeLoadError(r.Context(), w, applog.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, core.SortByTotalDesc(core.AggregateByCategory(list)))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	list, err := s.loadPurchases(r.Context(), sess)
	if err != nil {
		s.writeLoadError(r.Context(), w, applog.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Summarize(list, s.now().In(s.loc)))
}
