package http

import (
	"context"
	"errors"
	"net/http"

	"carbontracker/internal/auth"
	applog "carbontracker/internal/log"
)

// Tracker action names.
const (
	actionEstimate = "estimate"
	actionTips     = "tips"
)

// errAborted is recorded when a handler exits without reporting an outcome,
// which only happens on panic.
var errAborted = errors.New("assistant call aborted")

type estimateRequest struct {
	Description string `json:"description"`
}

type tipsResponse struct {
	Tips string `json:"tips"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "The assistant is not configured", false)
		return
	}

	var req estimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}

	sess, _ := auth.FromContext(ctx)
	finish, err := s.tasks.Begin(sess.UserID, actionEstimate)
	if err != nil {
		s.writeAssistError(ctx, w, applog.OpEstimate, err)
		return
	}
	outcome := errAborted
	defer func() { finish(outcome) }()

	ctx, cancel := context.WithTimeout(ctx, s.assistTTL)
	defer cancel()
	est, err := s.assistant.EstimateFromDescription(ctx, sanitizeInput(req.Description))
	outcome = err
	if err != nil {
		s.writeAssistError(ctx, w, applog.OpEstimate, err)
		return
	}

	s.logger.InfoContext(ctx, "Purchase estimate produced",
		applog.FieldUserID, sess.UserID,
		applog.FieldProductName, est.ProductName,
		applog.FieldCategory, est.Category)
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "The assistant is not configured", false)
		return
	}

	sess, _ := auth.FromContext(ctx)
	finish, err := s.tasks.Begin(sess.UserID, actionTips)
	if err != nil {
		s.writeAssistError(ctx, w, applog.OpTips, err)
		return
	}
	outcome := errAborted
	defer func() { finish(outcome) }()

	ctx, cancel := context.WithTimeout(ctx, s.assistTTL)
	defer cancel()
	list, err := s.loadPurchases(ctx, sess)
	if err != nil {
		outcome = err
		s.writeLoadError(ctx, w, applog.OpTips, err)
		return
	}

	tips, err := s.assistant.SummarizeTips(ctx, list)
	outcome = err
	if err != nil {
		s.writeAssistError(ctx, w, applog.OpTips, err)
		return
	}
	writeJSON(w, http.StatusOK, tipsResponse{Tips: tips})
}
