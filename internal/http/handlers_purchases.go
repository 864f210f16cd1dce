package http

import (
	"net/http"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	applog "carbontracker/internal/log"
)

// purchaseRequest is the body of POST and PUT /api/purchases. Field names
// match assist.Estimate so an estimate can be submitted as is.
type purchaseRequest struct {
	ProductName      string  `json:"productName"`
	Weight           float64 `json:"weight"`
	ShippingDistance float64 `json:"shippingDistance"`
	DeliveryMode     string  `json:"deliveryMode"`
	Category         string  `json:"category"`
}

func (p purchaseRequest) input() core.PurchaseInput {
	return core.PurchaseInput{
		ProductName:      sanitizeInput(p.ProductName),
		Weight:           p.Weight,
		ShippingDistance: p.ShippingDistance,
		DeliveryMode:     core.DeliveryMode(sanitizeInput(p.DeliveryMode)),
		Category:         core.Category(sanitizeInput(p.Category)),
	}.Normalized()
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	list, err := s.loadPurchases(r.Context(), sess)
	if err != nil {
		s.writeLoadError(r.Context(), w, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, core.SortByDateDesc(list, s.loc))
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, _ := auth.FromContext(ctx)

	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}

	created, err := s.store.Create(ctx, sess, in)
	s.purchases.Invalidate(sess.UserID)
	if err != nil {
		s.writeStoreError(ctx, w, applog.OpCreate, err)
		return
	}

	applog.NewStructuredLogger(s.logger).LogPurchaseCreated(ctx, sess.UserID, created.ID,
		created.ProductName, string(created.Category), created.Emission())
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdatePurchase replaces the editable fields of an existing record and
// keeps its purchase date.
func (s *Server) handleUpdatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, _ := auth.FromContext(ctx)
	id := r.PathValue("id")

	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}

	list, err := s.loadPurchases(ctx, sess)
	if err != nil {
		s.writeLoadError(ctx, w, applog.OpUpdate, err)
		return
	}
	var existing *core.Purchase
	for i := range list {
		if list[i].ID == id {
			existing = &list[i]
			break
		}
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Purchase not found", false)
		return
	}

	p := *existing
	p.ProductName = in.ProductName
	p.Weight = core.NewQuantity(in.Weight)
	p.ShippingDistance = core.NewQuantity(in.ShippingDistance)
	p.DeliveryMode = in.DeliveryMode
	p.Category = in.Category
	p.CarbonEmissionValue = core.EstimateEmission(in.Weight, in.ShippingDistance)

	updated, err := s.store.Update(ctx, sess, p)
	s.purchases.Invalidate(sess.UserID)
	if err != nil {
		s.writeStoreError(ctx, w, applog.OpUpdate, err)
		return
	}

	s.logger.InfoContext(ctx, "Purchase updated",
		applog.NewFields().
			WithUser(sess.UserID).
			WithPurchase(updated.ID, updated.ProductName, string(updated.Category), updated.Emission()).
			ToSlice()...)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, _ := auth.FromContext(ctx)
	id := r.PathValue("id")

	err := s.store.Delete(ctx, sess, id)
	s.purchases.Invalidate(sess.UserID)
	if err != nil {
		s.writeStoreError(ctx, w, applog.OpDelete, err)
		return
	}

	s.logger.InfoContext(ctx, "Purchase deleted",
		applog.FieldUserID, sess.UserID,
		applog.FieldPurchaseID, id)
	w.WriteHeader(http.StatusNoContent)
}
