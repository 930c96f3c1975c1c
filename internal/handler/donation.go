package handler

import (
	"log/slog"
	"net/http"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// DonationHandler serves /api/donations.
type DonationHandler struct {
	svc    *service.DonationService
	logger *slog.Logger
}

func NewDonationHandler(svc *service.DonationService, logger *slog.Logger) *DonationHandler {
	return &DonationHandler{svc: svc, logger: logger}
}

type donationRequest struct {
	ItemName    string   `json:"itemName" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Category    string   `json:"category" validate:"required"`
	Images      []string `json:"images" validate:"max=10,dive,required"`
}

type donationUpdateRequest struct {
	ItemName    *string  `json:"itemName" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Category    *string  `json:"category"`
	Images      []string `json:"images" validate:"omitempty,max=10,dive,required"`
	Status      *string  `json:"status"`
}

// HandleList returns the caller's donations (customers), the available
// pool or, with mine=true, the donations requested (organizations), or
// everything (admins).
//
// HTTP: GET /api/donations[?mine=true]
func (h *DonationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	donations, err := h.svc.List(r.Context(), actor(r), queryBool(r, "mine"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, donations)
}

// HTTP: GET /api/donations/available
func (h *DonationHandler) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	donations, err := h.svc.Available(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, donations)
}

// HTTP: POST /api/donations
func (h *DonationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.Create(r.Context(), actor(r), service.DonationInput{
		ItemName:    req.ItemName,
		Description: req.Description,
		Category:    model.DonationCategory(req.Category),
		Images:      req.Images,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HTTP: GET /api/donations/{id}
func (h *DonationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleUpdate edits a donation or moves it through
// available → requested → matched → completed.
//
// HTTP: PUT /api/donations/{id}
func (h *DonationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req donationUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	upd := service.DonationUpdate{
		ItemName:    req.ItemName,
		Description: req.Description,
		Images:      req.Images,
	}
	if req.Category != nil {
		c := model.DonationCategory(*req.Category)
		upd.Category = &c
	}
	if req.Status != nil {
		s := model.DonationStatus(*req.Status)
		upd.Status = &s
	}

	d, err := h.svc.Update(r.Context(), actor(r), id, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
