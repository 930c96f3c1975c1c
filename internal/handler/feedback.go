package handler

import (
	"log/slog"
	"net/http"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

type FeedbackHandler struct {
	svc    *service.FeedbackService
	logger *slog.Logger
}

func NewFeedbackHandler(svc *service.FeedbackService, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{svc: svc, logger: logger}
}

type feedbackRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

type feedbackStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HTTP: GET /api/feedback
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HTTP: POST /api/feedback
func (h *FeedbackHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	fb, err := h.svc.Create(r.Context(), actor(r), service.FeedbackInput{
		Subject: req.Subject,
		Message: req.Message,
		Rating:  req.Rating,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

// HTTP: GET /api/feedback/{id}
func (h *FeedbackHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	fb, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// HandleUpdate is the admin review step.
//
// HTTP: PUT /api/feedback/{id}   {"status": "reviewed"}
func (h *FeedbackHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req feedbackStatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	fb, err := h.svc.SetStatus(r.Context(), actor(r), id, model.FeedbackStatus(req.Status))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}
