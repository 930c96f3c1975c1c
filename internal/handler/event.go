package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// EventHandler serves /api/events and the participant sub-resource.
// Listing and reading are public; the service checks everything else.
type EventHandler struct {
	svc    *service.EventService
	logger *slog.Logger
}

func NewEventHandler(svc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

type eventRequest struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=5000"`
	Location        string    `json:"location" validate:"required,max=200"`
	Date            time.Time `json:"date" validate:"required"`
	MaxParticipants *int      `json:"maxParticipants" validate:"omitempty,min=1"`
	Image           *string   `json:"image"`
}

type eventUpdateRequest struct {
	Title           *string    `json:"title" validate:"omitempty,max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=5000"`
	Location        *string    `json:"location" validate:"omitempty,max=200"`
	Date            *time.Time `json:"date"`
	MaxParticipants *int       `json:"maxParticipants" validate:"omitempty,min=1"`
	Image           *string    `json:"image"`
	Status          *string    `json:"status"`
}

// HandleList returns events with their current head count.
//
// HTTP: GET /api/events[?upcoming=true]
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.List(r.Context(), actor(r), queryBool(r, "upcoming"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HTTP: GET /api/events/{id}
func (h *EventHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	e, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HTTP: POST /api/events (organizations only)
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	e, err := h.svc.Create(r.Context(), actor(r), service.EventInput{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		Date:            req.Date,
		MaxParticipants: req.MaxParticipants,
		Image:           req.Image,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HTTP: PUT /api/events/{id} (the organizing organization only)
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req eventUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	upd := service.EventUpdate{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		Date:            req.Date,
		MaxParticipants: req.MaxParticipants,
		Image:           req.Image,
	}
	if req.Status != nil {
		s := model.EventStatus(*req.Status)
		upd.Status = &s
	}
	e, err := h.svc.Update(r.Context(), actor(r), id, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HTTP: GET /api/events/{id}/participants
func (h *EventHandler) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ps, err := h.svc.Participants(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// HandleJoin registers the caller.
//
// HTTP: POST /api/events/{id}/participants
//
// A repeat registration or a full event answers 400, never a duplicate row.
func (h *EventHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	p, err := h.svc.Join(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleLeave removes the caller's registration. Leaving an event the
// caller never joined is a 404.
//
// HTTP: DELETE /api/events/{id}/participants
func (h *EventHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.Leave(r.Context(), actor(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
