package handler

import (
	"log/slog"
	"net/http"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// Issues and help requests share one lifecycle and one request shape.
// Category is read for issues only and urgency for help requests only.

type caseRequest struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"max=5000"`
	Location    model.Location `json:"location"`
	Category    string         `json:"category"`
	Urgency     string         `json:"urgency"`
}

type caseUpdateRequest struct {
	Title                  *string         `json:"title" validate:"omitempty,max=200"`
	Description            *string         `json:"description" validate:"omitempty,max=5000"`
	Location               *model.Location `json:"location"`
	Category               *string         `json:"category"`
	Urgency                *string         `json:"urgency"`
	Status                 *string         `json:"status"`
	AssignedOrganizationID *int64          `json:"assignedOrganizationId"`
}

func (req caseRequest) input() service.CaseInput {
	return service.CaseInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Category:    model.IssueCategory(req.Category),
		Urgency:     model.Urgency(req.Urgency),
	}
}

func (req caseUpdateRequest) update() service.CaseUpdate {
	upd := service.CaseUpdate{
		Title:                  req.Title,
		Description:            req.Description,
		Location:               req.Location,
		AssignedOrganizationID: req.AssignedOrganizationID,
	}
	if req.Category != nil {
		c := model.IssueCategory(*req.Category)
		upd.Category = &c
	}
	if req.Urgency != nil {
		u := model.Urgency(*req.Urgency)
		upd.Urgency = &u
	}
	if req.Status != nil {
		s := model.CaseStatus(*req.Status)
		upd.Status = &s
	}
	return upd
}

// IssueHandler serves /api/issues.
type IssueHandler struct {
	svc    *service.IssueService
	logger *slog.Logger
}

func NewIssueHandler(svc *service.IssueService, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/issues
func (h *IssueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	issues, err := h.svc.List(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// HTTP: POST /api/issues
func (h *IssueHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req caseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	issue, err := h.svc.Create(r.Context(), actor(r), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

// HTTP: GET /api/issues/{id}
func (h *IssueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	issue, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// HTTP: PUT /api/issues/{id}
func (h *IssueHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req caseUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	issue, err := h.svc.Update(r.Context(), actor(r), id, req.update())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// HelpRequestHandler serves /api/help-requests.
type HelpRequestHandler struct {
	svc    *service.HelpRequestService
	logger *slog.Logger
}

func NewHelpRequestHandler(svc *service.HelpRequestService, logger *slog.Logger) *HelpRequestHandler {
	return &HelpRequestHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/help-requests
func (h *HelpRequestHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.List(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// HTTP: POST /api/help-requests
func (h *HelpRequestHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req caseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	hr, err := h.svc.Create(r.Context(), actor(r), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, hr)
}

// HTTP: GET /api/help-requests/{id}
func (h *HelpRequestHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	hr, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hr)
}

// HTTP: PUT /api/help-requests/{id}
func (h *HelpRequestHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req caseUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	hr, err := h.svc.Update(r.Context(), actor(r), id, req.update())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hr)
}
