package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// WasteReportHandler serves /api/waste-reports. Who sees which report is
// decided by the service; the handler only parses and encodes.
type WasteReportHandler struct {
	svc    *service.WasteReportService
	logger *slog.Logger
}

func NewWasteReportHandler(svc *service.WasteReportService, logger *slog.Logger) *WasteReportHandler {
	return &WasteReportHandler{svc: svc, logger: logger}
}

type wasteReportRequest struct {
	Title        string         `json:"title" validate:"required,max=200"`
	Description  string         `json:"description" validate:"max=5000"`
	Category     string         `json:"category" validate:"required"`
	Location     model.Location `json:"location"`
	Images       []string       `json:"images" validate:"max=10,dive,required"`
	IsSegregated bool           `json:"isSegregated"`
}

type wasteReportUpdateRequest struct {
	Title        *string         `json:"title" validate:"omitempty,max=200"`
	Description  *string         `json:"description" validate:"omitempty,max=5000"`
	Category     *string         `json:"category"`
	Location     *model.Location `json:"location"`
	Images       []string        `json:"images" validate:"omitempty,max=10,dive,required"`
	IsSegregated *bool           `json:"isSegregated"`

	Status           *string    `json:"status"`
	AssignedDealerID *int64     `json:"assignedDealerId"`
	ScheduledDate    *time.Time `json:"scheduledDate"`
}

// HandleList returns the reports the caller may see.
//
// HTTP: GET /api/waste-reports[?assigned=true]
//
// A dealer sees the pending queue by default and the pickups they have
// accepted with assigned=true.
func (h *WasteReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.svc.List(r.Context(), actor(r), queryBool(r, "assigned"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleCreate files a pickup request.
//
// HTTP: POST /api/waste-reports
func (h *WasteReportHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req wasteReportRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	report, err := h.svc.Create(r.Context(), actor(r), service.WasteReportInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     model.WasteCategory(req.Category),
		Location:     req.Location,
		Images:       req.Images,
		IsSegregated: req.IsSegregated,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// HTTP: GET /api/waste-reports/{id}
func (h *WasteReportHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	report, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleUpdate edits details or moves the report along its lifecycle.
//
// HTTP: PUT /api/waste-reports/{id}
// REQUEST BODY (dealer accepting): {"status": "scheduled", "scheduledDate": "2026-11-02T09:00:00Z"}
func (h *WasteReportHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req wasteReportUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	upd := service.WasteReportUpdate{
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		Images:           req.Images,
		IsSegregated:     req.IsSegregated,
		AssignedDealerID: req.AssignedDealerID,
		ScheduledDate:    req.ScheduledDate,
	}
	if req.Category != nil {
		c := model.WasteCategory(*req.Category)
		upd.Category = &c
	}
	if req.Status != nil {
		s := model.WasteReportStatus(*req.Status)
		upd.Status = &s
	}

	report, err := h.svc.Update(r.Context(), actor(r), id, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
