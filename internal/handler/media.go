package handler

import (
	"log/slog"
	"net/http"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// MediaHandler serves /api/media. Anonymous callers see published content
// only.
type MediaHandler struct {
	svc    *service.MediaService
	logger *slog.Logger
}

func NewMediaHandler(svc *service.MediaService, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{svc: svc, logger: logger}
}

type mediaRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	ContentType string   `json:"contentType" validate:"required"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags" validate:"max=20"`
	Published   bool     `json:"published"`
}

type mediaUpdateRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	ContentType *string  `json:"contentType"`
	Content     *string  `json:"content"`
	Tags        []string `json:"tags" validate:"omitempty,max=20"`
	Published   *bool    `json:"published"`
}

// HTTP: GET /api/media[?type=video&tag=compost&mine=true]
func (h *MediaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), actor(r), service.MediaQuery{
		ContentType: model.ContentType(q.Get("type")),
		Tag:         q.Get("tag"),
		Mine:        queryBool(r, "mine"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HTTP: GET /api/media/{id}
func (h *MediaHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	m, err := h.svc.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HTTP: POST /api/media
func (h *MediaHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req mediaRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	m, err := h.svc.Create(r.Context(), actor(r), service.MediaInput{
		Title:       req.Title,
		Description: req.Description,
		ContentType: model.ContentType(req.ContentType),
		Content:     req.Content,
		Tags:        req.Tags,
		Published:   req.Published,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HTTP: PUT /api/media/{id} (author or admin)
func (h *MediaHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req mediaUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	upd := service.MediaUpdate{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Tags:        req.Tags,
		Published:   req.Published,
	}
	if req.ContentType != nil {
		ct := model.ContentType(*req.ContentType)
		upd.ContentType = &ct
	}
	m, err := h.svc.Update(r.Context(), actor(r), id, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
