package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/mapview/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/usecase"
)

func validPositions(positions [][2]float64) bool {
	for _, p := range positions {
		if p[0] < -90 || p[0] > 90 || p[1] < -180 || p[1] > 180 {
			return false
		}
	}
	return true
}

func (h *Handler) overlayID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "id should be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) AddMarker(c *gin.Context) {
	var req dto.MarkerRequest
	if !h.bind(c, &req) {
		return
	}

	id, err := h.mapUseCase.AddMarker(c.Request.Context(), *req.Latitude, *req.Longitude, req.Style)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusCreated, "marker added", dto.OverlayCreatedResponse{ID: id})
}

func (h *Handler) UpdateMarker(c *gin.Context) {
	id, ok := h.overlayID(c)
	if !ok {
		return
	}

	var req dto.MarkerUpdateRequest
	if !h.bind(c, &req) {
		return
	}

	upd := usecase.MarkerUpdate{Latitude: req.Latitude, Longitude: req.Longitude, Text: req.Text}
	if err := h.mapUseCase.UpdateMarker(c.Request.Context(), id, upd); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "marker updated", nil)
}

func (h *Handler) AddPath(c *gin.Context) {
	var req dto.PathRequest
	if !h.bind(c, &req) {
		return
	}
	if !validPositions(req.Positions) {
		h.RespondWithJSON(c, http.StatusBadRequest, "positions should be [latitude, longitude] pairs", nil)
		return
	}

	id, err := h.mapUseCase.AddPath(c.Request.Context(), req.Positions, req.Style)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusCreated, "path added", dto.OverlayCreatedResponse{ID: id})
}

func (h *Handler) AddPolygon(c *gin.Context) {
	var req dto.PolygonRequest
	if !h.bind(c, &req) {
		return
	}
	if !validPositions(req.Positions) {
		h.RespondWithJSON(c, http.StatusBadRequest, "positions should be [latitude, longitude] pairs", nil)
		return
	}

	id, err := h.mapUseCase.AddPolygon(c.Request.Context(), req.Positions, req.Style)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusCreated, "polygon added", dto.OverlayCreatedResponse{ID: id})
}

func (h *Handler) Overlays(c *gin.Context) {
	views, err := h.mapUseCase.Overlays(c.Request.Context())
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	resp := make([]dto.OverlayResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, dto.NewOverlayResponse(v))
	}

	h.RespondWithJSON(c, http.StatusOK, "got overlays", resp)
}

func (h *Handler) RemoveOverlay(c *gin.Context) {
	id, ok := h.overlayID(c)
	if !ok {
		return
	}

	if err := h.mapUseCase.RemoveOverlay(c.Request.Context(), id); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "overlay removed", nil)
}

// RemoveOverlays deletes every overlay of the kind given in the query.
func (h *Handler) RemoveOverlays(c *gin.Context) {
	kind := overlay.Kind(c.Query("kind"))
	switch kind {
	case overlay.KindMarker, overlay.KindPath, overlay.KindPolygon:
	default:
		h.RespondWithJSON(c, http.StatusBadRequest, "kind should be one of marker, path, polygon", nil)
		return
	}

	n, err := h.mapUseCase.RemoveOverlays(c.Request.Context(), kind)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "overlays removed", dto.RemovedResponse{Removed: n})
}

func (h *Handler) AddOverlayPosition(c *gin.Context) {
	id, ok := h.overlayID(c)
	if !ok {
		return
	}

	var req dto.OverlayPositionRequest
	if !h.bind(c, &req) {
		return
	}

	index := -1
	if req.Index != nil {
		index = *req.Index
	}

	if err := h.mapUseCase.AddOverlayPosition(c.Request.Context(), id, *req.Latitude, *req.Longitude, index); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "position added", nil)
}

func (h *Handler) RemoveOverlayPosition(c *gin.Context) {
	id, ok := h.overlayID(c)
	if !ok {
		return
	}

	lat, err := queryFloat(c, "lat")
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	lon, err := queryFloat(c, "lon")
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.mapUseCase.RemoveOverlayPosition(c.Request.Context(), id, lat, lon); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "position removed", nil)
}
