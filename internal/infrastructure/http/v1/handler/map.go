package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/mapview/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/usecase"
	"github.com/paulmach/orb"
)

func queryFloat(c *gin.Context, name string) (float64, error) {
	str := c.Query(name)
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s should be a number", ErrInvalidQuery, name)
	}
	return v, nil
}

func markerID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (h *Handler) Position(c *gin.Context) {
	lat, lon, err := h.mapUseCase.Position(c.Request.Context())
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "got position", dto.PositionResponse{Latitude: lat, Longitude: lon})
}

func (h *Handler) SetPosition(c *gin.Context) {
	var req dto.PositionRequest
	if !h.bind(c, &req) {
		return
	}

	opts := usecase.MarkerOptions{Marker: req.Marker, Style: overlay.Style{Text: req.Text}}
	id, err := h.mapUseCase.SetPosition(c.Request.Context(), *req.Latitude, *req.Longitude, opts)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	requestLogger(c).Info("position set", "lat", *req.Latitude, "lon", *req.Longitude)

	h.RespondWithJSON(c, http.StatusOK, "position set", dto.PositionResponse{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		MarkerID:  markerID(id),
	})
}

func (h *Handler) SetZoom(c *gin.Context) {
	var req dto.ZoomRequest
	if !h.bind(c, &req) {
		return
	}

	relX, relY := 0.5, 0.5
	if req.RelX != nil {
		relX = *req.RelX
	}
	if req.RelY != nil {
		relY = *req.RelY
	}

	if err := h.mapUseCase.SetZoom(c.Request.Context(), *req.Zoom, relX, relY); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "zoom set")
}

func (h *Handler) ZoomIn(c *gin.Context) {
	if err := h.mapUseCase.ZoomIn(c.Request.Context()); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "zoomed in")
}

func (h *Handler) ZoomOut(c *gin.Context) {
	if err := h.mapUseCase.ZoomOut(c.Request.Context()); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "zoomed out")
}

func (h *Handler) Pan(c *gin.Context) {
	var req dto.PanRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.mapUseCase.Pan(c.Request.Context(), req.DX, req.DY); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "moved")
}

func (h *Handler) Fling(c *gin.Context) {
	var req dto.FlingRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.mapUseCase.Fling(c.Request.Context(), req.VX, req.VY); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusAccepted, "fading started", nil)
}

func (h *Handler) StopFading(c *gin.Context) {
	if err := h.mapUseCase.StopFading(c.Request.Context()); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "fading stopped")
}

func (h *Handler) SetAddress(c *gin.Context) {
	var req dto.AddressRequest
	if !h.bind(c, &req) {
		return
	}

	opts := usecase.MarkerOptions{Marker: req.Marker, Style: overlay.Style{Text: req.Text}}
	res, id, err := h.mapUseCase.SetAddress(c.Request.Context(), req.Address, opts)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "address found", dto.NewAddressResponse(res, markerID(id)))
}

func (h *Handler) ReverseGeocode(c *gin.Context) {
	x, err := queryFloat(c, "x")
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	y, err := queryFloat(c, "y")
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.mapUseCase.ReverseGeocode(c.Request.Context(), x, y)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "address found", dto.NewAddressResponse(res, nil))
}

func (h *Handler) CanvasToGeo(c *gin.Context) {
	x, err := queryFloat(c, "x")
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	y, err := queryFloat(c, "y")
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	lat, lon, err := h.mapUseCase.CanvasToGeo(c.Request.Context(), x, y)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "converted", dto.GeoResponse{Latitude: lat, Longitude: lon})
}

func (h *Handler) FitBounds(c *gin.Context) {
	var req dto.Bounds
	if !h.bind(c, &req) {
		return
	}

	b := orb.Bound{
		Min: orb.Point{req.West, req.South},
		Max: orb.Point{req.East, req.North},
	}
	if err := h.mapUseCase.FitBounds(c.Request.Context(), b); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "bounds fitted")
}

func (h *Handler) SetTileServer(c *gin.Context) {
	var req dto.TileServerRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.mapUseCase.SetTileServer(c.Request.Context(), req.URL, req.TileSize, req.MaxZoom); err != nil {
		h.respondWithError(c, err)
		return
	}

	requestLogger(c).Info("tile server set", "url", req.URL)
	h.viewport(c, "tile server set")
}

func (h *Handler) SetOverlayTileServer(c *gin.Context) {
	var req dto.OverlayTileServerRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.mapUseCase.SetOverlayTileServer(c.Request.Context(), req.URL); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "overlay tile server set")
}

func (h *Handler) Resize(c *gin.Context) {
	var req dto.SizeRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.mapUseCase.Resize(c.Request.Context(), req.Width, req.Height); err != nil {
		h.respondWithError(c, err)
		return
	}

	h.viewport(c, "resized")
}

func (h *Handler) Viewport(c *gin.Context) {
	h.viewport(c, "got viewport")
}

func (h *Handler) viewport(c *gin.Context, message string) {
	state, err := h.mapUseCase.State(c.Request.Context())
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, message, dto.ViewportResponse(state))
}

func (h *Handler) Snapshot(c *gin.Context) {
	data, err := h.mapUseCase.Snapshot(c.Request.Context())
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}
