package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/mapview/internal/geocoding"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/usecase"
	"github.com/jaennil/guide_helper/backend/mapview/internal/viewport"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/paulmach/orb"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// MapUseCase is the map API served over HTTP.
type MapUseCase interface {
	Position(ctx context.Context) (lat, lon float64, err error)
	SetPosition(ctx context.Context, lat, lon float64, opts usecase.MarkerOptions) (uuid.UUID, error)
	SetZoom(ctx context.Context, zoom, relX, relY float64) error
	ZoomIn(ctx context.Context) error
	ZoomOut(ctx context.Context) error
	Pan(ctx context.Context, dx, dy float64) error
	Fling(ctx context.Context, vx, vy float64) error
	StopFading(ctx context.Context) error
	SetAddress(ctx context.Context, address string, opts usecase.MarkerOptions) (geocoding.Result, uuid.UUID, error)
	ReverseGeocode(ctx context.Context, x, y float64) (geocoding.Result, error)
	CanvasToGeo(ctx context.Context, x, y float64) (lat, lon float64, err error)
	FitBounds(ctx context.Context, b orb.Bound) error
	SetTileServer(ctx context.Context, template string, tileSize, maxZoom int) error
	SetOverlayTileServer(ctx context.Context, template string) error
	Resize(ctx context.Context, width, height int) error
	State(ctx context.Context) (usecase.ViewportState, error)
	Snapshot(ctx context.Context) ([]byte, error)

	AddMarker(ctx context.Context, lat, lon float64, style overlay.Style) (uuid.UUID, error)
	AddPath(ctx context.Context, positions [][2]float64, style overlay.Style) (uuid.UUID, error)
	AddPolygon(ctx context.Context, positions [][2]float64, style overlay.Style) (uuid.UUID, error)
	UpdateMarker(ctx context.Context, id uuid.UUID, upd usecase.MarkerUpdate) error
	AddOverlayPosition(ctx context.Context, id uuid.UUID, lat, lon float64, index int) error
	RemoveOverlayPosition(ctx context.Context, id uuid.UUID, lat, lon float64) error
	RemoveOverlay(ctx context.Context, id uuid.UUID) error
	RemoveOverlays(ctx context.Context, kind overlay.Kind) (int, error)
	Overlays(ctx context.Context) ([]usecase.OverlayView, error)
}

var _ MapUseCase = (*usecase.MapUseCase)(nil)

type Handler struct {
	validate   *validator.Validate
	mapUseCase MapUseCase
}

func NewHandler(v *validator.Validate, uc MapUseCase) *Handler {
	return &Handler{
		validate:   v,
		mapUseCase: uc,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

// bind decodes and validates the JSON body into req. It responds with 400
// and returns false when either step fails.
func (h *Handler) bind(c *gin.Context, req any) bool {
	l := requestLogger(c)

	if err := c.ShouldBindJSON(req); err != nil {
		l.Warn("invalid request body", "path", c.Request.URL.Path, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody.Error(), nil)
		return false
	}

	if err := h.validate.Struct(req); err != nil {
		l.Warn("request validation failed", "path", c.Request.URL.Path, "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return false
	}

	return true
}

// respondWithError maps use case errors to status codes. Unknown errors are
// logged and hidden behind a 500.
func (h *Handler) respondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, viewport.ErrInvalidConfig),
		errors.Is(err, viewport.ErrInvalidBounds):
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, geocoding.ErrNotFound),
		errors.Is(err, usecase.ErrOverlayNotFound),
		errors.Is(err, usecase.ErrNoPosition):
		h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, usecase.ErrNotEditable),
		errors.Is(err, usecase.ErrNotMarker):
		h.RespondWithJSON(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, usecase.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		h.RespondWithJSON(c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		requestLogger(c).Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		h.RespondWithInternalServerError(c)
	}
}

func requestLogger(c *gin.Context) logger.Logger {
	if log, ok := c.Get("logger"); ok {
		if l, ok := log.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
