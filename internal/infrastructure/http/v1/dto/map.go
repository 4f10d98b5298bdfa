package dto

import (
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/mapview/internal/geocoding"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/usecase"
)

type PositionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Marker    bool     `json:"marker"`
	Text      string   `json:"text" validate:"max=300"`
}

type PositionResponse struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	MarkerID  *uuid.UUID `json:"marker_id,omitempty"`
}

type ZoomRequest struct {
	Zoom *float64 `json:"zoom" validate:"required,gte=0,lte=30"`
	// RelX and RelY locate the fixed point inside the viewport; the centre
	// when omitted.
	RelX *float64 `json:"rel_x" validate:"omitempty,gte=0,lte=1"`
	RelY *float64 `json:"rel_y" validate:"omitempty,gte=0,lte=1"`
}

type PanRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type FlingRequest struct {
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

type AddressRequest struct {
	Address string `json:"address" validate:"required,max=500"`
	Marker  bool   `json:"marker"`
	Text    string `json:"text" validate:"max=300"`
}

type AddressResponse struct {
	Address   string     `json:"address"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Bounds    *Bounds    `json:"bounds,omitempty"`
	MarkerID  *uuid.UUID `json:"marker_id,omitempty"`
}

type Bounds struct {
	North float64 `json:"north" validate:"gte=-90,lte=90"`
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
	South float64 `json:"south" validate:"gte=-90,lte=90"`
	East  float64 `json:"east" validate:"gte=-180,lte=180"`
}

func NewAddressResponse(res geocoding.Result, markerID *uuid.UUID) AddressResponse {
	resp := AddressResponse{
		Address:   res.Address,
		Latitude:  res.Lat,
		Longitude: res.Lon,
		MarkerID:  markerID,
	}
	if res.Bounds != nil {
		resp.Bounds = &Bounds{
			North: res.Bounds.Max.Lat(),
			West:  res.Bounds.Min.Lon(),
			South: res.Bounds.Min.Lat(),
			East:  res.Bounds.Max.Lon(),
		}
	}
	return resp
}

type TileServerRequest struct {
	URL      string `json:"url" validate:"required,url"`
	TileSize int    `json:"tile_size" validate:"required,gt=0,lte=4096"`
	MaxZoom  int    `json:"max_zoom" validate:"gte=0,lte=30"`
}

type OverlayTileServerRequest struct {
	// URL is empty to remove the overlay layer.
	URL string `json:"url" validate:"omitempty,url"`
}

type SizeRequest struct {
	Width  int `json:"width" validate:"required,gt=0,lte=16384"`
	Height int `json:"height" validate:"required,gt=0,lte=16384"`
}

type GeoResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ViewportResponse = usecase.ViewportState

type MarkerRequest struct {
	Latitude  *float64      `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64      `json:"longitude" validate:"required,gte=-180,lte=180"`
	Style     overlay.Style `json:"style"`
}

// MarkerUpdateRequest moves or relabels a marker; omitted fields keep their value.
type MarkerUpdateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Text      *string  `json:"text"`
}

type PathRequest struct {
	Positions [][2]float64  `json:"positions" validate:"required,min=2"`
	Style     overlay.Style `json:"style"`
}

type PolygonRequest struct {
	Positions [][2]float64  `json:"positions" validate:"required,min=3"`
	Style     overlay.Style `json:"style"`
}

type OverlayPositionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	// Index is where the position is inserted; appended when omitted.
	Index     *int     `json:"index" validate:"omitempty,gte=0"`
}

type OverlayCreatedResponse struct {
	ID uuid.UUID `json:"id"`
}

type OverlayResponse struct {
	ID        uuid.UUID     `json:"id"`
	Kind      overlay.Kind  `json:"kind"`
	Positions [][2]float64  `json:"positions"`
	Style     overlay.Style `json:"style"`
	Visible   bool          `json:"visible"`
	Canvas    [][2]float64  `json:"canvas"`
}

func NewOverlayResponse(v usecase.OverlayView) OverlayResponse {
	canvas := make([][2]float64, len(v.Geometry.Points))
	for i, p := range v.Geometry.Points {
		canvas[i] = [2]float64{p.X(), p.Y()}
	}
	return OverlayResponse{
		ID:        v.ID,
		Kind:      v.Kind,
		Positions: v.Positions,
		Style:     v.Geometry.Style,
		Visible:   v.Geometry.Visible,
		Canvas:    canvas,
	}
}

type RemovedResponse struct {
	Removed int `json:"removed"`
}
