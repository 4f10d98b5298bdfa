package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/mapview/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool, serviceName string) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware(serviceName))
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)

	m := v1.Group("/map")

	m.GET("/position", handler.Position)
	m.PUT("/position", handler.SetPosition)
	m.PUT("/zoom", handler.SetZoom)
	m.POST("/zoom/in", handler.ZoomIn)
	m.POST("/zoom/out", handler.ZoomOut)
	m.POST("/pan", handler.Pan)
	m.POST("/fling", handler.Fling)
	m.DELETE("/fling", handler.StopFading)
	m.PUT("/address", handler.SetAddress)
	m.GET("/address", handler.ReverseGeocode)
	m.PUT("/bounds", handler.FitBounds)
	m.PUT("/tile-server", handler.SetTileServer)
	m.PUT("/overlay-tile-server", handler.SetOverlayTileServer)
	m.PUT("/size", handler.Resize)
	m.GET("/viewport", handler.Viewport)
	m.GET("/geo", handler.CanvasToGeo)
	m.GET("/snapshot.png", handler.Snapshot)

	m.POST("/markers", handler.AddMarker)
	m.PATCH("/markers/:id", handler.UpdateMarker)
	m.POST("/paths", handler.AddPath)
	m.POST("/polygons", handler.AddPolygon)
	m.GET("/overlays", handler.Overlays)
	m.DELETE("/overlays", handler.RemoveOverlays)
	m.DELETE("/overlays/:id", handler.RemoveOverlay)
	m.POST("/overlays/:id/positions", handler.AddOverlayPosition)
	m.DELETE("/overlays/:id/positions", handler.RemoveOverlayPosition)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
