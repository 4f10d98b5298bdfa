package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/mapview/internal/fetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/geocoding"
	v1 "github.com/jaennil/guide_helper/backend/mapview/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/mapview/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/mapview/internal/prefetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/mapview/internal/surface"
	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/internal/usecase"
	"github.com/jaennil/guide_helper/backend/mapview/internal/viewport"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/config"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("starting mapview service", "config", cfg)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, l)

	store, closer, err := cache.NewTileCache(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to initialize tile store", "type", cfg.Store.Type, "error", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	background, err := surface.ParseColor(cfg.Map.Background)
	if err != nil {
		l.Fatal("invalid background color", "color", cfg.Map.Background, "error", err)
	}

	if cfg.TileServer.OverlayURL != "" {
		if err := tiles.ValidateTemplate(cfg.TileServer.OverlayURL); err != nil {
			l.Fatal("invalid overlay tile server", "url", cfg.TileServer.OverlayURL, "error", err)
		}
	}

	tileUseCase := usecase.NewTileUseCase(tiles.NewImageCache(cfg.Cache.Ceiling), store, usecase.TileUseCaseConfig{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout,
		RateLimit:    cfg.Fetch.RateLimit,
		RateBurst:    cfg.Fetch.RateBurst,
		DatabaseOnly: cfg.Store.DatabaseOnly,
		WriteThrough: cfg.Store.WriteThrough,
		Overlay:      cfg.TileServer.OverlayURL,
	}, l)

	var wg sync.WaitGroup

	coordinator := fetch.NewCoordinator(tileUseCase, cfg.Fetch.Workers, l)
	coordinator.Start(ctx)

	var hints viewport.HintSink
	if cfg.Prefetch.Enabled {
		scheduler := prefetch.NewScheduler(tileUseCase, cfg.Prefetch.MaxRadius, cfg.Prefetch.Idle, l)
		hints = scheduler
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	geocoder := geocoding.NewClient(geocoding.Config{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Geocoder.Timeout,
		RateLimit: cfg.Geocoder.RateLimit,
	}, l)

	mapUseCase, err := usecase.NewMapUseCase(usecase.MapUseCaseConfig{
		Viewport: viewport.Config{
			Width:      cfg.Map.Width,
			Height:     cfg.Map.Height,
			TileServer: cfg.TileServer.URL,
			TileSize:   cfg.TileServer.TileSize,
			MaxZoom:    cfg.TileServer.MaxZoom,
		},
		Latitude:       cfg.Map.Latitude,
		Longitude:      cfg.Map.Longitude,
		Zoom:           cfg.Map.Zoom,
		Background:     background,
		RenderInterval: cfg.Render.Interval,
		FadeInterval:   cfg.Render.FadeInterval,
	}, tileUseCase, coordinator, hints, geocoder, l)
	if err != nil {
		l.Fatal("failed to create map", "error", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		mapUseCase.Run(ctx)
	}()

	h := handler.NewHandler(validator.New(), mapUseCase)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled, cfg.Telemetry.ServiceName)

	server := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "port", cfg.HTTP.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced to shutdown", "error", err)
	}

	cancel()
	wg.Wait()
	coordinator.Wait()

	l.Info("server stopped")
}
