package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP       HTTP       `envPrefix:"HTTP_"`
		Logger     Logger     `envPrefix:"LOGGER_"`
		Telemetry  Telemetry  `envPrefix:"TELEMETRY_"`
		Map        Map        `envPrefix:"MAP_"`
		TileServer TileServer `envPrefix:"TILE_SERVER_"`
		Fetch      Fetch      `envPrefix:"FETCH_"`
		Cache      Cache      `envPrefix:"CACHE_"`
		Store      Store      `envPrefix:"STORE_"`
		Redis      Redis      `envPrefix:"REDIS_"`
		Prefetch   Prefetch   `envPrefix:"PREFETCH_"`
		Render     Render     `envPrefix:"RENDER_"`
		Geocoder   Geocoder   `envPrefix:"GEOCODER_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-mapview"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	// Map describes the viewport the service starts with.
	Map struct {
		Width      int     `env:"WIDTH" envDefault:"1000"`
		Height     int     `env:"HEIGHT" envDefault:"700"`
		Latitude   float64 `env:"LATITUDE" envDefault:"52.516268"`
		Longitude  float64 `env:"LONGITUDE" envDefault:"13.377695"`
		Zoom       float64 `env:"ZOOM" envDefault:"17"`
		Background string  `env:"BACKGROUND" envDefault:"#dbdbdb"`
	}

	TileServer struct {
		URL        string `env:"URL" envDefault:"https://a.tile.openstreetmap.org/{z}/{x}/{y}.png"`
		OverlayURL string `env:"OVERLAY_URL"`
		TileSize   int    `env:"TILE_SIZE" envDefault:"256"`
		MaxZoom    int    `env:"MAX_ZOOM" envDefault:"19"`
	}

	Fetch struct {
		Workers   int           `env:"WORKERS" envDefault:"16"`
		Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
		UserAgent string        `env:"USER_AGENT" envDefault:"GuideHelperMapView/1.0 (https://github.com/jaennil/guide_helper)"`
		RateLimit float64       `env:"RATE_LIMIT" envDefault:"0"`
		RateBurst int           `env:"RATE_BURST" envDefault:"8"`
	}

	Cache struct {
		Ceiling int `env:"CEILING" envDefault:"10000"`
	}

	Store struct {
		Type         string `env:"TYPE" envDefault:"none"`
		Path         string `env:"PATH" envDefault:"offline_tiles.db"`
		DatabaseOnly bool   `env:"DATABASE_ONLY" envDefault:"false"`
		WriteThrough bool   `env:"WRITE_THROUGH" envDefault:"false"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}

	Prefetch struct {
		Enabled   bool          `env:"ENABLED" envDefault:"true"`
		MaxRadius int           `env:"MAX_RADIUS" envDefault:"8"`
		Idle      time.Duration `env:"IDLE" envDefault:"100ms"`
	}

	Render struct {
		Interval     time.Duration `env:"INTERVAL" envDefault:"10ms"`
		FadeInterval time.Duration `env:"FADE_INTERVAL" envDefault:"16ms"`
	}

	Geocoder struct {
		BaseURL   string        `env:"BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
		Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
		RateLimit float64       `env:"RATE_LIMIT" envDefault:"1"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
