package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaennil/guide_helper/backend/mapview/internal/offline"
	"github.com/jaennil/guide_helper/backend/mapview/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/config"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
)

// barProgress draws one progress bar per zoom level.
type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) ZoomStarted(zoom, tiles int) {
	p.bar = progressbar.NewOptions(tiles,
		progressbar.OptionSetDescription(fmt.Sprintf("zoom %-2d", zoom)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
	)
}

func (p *barProgress) TileDone() {
	p.bar.Add(1)
}

func (p *barProgress) ZoomFinished(zoom int) {
	p.bar.Finish()
	fmt.Fprintln(os.Stderr)
}

func main() {
	realMain()
}

func realMain() {
	dbPath := flag.String("db", "offline_tiles.db", "offline tile database path")
	server := flag.String("server", "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png", "tile server url template")
	maxZoom := flag.Int("max-zoom", 19, "max zoom of the tile server")
	north := flag.Float64("north", 0, "latitude of the top left corner")
	west := flag.Float64("west", 0, "longitude of the top left corner")
	south := flag.Float64("south", 0, "latitude of the bottom right corner")
	east := flag.Float64("east", 0, "longitude of the bottom right corner")
	zoomA := flag.Int("zoom-min", 0, "first zoom level to load")
	zoomB := flag.Int("zoom-max", 15, "last zoom level to load")
	workers := flag.Int("workers", offline.DefaultWorkers, "number of concurrent downloads")
	rateLimit := flag.Float64("rate", 0, "max requests per second, 0 for no limit")
	userAgent := flag.String("user-agent", "GuideHelperMapView/1.0 (https://github.com/jaennil/guide_helper)", "User-Agent header sent to the tile server")
	list := flag.Bool("list", false, "list loaded sections and exit")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	l := logger.NewZapLogger(config.Logger{Level: *level})
	defer l.Sync()

	store, err := cache.NewSQLiteCache(*dbPath, l)
	if err != nil {
		log.Fatalln("failed to open offline database: ", err)
	}
	defer store.Close()

	loader, err := offline.NewLoader(store, offline.Config{
		TileServer: *server,
		MaxZoom:    *maxZoom,
		Workers:    *workers,
		UserAgent:  *userAgent,
		RateLimit:  *rateLimit,
	}, l.With("server", *server))
	if err != nil {
		log.Fatalln("invalid loader configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*list {
		topLeft := orb.Point{*west, *north}
		bottomRight := orb.Point{*east, *south}

		report, err := loader.SaveSection(ctx, topLeft, bottomRight, *zoomA, *zoomB, &barProgress{})
		switch {
		case errors.Is(err, offline.ErrSectionLoaded):
			fmt.Println("section is already in the database")
		case err != nil:
			l.Error("failed to load section", "error", err)
			os.Exit(1)
		default:
			fmt.Printf("tiles: %d  stored: %d  already present: %d  failed: %d\n",
				report.Total, report.Stored, report.Present, report.Failed)
		}
	}

	sections, err := loader.Sections(ctx)
	if err != nil {
		l.Error("failed to list sections", "error", err)
		os.Exit(1)
	}

	fmt.Println("sections in the database:")
	for _, s := range sections {
		fmt.Printf("  %s %s zoom %d-%d %s\n", s.PositionA, s.PositionB, s.ZoomA, s.ZoomB, s.Server)
	}
}
