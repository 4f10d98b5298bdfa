// Package render applies finished tile fetches to the grid on the goroutine
// that owns the display.
package render

import (
	"github.com/jaennil/guide_helper/backend/mapview/internal/fetch"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
)

type Results interface {
	Drain() []fetch.Result
}

type Synchronizer struct {
	results Results
	zoom    func() int
	logger  logger.Logger
}

// NewSynchronizer returns a synchronizer reading the displayed rounded zoom
// from zoom on every drain.
func NewSynchronizer(results Results, zoom func() int, l logger.Logger) *Synchronizer {
	return &Synchronizer{
		results: results,
		zoom:    zoom,
		logger:  l,
	}
}

// Drain applies every buffered result in completion order. A result is stale
// when its zoom is no longer displayed or its slot has been readdressed since
// the fetch was queued; stale results are dropped.
func (s *Synchronizer) Drain() (applied, stale int) {
	zoom := s.zoom()

	for _, r := range s.results.Drain() {
		if r.Key.Zoom != zoom || r.Target.Key() != r.Key {
			stale++
			continue
		}
		r.Target.SetImage(r.Image)
		applied++
	}

	if applied > 0 || stale > 0 {
		metrics.RenderResultsApplied.Add(float64(applied))
		metrics.RenderResultsStale.Add(float64(stale))
		s.logger.Debug("tile results drained", "applied", applied, "stale", stale, "zoom", zoom)
	}
	return applied, stale
}
