// Package fetch runs tile requests on a pool of workers. Requests are served
// most recent first; finished tiles wait in a result queue until the display
// loop drains them.
package fetch

import (
	"context"
	"image"
	"sync"

	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
)

const DefaultWorkers = 16

// Target receives a fetched tile. It is the grid slot that requested it.
type Target interface {
	Key() tiles.Key
	SetImage(img image.Image)
}

type Resolver interface {
	Resolve(ctx context.Context, key tiles.Key) image.Image
}

type Task struct {
	Key    tiles.Key
	Target Target
}

type Result struct {
	Key    tiles.Key
	Target Target
	Image  image.Image
}

type Coordinator struct {
	resolver Resolver
	workers  int
	logger   logger.Logger

	mu      sync.Mutex
	pending []Task
	wake    chan struct{}

	resultsMu sync.Mutex
	results   []Result

	wg sync.WaitGroup
}

func NewCoordinator(resolver Resolver, workers int, l logger.Logger) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator{
		resolver: resolver,
		workers:  workers,
		logger:   l,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until they have.
func (c *Coordinator) Start(ctx context.Context) {
	c.logger.Info("starting tile fetch workers", "workers", c.workers)
	for range c.workers {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.work(ctx)
		}()
	}
}

func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) Enqueue(task Task) {
	c.mu.Lock()
	c.pending = append(c.pending, task)
	metrics.FetchQueueDepth.Set(float64(len(c.pending)))
	c.mu.Unlock()

	c.signal()
}

// ClearPending drops every task no worker has picked up yet and returns how
// many were dropped. Tasks already being fetched still complete.
func (c *Coordinator) ClearPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.pending)
	c.pending = nil
	metrics.FetchQueueDepth.Set(0)
	return n
}

func (c *Coordinator) ClearResults() {
	c.resultsMu.Lock()
	c.results = nil
	c.resultsMu.Unlock()
}

func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Drain removes and returns all finished results in completion order.
func (c *Coordinator) Drain() []Result {
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()

	out := c.results
	c.results = nil
	return out
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pop takes the most recently enqueued task.
func (c *Coordinator) pop() (Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.pending)
	if n == 0 {
		return Task{}, false
	}
	task := c.pending[n-1]
	c.pending[n-1] = Task{}
	c.pending = c.pending[:n-1]
	metrics.FetchQueueDepth.Set(float64(n - 1))

	if n > 1 {
		c.signal()
	}
	return task, true
}

func (c *Coordinator) work(ctx context.Context) {
	for {
		task, ok := c.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				continue
			}
		}

		if ctx.Err() != nil {
			return
		}

		img := c.resolver.Resolve(ctx, task.Key)

		c.resultsMu.Lock()
		c.results = append(c.results, Result{Key: task.Key, Target: task.Target, Image: img})
		c.resultsMu.Unlock()
	}
}
