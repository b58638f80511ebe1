package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/models"
)

const (
	defaultQueueSize     = 4096
	defaultIngestWorkers = 4
	ingestorWriteTimeout = 5 * time.Second
)

// Ingestor persists click events without making the redirect path
// wait. Record hands the event to a bounded queue drained by a small
// pool of workers; persistence failures are logged, never returned.
//
// Delivery is best-effort, at most once: a full queue or a store
// outage drops events. That is the accepted cost of never applying
// backpressure to redirects.
type Ingestor struct {
	clicks ClickStore
	queue  chan *models.ClickEvent
	log    *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewIngestor creates the ingestor and starts its worker pool.
// Non-positive sizes fall back to defaults.
func NewIngestor(clicks ClickStore, queueSize, workers int, log *slog.Logger) *Ingestor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultIngestWorkers
	}
	if log == nil {
		log = slog.Default()
	}

	ing := &Ingestor{
		clicks: clicks,
		queue:  make(chan *models.ClickEvent, queueSize),
		log:    log,
	}

	ing.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go ing.worker()
	}

	return ing
}

// Record schedules the event for a durable write and returns
// immediately. It never blocks: when the queue is full the event is
// dropped and logged. Calling Record after Close drops the event.
func (ing *Ingestor) Record(event *models.ClickEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	ing.mu.RLock()
	defer ing.mu.RUnlock()

	if ing.closed {
		ing.log.Warn("click event dropped: ingestor closed", "link_id", event.LinkID)
		return
	}

	select {
	case ing.queue <- event:
	default:
		ing.log.Warn("click event dropped: queue full", "link_id", event.LinkID)
	}
}

// Close stops accepting events, drains the queue and waits for the
// workers to finish their in-flight writes.
func (ing *Ingestor) Close() {
	ing.mu.Lock()
	if ing.closed {
		ing.mu.Unlock()
		return
	}
	ing.closed = true
	close(ing.queue)
	ing.mu.Unlock()

	ing.wg.Wait()
}

// worker drains the queue until it is closed and empty. Each write
// gets its own background context: the originating request is long
// gone by the time the event is persisted.
func (ing *Ingestor) worker() {
	defer ing.wg.Done()

	for event := range ing.queue {
		ctx, cancel := context.WithTimeout(context.Background(), ingestorWriteTimeout)
		err := ing.clicks.Insert(ctx, event)
		cancel()

		if err != nil {
			ing.log.Error("failed to persist click event",
				"link_id", event.LinkID, "error", err)
		}
	}
}
