package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskworks/dashboard/internal/api/metrics"
	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher routes session events to a fixed set of workers using consistent
// hashing on the username, keeping each user's audit trail in order.
type Dispatcher struct {
	workers []chan domain.SessionEvent
	repo    ports.SessionEventRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers, each
// buffering up to buffer events. Non-positive values select the defaults.
func NewDispatcher(numWorkers, buffer int, repo ports.SessionEventRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if buffer <= 0 {
		buffer = channelBuffer
	}
	d := &Dispatcher{
		workers: make([]chan domain.SessionEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.SessionEvent, buffer)
	}
	return d
}

// Run starts all workers and blocks until ctx is cancelled and the workers
// have drained what was already queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
	d.wg.Wait()
	return nil
}

// Publish hands event to the worker responsible for its username. It never
// blocks: when that worker's buffer is full the event is dropped and logged.
func (d *Dispatcher) Publish(event domain.SessionEvent) {
	idx := d.shardIndex(shardKey(event))
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditEventsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("session_id", event.SessionID).
			Str("kind", string(event.Kind)).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

func shardKey(event domain.SessionEvent) string {
	if event.Username != "" {
		return event.Username
	}
	return event.SessionID
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.SessionEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for {
		select {
		case <-ctx.Done():
			d.drain(ctx, id, ch)
			return
		case event := <-ch:
			metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.store(ctx, id, event)
		}
	}
}

// drain persists whatever is still buffered after shutdown was requested.
func (d *Dispatcher) drain(ctx context.Context, id int, ch <-chan domain.SessionEvent) {
	for {
		select {
		case event := <-ch:
			d.store(context.WithoutCancel(ctx), id, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) store(ctx context.Context, id int, event domain.SessionEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	err := d.repo.InsertEvent(ctx, &event)
	metrics.AuditWriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AuditEventsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("session_id", event.SessionID).
			Str("kind", string(event.Kind)).
			Int("worker_id", id).
			Msg("session event persistence failed")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues("stored").Inc()
}
