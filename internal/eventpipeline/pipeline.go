package eventpipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"surf-core/internal/async"
	"surf-core/internal/coreapi"
	"surf-core/internal/logging"
	"surf-core/internal/metrics"
	"surf-core/internal/storage"
	"surf-core/internal/tracing"
	"surf-core/internal/vectormemory"
)

// indexableExtensions are file extensions whose created/modified text
// content the pipeline indexes into vector memory for later semantic
// recall, per §9's "index event text content for specific extensions."
var indexableExtensions = map[string]bool{
	".md": true, ".txt": true, ".go": true, ".py": true, ".rs": true, ".ts": true, ".js": true,
}

// Pipeline is the Event Pipeline (§4.6): a single bounded-channel consumer
// that privacy-masks, persists, and sessionizes every Event the Screen
// Sensor, filesystem watcher, and Planner publish.
type Pipeline struct {
	ch     chan coreapi.Event
	mask   *PrivacyMask
	store  *storage.Store
	vector *vectormemory.Store
	logger logging.Logger

	batchSize  int
	maxAge     time.Duration
	idleCutoff time.Duration

	mu          sync.Mutex
	pending     []coreapi.Event
	lastFlushAt time.Time
	lastEventAt time.Time

	onFlush func(ctx context.Context)
}

// OnFlush registers a callback invoked, in its own goroutine, after every
// flush that persisted at least one event. The Pattern Engine's Tick hangs
// off this to satisfy §4.7's "runs on flush and on a 5-min background tick"
// without the Event Pipeline importing the Pattern Engine.
func (p *Pipeline) OnFlush(fn func(ctx context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFlush = fn
}

// idleQuiet is how long the channel must go without a new event, while
// pending holds unflushed events, before the ticker treats it as an "idle
// event" flush trigger (§4.6's third buffering condition).
const idleQuiet = 2 * time.Second

// New builds a Pipeline with a bounded channel of the given capacity
// (SURF_EVENT_QUEUE_SIZE, default 1000, §4.6). vector may be nil to disable
// content indexing.
func New(capacity int, mask *PrivacyMask, store *storage.Store, vector *vectormemory.Store, batchSize int, maxAge, idleCutoff time.Duration, logger logging.Logger) *Pipeline {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Pipeline{
		ch:         make(chan coreapi.Event, capacity),
		mask:       mask,
		store:      store,
		vector:     vector,
		logger:     logging.OrNop(logger),
		batchSize:  batchSize,
		maxAge:     maxAge,
		idleCutoff: idleCutoff,
	}
}

// QueueDepth reports how many events are currently buffered in the
// ingestion channel, for the /metrics gauge.
func (p *Pipeline) QueueDepth() int {
	return len(p.ch)
}

// Ingest enqueues ev without blocking; on a full channel it drops the event
// and logs a warning rather than stall the producer (§4.6, §8 boundary
// behavior: "Event channel full → producer drops and logs; consumer never
// deadlocks").
func (p *Pipeline) Ingest(ev coreapi.Event) error {
	select {
	case p.ch <- ev:
		metrics.EventsIngestedTotal.WithLabelValues(string(ev.Source)).Inc()
		return nil
	default:
		p.logger.Warn("eventpipeline: queue full, dropping event %s (source=%s type=%s)", ev.EventID, ev.Source, ev.EventType)
		metrics.EventsDroppedTotal.Inc()
		return nil
	}
}

// Run drains the channel until ctx is cancelled, flushing to storage on
// batch-size, max-age, or idle triggers (§4.6's buffering condition). On
// cancel it consumes the events still queued in the channel, then flushes.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case ev, ok := <-p.ch:
					if ok {
						p.consume(context.Background(), ev)
					} else {
						drained = true
					}
				default:
					drained = true
				}
			}
			p.flush(context.Background())
			return ctx.Err()
		case ev, ok := <-p.ch:
			if !ok {
				p.flush(context.Background())
				return nil
			}
			p.consume(ctx, ev)
		case <-ticker.C:
			metrics.EventQueueDepth.Set(float64(p.QueueDepth()))
			p.maybeFlush(ctx)
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, ev coreapi.Event) {
	if p.mask != nil {
		ev = p.mask.Apply(ev)
	}

	p.mu.Lock()
	p.pending = append(p.pending, ev)
	size := len(p.pending)
	p.lastEventAt = time.Now()
	p.mu.Unlock()

	p.maybeIndex(ctx, ev)

	if size >= p.batchSize {
		p.flush(ctx)
		return
	}
	p.maybeFlush(ctx)
}

// maybeFlush checks the age and idle triggers; the batch-size trigger is
// checked inline in consume since it only needs to run right after append.
func (p *Pipeline) maybeFlush(ctx context.Context) {
	p.mu.Lock()
	hasPending := len(p.pending) > 0
	aged := hasPending && time.Since(p.lastFlushAt) >= p.maxAge
	idle := hasPending && time.Since(p.lastEventAt) >= idleQuiet
	p.mu.Unlock()

	if aged || idle {
		p.flush(ctx)
	}
}

// flush persists every pending Event and rolls completed sessions out of the
// ones that have gone idle, then clears the buffer.
func (p *Pipeline) flush(ctx context.Context) {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.lastFlushAt = time.Now()
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, span := tracing.StartSpan(ctx, tracing.ScopeEvents, tracing.SpanEventFlush, "")
	defer tracing.End(span, nil)

	for _, ev := range batch {
		if err := p.store.InsertEvent(ctx, ev); err != nil {
			p.logger.Error("eventpipeline: failed to persist event %s: %v", ev.EventID, err)
		}
	}

	sessions := sessionize(batch, p.idleCutoff)
	for _, sess := range sessions {
		if err := p.store.InsertSession(ctx, sess); err != nil {
			p.logger.Error("eventpipeline: failed to persist session %s: %v", sess.SessionID, err)
		}
	}

	p.mu.Lock()
	onFlush := p.onFlush
	p.mu.Unlock()
	if onFlush != nil {
		async.Go(p.logger, "eventpipeline.onFlush", func() {
			onFlush(context.Background())
		})
	}
}

// maybeIndex feeds file-created/modified text content into vector memory,
// if the resource extension is one worth indexing and the pipeline has a
// vector store wired.
func (p *Pipeline) maybeIndex(ctx context.Context, ev coreapi.Event) {
	if p.vector == nil || ev.Resource == nil || ev.Resource.Type != "file" {
		return
	}
	if ev.EventType != "file_created" && ev.EventType != "file_modified" {
		return
	}
	if !indexableExtensions[strings.ToLower(filepath.Ext(ev.Resource.ID))] {
		return
	}
	content, ok := ev.Payload["content"].(string)
	if !ok || content == "" {
		return
	}
	if err := p.vector.Add(ctx, ev.EventID, content, map[string]string{"path": ev.Resource.ID}); err != nil {
		p.logger.Warn("eventpipeline: failed to index %s into vector memory: %v", ev.Resource.ID, err)
	}
}
