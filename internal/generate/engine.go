package generate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vampirenirmal/lessonflow/internal/agent"
	"github.com/vampirenirmal/lessonflow/internal/lesson"
)

// Callbacks let the caller observe a batch while it runs. OnItemReady fires
// the moment one slide finishes, without waiting for siblings.
type Callbacks struct {
	OnProgress  func(lesson.ItemProgress)
	OnItemReady func(lesson.GeneratedItem)
	OnError     func(index int, err error)
	OnComplete  func(lesson.Stats)
}

// Engine fans out one generation task per slide description. Tasks are
// isolated: a failing task never cancels its siblings, and partial batches
// are a first-class outcome.
type Engine struct {
	generator   agent.ContentGenerator
	workers     int64
	itemTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Engine)

// WithWorkers caps how many generation tasks run concurrently.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.workers = int64(workers)
		}
	}
}

// WithItemTimeout sets the per-slide generation deadline.
func WithItemTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.itemTimeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(generator agent.ContentGenerator, opts ...Option) *Engine {
	e := &Engine{
		generator:   generator,
		workers:     5,
		itemTimeout: 3 * time.Minute,
		logger:      slog.Default().With("component", "generate_engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// event is what a worker reports to the aggregator. Exactly one of
// item/err is set for terminal events; neither is set for a status update.
type event struct {
	index      int // position in the items slice
	generating bool
	item       *lesson.GeneratedItem
	err        error
}

// GenerateAll runs one task per item and drains their events through a
// single aggregator (this goroutine), which is the only writer of the
// progress slice, the lesson's item list, and the stats. Completed items are
// delivered through OnItemReady as they land; the returned progress slice is
// the settled per-item outcome.
func (e *Engine) GenerateAll(ctx context.Context, lsn *lesson.Lesson, items []lesson.ItemDescription, topic, age string, cb Callbacks) (lesson.Stats, []lesson.ItemProgress) {
	start := time.Now()
	progress := lesson.InitialProgress(items)
	stats := lesson.Stats{Total: len(items)}

	e.logger.Info("starting generation batch",
		"lesson_id", lsn.ID,
		"item_count", len(items),
		"workers", e.workers)

	events := make(chan event, len(items)*2)
	sem := semaphore.NewWeighted(e.workers)
	var wg sync.WaitGroup

	for i := range items {
		wg.Add(1)
		go func(i int, desc lesson.ItemDescription) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				events <- event{index: i, err: err}
				return
			}
			defer sem.Release(1)

			events <- event{index: i, generating: true}

			itemCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
			defer cancel()

			content, err := e.generator.GenerateItem(itemCtx, desc, topic, age)
			if err != nil {
				events <- event{index: i, err: err}
				return
			}

			item := lesson.NewGeneratedItem(desc, content)
			events <- event{index: i, item: &item}
		}(i, items[i])
	}

	go func() {
		wg.Wait()
		close(events)
	}()

	for ev := range events {
		p := &progress[ev.index]

		switch {
		case ev.generating:
			p.Status = lesson.StatusGenerating
			p.Percent = 25
			if cb.OnProgress != nil {
				cb.OnProgress(*p)
			}

		case ev.err != nil:
			p.Status = lesson.StatusError
			p.Error = ev.err.Error()
			stats.Failed++
			e.logger.Warn("item generation failed",
				"lesson_id", lsn.ID,
				"item_index", items[ev.index].Index,
				"error", ev.err)
			if cb.OnError != nil {
				cb.OnError(items[ev.index].Index, ev.err)
			}
			if cb.OnProgress != nil {
				cb.OnProgress(*p)
			}

		default:
			p.Status = lesson.StatusCompleted
			p.Percent = 100
			lsn.Items = append(lsn.Items, *ev.item)
			stats.Completed++
			if cb.OnItemReady != nil {
				cb.OnItemReady(*ev.item)
			}
			if cb.OnProgress != nil {
				cb.OnProgress(*p)
			}
		}
	}

	stats.Elapsed = time.Since(start)

	e.logger.Info("generation batch settled",
		"lesson_id", lsn.ID,
		"total", stats.Total,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"elapsed_ms", stats.Elapsed.Milliseconds())

	if cb.OnComplete != nil {
		cb.OnComplete(stats)
	}

	return stats, progress
}
