package feeder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petrijr/conveyor/pkg/api"
)

// Config controls when a Feeder triggers engine runs.
type Config struct {
	// BatchSize triggers a run once this many items have arrived since the
	// previous trigger. Zero disables size-based triggering.
	BatchSize int

	// FlushInterval triggers a run periodically while items are pending.
	// Zero falls back to DefaultFlushInterval.
	FlushInterval time.Duration
}

// DefaultFlushInterval is used when Config.FlushInterval is zero.
const DefaultFlushInterval = time.Second

// Feeder pumps items from a channel into an Engine and triggers runs.
//
// Triggers are fire-and-forget: on a blocking engine a trigger that arrives
// while a run is active is dropped, and the items it would have flushed are
// captured by the active run's end-of-run clear instead. The feeder
// guarantees that pending items are eventually drained, not that each
// trigger starts a distinct run.
type Feeder[T any] struct {
	engine api.Engine[T]
	cfg    Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Feeder with default configuration.
func New[T any](eng api.Engine[T]) *Feeder[T] {
	return NewWithConfig(eng, Config{})
}

// NewWithConfig creates a Feeder with the given configuration.
func NewWithConfig[T any](eng api.Engine[T], cfg Config) *Feeder[T] {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Feeder[T]{
		engine: eng,
		cfg:    cfg,
	}
}

// Start launches the feed loop reading from src. It returns an error if the
// feeder is already started. The loop stops when Stop is called, the context
// is cancelled, or src is closed; a close triggers one final flush of
// pending items.
func (f *Feeder[T]) Start(ctx context.Context, src <-chan T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return errors.New("feeder: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true

	f.wg.Add(1)
	go f.loop(ctx, src)

	return nil
}

// Stop cancels the feed loop and waits for it to exit. It is a no-op when
// the feeder is not running.
func (f *Feeder[T]) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.cancel()
	f.running = false
	f.mu.Unlock()

	f.wg.Wait()
}

func (f *Feeder[T]) loop(ctx context.Context, src <-chan T) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	pending := 0

	for {
		select {
		case <-ctx.Done():
			return

		case item, ok := <-src:
			if !ok {
				if pending > 0 {
					f.engine.Start(ctx)
				}
				return
			}
			f.engine.Add(item)
			pending++
			if f.cfg.BatchSize > 0 && pending >= f.cfg.BatchSize {
				f.engine.Start(ctx)
				pending = 0
			}

		case <-ticker.C:
			if pending > 0 {
				f.engine.Start(ctx)
				pending = 0
			}
		}
	}
}
