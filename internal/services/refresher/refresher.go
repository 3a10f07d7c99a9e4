// Package refresher reconciles resource caches with the backend.
//
// Triggers come from three places: the realtime change feed, committed
// mutations, and the initial view mount. The coordinator collapses bursts
// of triggers into at most one in-flight read per resource, with a single
// pending re-read when triggers arrive mid-flight.
package refresher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/novafi/novafi/internal/cache"
	"github.com/novafi/novafi/internal/entity"
)

// RefreshFunc performs one full read of a resource and commits the result.
// A non-nil error means the committed snapshot was left untouched.
type RefreshFunc func(ctx context.Context) error

type resourceState struct {
	refresh  RefreshFunc
	inFlight bool
	pending  bool
}

// Coordinator schedules re-reads of registered resources.
type Coordinator struct {
	mu     sync.Mutex
	logger *zap.Logger
	state  map[entity.Resource]*resourceState
	wg     sync.WaitGroup
}

// New creates a coordinator with no registered resources.
func New(logger *zap.Logger) *Coordinator {
	return &Coordinator{
		logger: logger,
		state:  make(map[entity.Resource]*resourceState),
	}
}

// Register binds a resource name to its refresh function. Must be called
// before the first Trigger for that resource.
func (c *Coordinator) Register(res entity.Resource, fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[res] = &resourceState{refresh: fn}
}

// Trigger requests a reconciliation of the resource. If a read is already
// in flight the request is folded into a single pending re-read, so any
// number of concurrent triggers costs at most one extra read.
func (c *Coordinator) Trigger(ctx context.Context, res entity.Resource) {
	c.mu.Lock()
	st, ok := c.state[res]
	if !ok {
		c.mu.Unlock()
		c.logger.Warn("trigger for unregistered resource", zap.String("resource", string(res)))
		return
	}
	if st.inFlight {
		st.pending = true
		c.mu.Unlock()
		return
	}
	st.inFlight = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx, res, st)
}

// TriggerAll requests reconciliation of every affected resource.
func (c *Coordinator) TriggerAll(ctx context.Context, resources ...entity.Resource) {
	for _, res := range resources {
		c.Trigger(ctx, res)
	}
}

func (c *Coordinator) run(ctx context.Context, res entity.Resource, st *resourceState) {
	defer c.wg.Done()
	for {
		if err := st.refresh(ctx); err != nil {
			// The previous snapshot stays committed. No timer retry: the next
			// push notification or user action is the retry path.
			c.logger.Warn("refresh failed, keeping previous snapshot",
				zap.String("resource", string(res)), zap.Error(err))
		}

		c.mu.Lock()
		if !st.pending {
			st.inFlight = false
			c.mu.Unlock()
			return
		}
		st.pending = false
		c.mu.Unlock()
	}
}

// Wait blocks until every in-flight read has completed. Used on shutdown
// and in tests; new triggers arriving during Wait are still honored.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Snapshotter builds a RefreshFunc over a typed cache: it allocates the
// sequence number at issue time, fetches the full list, and commits.
// onCommit hooks fire only when the commit actually replaced the snapshot.
func Snapshotter[T any](
	c *cache.Cache[T],
	fetch func(ctx context.Context) ([]T, error),
	onCommit ...func(entity.Snapshot[T]),
) RefreshFunc {
	return func(ctx context.Context) error {
		seq := c.NextSeq()
		items, err := fetch(ctx)
		if err != nil {
			return err
		}
		snap := entity.Snapshot[T]{FetchSeq: seq, Items: items, FetchedAt: time.Now()}
		if !c.Commit(snap) {
			// A later-issued read already committed; this reply is obsolete.
			return nil
		}
		for _, hook := range onCommit {
			hook(snap)
		}
		return nil
	}
}
