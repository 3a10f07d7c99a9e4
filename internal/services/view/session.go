// Package view owns the lifecycle of the synchronized client state.
//
// A Session is created per active view: mounting it opens one
// change-notification channel per resource and fires the initial
// reconciliation; unmounting closes the channels. Caches live inside the
// session rather than as package globals, so a remount starts clean.
package view

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/novafi/novafi/internal/cache"
	"github.com/novafi/novafi/internal/entity"
	"github.com/novafi/novafi/internal/services/refresher"
)

// Reader performs full-list reads per resource type.
type Reader interface {
	FetchWallets(ctx context.Context) ([]entity.Wallet, error)
	FetchTransactions(ctx context.Context) ([]entity.Transaction, error)
	FetchStakes(ctx context.Context) ([]entity.Stake, error)
}

// Handle is an open change-notification subscription.
type Handle interface {
	Close()
}

// SubscribeFunc opens a notification channel for a table; the handler is
// called for every change while the handle stays open.
type SubscribeFunc func(ctx context.Context, table entity.Resource, handler func(entity.ChangeNotification)) (Handle, error)

// Journal receives every committed wallet snapshot.
type Journal interface {
	Save(entity.Snapshot[entity.Wallet]) error
}

// Session holds the caches and coordinator for one mounted view.
type Session struct {
	Wallets      *cache.Cache[entity.Wallet]
	Transactions *cache.Cache[entity.Transaction]
	Stakes       *cache.Cache[entity.Stake]

	coordinator *refresher.Coordinator
	subscribe   SubscribeFunc
	logger      *zap.Logger

	mu      sync.Mutex
	mounted bool
	handles map[entity.Resource]Handle
}

// NewSession wires caches and refresh functions; nothing is fetched until
// Mount. journal may be nil.
func NewSession(backend Reader, subscribe SubscribeFunc, journal Journal, logger *zap.Logger) *Session {
	s := &Session{
		Wallets:      cache.New[entity.Wallet](),
		Transactions: cache.New[entity.Transaction](),
		Stakes:       cache.New[entity.Stake](),
		coordinator:  refresher.New(logger),
		subscribe:    subscribe,
		logger:       logger,
		handles:      make(map[entity.Resource]Handle),
	}

	walletHooks := []func(entity.Snapshot[entity.Wallet]){}
	if journal != nil {
		walletHooks = append(walletHooks, func(snap entity.Snapshot[entity.Wallet]) {
			if err := journal.Save(snap); err != nil {
				logger.Warn("journal wallet snapshot", zap.Error(err))
			}
		})
	}

	s.coordinator.Register(entity.ResourceWallets,
		refresher.Snapshotter(s.Wallets, backend.FetchWallets, walletHooks...))
	s.coordinator.Register(entity.ResourceTransactions,
		refresher.Snapshotter(s.Transactions, backend.FetchTransactions))
	s.coordinator.Register(entity.ResourceStakes,
		refresher.Snapshotter(s.Stakes, backend.FetchStakes))

	return s
}

// Coordinator exposes the refresh coordinator for mutation wiring.
func (s *Session) Coordinator() *refresher.Coordinator {
	return s.coordinator
}

// Mount opens one subscription per resource and fires the initial
// reconciliation. Mounting an already-mounted session is a no-op, so a
// remount cannot end up with two channels per table.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	s.mu.Unlock()

	for _, res := range entity.Resources() {
		res := res
		handle, err := s.subscribe(ctx, res, func(n entity.ChangeNotification) {
			s.logger.Debug("change notification",
				zap.String("table", string(n.Table)), zap.String("event", string(n.Event)))
			s.coordinator.Trigger(ctx, res)
		})
		if err != nil {
			// Missed notifications mean staleness, not corruption: mutations
			// still force reconciliation. Keep the view usable.
			s.logger.Warn("subscription failed, view degrades to stale-until-trigger",
				zap.String("table", string(res)), zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.handles[res] = handle
		s.mu.Unlock()
	}

	s.coordinator.TriggerAll(ctx, entity.Resources()...)
	return nil
}

// Unmount closes every subscription. Reads already in flight complete and
// their results are discarded by the sequence guard.
func (s *Session) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	handles := s.handles
	s.handles = make(map[entity.Resource]Handle)
	s.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}
