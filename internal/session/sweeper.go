package session

import (
	"context"
	"time"

	"github.com/wolfman30/gym-booking-bot/internal/keylock"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// Expirer drops sessions idle since before cutoff.
type Expirer interface {
	Expire(ctx context.Context, cutoff time.Time) (int, error)
}

// userExpirer expires one user at a time so each deletion can run under
// that user's dialogue lock.
type userExpirer interface {
	IdleBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	ExpireUser(ctx context.Context, userID string, cutoff time.Time) (bool, error)
}

// ExpiryObserver is told how many sessions each sweep removed.
type ExpiryObserver interface {
	ObserveExpired(n int)
}

// Sweeper periodically expires idle sessions.
type Sweeper struct {
	store    Expirer
	ttl      time.Duration
	logger   *logging.Logger
	observer ExpiryObserver
	locks    *keylock.Locker
	now      func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithLocker makes the sweeper take the same per-user lock the dialogue
// engine holds for a turn, so a session is never expired mid-turn.
func WithLocker(l *keylock.Locker) SweeperOption {
	return func(s *Sweeper) {
		s.locks = l
	}
}

// NewSweeper builds a Sweeper. observer may be nil.
func NewSweeper(store Expirer, ttl time.Duration, observer ExpiryObserver, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	if store == nil {
		panic("session: expirer required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{store: store, ttl: ttl, logger: logger, observer: observer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.ttl)
	var (
		removed int
		err     error
	)
	if per, ok := s.store.(userExpirer); ok && s.locks != nil {
		removed, err = s.sweepLocked(ctx, per, cutoff)
	} else {
		removed, err = s.store.Expire(ctx, cutoff)
	}
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return 0
	}
	if removed > 0 {
		s.logger.Info("expired idle booking sessions", "count", removed)
		if s.observer != nil {
			s.observer.ObserveExpired(removed)
		}
	}
	return removed
}

func (s *Sweeper) sweepLocked(ctx context.Context, store userExpirer, cutoff time.Time) (int, error) {
	ids, err := store.IdleBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		ok, err := store.ExpireUser(ctx, id, cutoff)
		unlock()
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("session sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
