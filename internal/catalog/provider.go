package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// SnapshotLoader produces catalog snapshots.
type SnapshotLoader interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Observer is notified after every successful refresh.
type Observer interface {
	ObserveCatalog(categories int)
}

// Provider owns the live snapshot. Readers get an immutable *Catalog;
// a refresh swaps the pointer and never touches a snapshot in use.
type Provider struct {
	loader   SnapshotLoader
	logger   *logging.Logger
	observer Observer
	current  atomic.Pointer[Catalog]
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithObserver reports catalog sizes after refresh.
func WithObserver(o Observer) ProviderOption {
	return func(p *Provider) {
		p.observer = o
	}
}

// NewProvider creates a Provider holding an empty snapshot until the first
// Refresh.
func NewProvider(loader SnapshotLoader, logger *logging.Logger, opts ...ProviderOption) *Provider {
	if loader == nil {
		panic("catalog: loader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Provider{loader: loader, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	p.current.Store(Empty())
	return p
}

// Snapshot returns the current catalog. It is never nil.
func (p *Provider) Snapshot() *Catalog {
	return p.current.Load()
}

// Refresh loads a new snapshot and publishes it. On failure the previous
// snapshot stays live and the error is returned.
func (p *Provider) Refresh(ctx context.Context) (*Catalog, error) {
	next, err := p.loader.Load(ctx)
	if err != nil {
		p.logger.Error("catalog refresh failed; keeping previous snapshot", "error", err)
		return p.Snapshot(), err
	}
	if next == nil {
		next = Empty()
	}
	p.current.Store(next)
	if p.observer != nil {
		p.observer.ObserveCatalog(next.Len())
	}
	p.logger.Info("catalog refreshed", "categories", next.Names())
	return next, nil
}

// Run refreshes on every tick until ctx is cancelled.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		p.logger.Info("catalog refresh loop disabled")
		return
	}
	p.logger.Info("starting catalog refresh loop", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("catalog refresh loop shutting down")
			return
		case <-ticker.C:
			_, _ = p.Refresh(ctx)
		}
	}
}
