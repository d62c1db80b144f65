package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/gym-booking-bot/internal/keylock"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

var bookingsTracer = otel.Tracer("gymbot.internal.bookings")

// ErrSlotTaken is returned by Commit when another booking landed inside the
// buffer after the slot was offered.
var ErrSlotTaken = errors.New("bookings: slot taken")

// Observer receives booking outcomes. *metrics.BookingMetrics satisfies it.
type Observer interface {
	ObserveCommit(category, result string)
	ObserveConflict(category string)
}

// Service routes categories to tables, checks conflicts and commits records.
type Service struct {
	store    Store
	routes   Routes
	checker  *Checker
	locks    *keylock.Locker
	logger   *logging.Logger
	observer Observer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithObserver records commit and conflict outcomes.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService constructs a bookings service.
func NewService(store Store, routes Routes, checker *Checker, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("bookings: store required")
	}
	if checker == nil {
		panic("bookings: checker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:   store,
		routes:  routes,
		checker: checker,
		locks:   keylock.New(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasConflict checks a candidate slot before the user confirms it.
func (s *Service) HasConflict(ctx context.Context, category, resource string, at time.Time) (bool, error) {
	conflict, err := s.checker.HasConflict(ctx, category, resource, at)
	if conflict {
		s.observeConflict(category)
	}
	return conflict, err
}

// Commit writes rec to its category's table. For conflict-checked categories
// the check is repeated under a per-resource lock so two confirmations for
// the same slot cannot both land.
func (s *Service) Commit(ctx context.Context, rec Record) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("gymbot.category", rec.Category),
		attribute.String("gymbot.item", rec.Item),
	)

	route, err := s.routes.Lookup(rec.Category)
	if err != nil {
		span.RecordError(err)
		s.observeCommit(rec.Category, "unknown_category")
		s.logger.Error("no booking table for category", "category", rec.Category, "user_id", rec.UserID)
		return err
	}

	if route.ConflictChecked {
		unlock := s.locks.Lock(route.Table + "\x00" + rec.Item)
		defer unlock()

		at, err := rec.Slot(s.checker.loc)
		if err != nil {
			span.RecordError(err)
			s.observeCommit(rec.Category, "invalid")
			return fmt.Errorf("bookings: commit: %w", err)
		}
		conflict, err := s.checker.conflictIn(ctx, route, rec.Item, at)
		if err != nil {
			span.RecordError(err)
			s.observeCommit(rec.Category, "error")
			return err
		}
		if conflict {
			span.SetAttributes(attribute.Bool("gymbot.conflict", true))
			s.observeConflict(rec.Category)
			s.observeCommit(rec.Category, "slot_taken")
			s.logger.Warn("slot taken at commit", "category", rec.Category, "item", rec.Item, "date", rec.Date, "time", rec.Time)
			return ErrSlotTaken
		}
	}

	if err := s.store.Append(ctx, route.Table, rec); err != nil {
		span.RecordError(err)
		s.observeCommit(rec.Category, "error")
		s.logger.Error("booking write failed", "category", rec.Category, "user_id", rec.UserID, "error", err)
		return err
	}
	s.observeCommit(rec.Category, "ok")
	s.logger.Info("booking committed", "category", rec.Category, "item", rec.Item,
		"date", rec.Date, "time", rec.Time, "user_id", rec.UserID)
	return nil
}

func (s *Service) observeCommit(category, result string) {
	if s.observer != nil {
		s.observer.ObserveCommit(category, result)
	}
}

func (s *Service) observeConflict(category string) {
	if s.observer != nil {
		s.observer.ObserveConflict(category)
	}
}
