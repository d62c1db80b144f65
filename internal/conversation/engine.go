package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/gym-booking-bot/internal/bookings"
	"github.com/wolfman30/gym-booking-bot/internal/catalog"
	"github.com/wolfman30/gym-booking-bot/internal/keylock"
	"github.com/wolfman30/gym-booking-bot/internal/session"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// ErrNoSession is returned by Handle and Cancel when the user is not in a
// booking dialogue.
var ErrNoSession = errors.New("conversation: no active booking session")

const (
	defaultConfirmKeyword = "確認"
	defaultCancelKeyword  = "取消"
)

// CatalogSource exposes the live catalog snapshot. *catalog.Provider satisfies it.
type CatalogSource interface {
	Snapshot() *catalog.Catalog
}

// Bookings checks and commits slots. *bookings.Service satisfies it.
type Bookings interface {
	HasConflict(ctx context.Context, category, resource string, at time.Time) (bool, error)
	Commit(ctx context.Context, rec bookings.Record) error
}

// Observer records turn outcomes. *metrics.BookingMetrics satisfies it.
type Observer interface {
	ObserveTurn(state, outcome string)
	ObserveTurnLatency(state string, seconds float64)
}

// Engine drives booking dialogues, one turn at a time per user.
type Engine struct {
	sessions session.Store
	catalog  CatalogSource
	bookings Bookings
	logger   *logging.Logger
	observer Observer
	locks    *keylock.Locker
	loc      *time.Location
	now      func() time.Time
	confirm  string
	cancel   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver records turn metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithLocker shares the per-user turn lock, e.g. with the session sweeper.
func WithLocker(l *keylock.Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locks = l
		}
	}
}

// WithClock overrides the time source used for past-time checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone booking dates and times are entered in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithKeywords overrides the confirm and cancel literals.
func WithKeywords(confirm, cancel string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(confirm) != "" {
			e.confirm = strings.TrimSpace(confirm)
		}
		if strings.TrimSpace(cancel) != "" {
			e.cancel = strings.TrimSpace(cancel)
		}
	}
}

// NewEngine wires an Engine.
func NewEngine(sessions session.Store, cat CatalogSource, books Bookings, logger *logging.Logger, opts ...Option) *Engine {
	if sessions == nil {
		panic("conversation: session store required")
	}
	if cat == nil {
		panic("conversation: catalog required")
	}
	if books == nil {
		panic("conversation: bookings required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		sessions: sessions,
		catalog:  cat,
		bookings: books,
		logger:   logger,
		locks:    keylock.New(),
		loc:      time.UTC,
		now:      time.Now,
		confirm:  defaultConfirmKeyword,
		cancel:   defaultCancelKeyword,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a dialogue for userID and offers the categories. When the
// catalog is empty no session is created.
func (e *Engine) Start(ctx context.Context, userID, displayName string) (Result, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()
	started := e.now()

	existing, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: load session: %w", err)
	}
	if existing != nil {
		e.observe(existing.State, "rejected", started)
		return Result{Reply: textReply(msgAlreadyInDialogue), State: existing.State, Active: true}, nil
	}

	names := e.catalog.Snapshot().Names()
	if len(names) == 0 {
		e.logger.Warn("booking start refused: catalog empty", "user_id", userID)
		e.observe(session.StateStart, "unavailable", started)
		return Result{Reply: textReply(msgNoCategories), State: session.StateStart}, nil
	}

	s := &session.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		State:       session.StateStart,
		DisplayName: strings.TrimSpace(displayName),
		StartedAt:   started,
	}
	if err := fire(s, TriggerStart, session.StateCategorySelection); err != nil {
		return e.defect(ctx, s, err, started)
	}
	reply := optionsReply(titleCategory, msgAskCategory, names)
	return e.save(ctx, s, reply, "advanced", started)
}

// Handle feeds one user message into the dialogue.
func (e *Engine) Handle(ctx context.Context, userID, text string) (Result, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()
	started := e.now()

	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: load session: %w", err)
	}
	if s == nil {
		return Result{}, ErrNoSession
	}

	text = strings.TrimSpace(text)
	if text == e.cancel {
		return e.cancelSession(ctx, s, started)
	}

	var t turn
	switch s.State {
	case session.StateCategorySelection:
		t = e.selectCategory(s, text)
	case session.StateSpecialtySelection:
		t = e.selectSpecialty(s, text)
	case session.StateProviderSelection:
		t = e.selectProvider(s, text)
	case session.StateItemSelection:
		t = e.selectItem(s, text)
	case session.StateDateInput:
		t = e.enterDate(s, text)
	case session.StateTimeInput:
		t = e.enterTime(ctx, s, text)
	case session.StateConfirmation:
		if text != e.confirm {
			t = stay(textReply(fmt.Sprintf(msgConfirmOrCancel, e.confirm, e.cancel)))
			break
		}
		t = e.confirmBooking(ctx, s)
	default:
		t = turn{err: fmt.Errorf("%w: no handler for state %s", errInvalidTransition, s.State)}
	}

	if t.err != nil {
		return e.defect(ctx, s, t.err, started)
	}
	if s.State.Terminal() {
		return e.finish(ctx, s, t.reply, t.outcome, started)
	}
	return e.save(ctx, s, t.reply, t.outcome, started)
}

// Cancel ends the user's dialogue without booking.
func (e *Engine) Cancel(ctx context.Context, userID string) (Result, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()
	started := e.now()

	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: load session: %w", err)
	}
	if s == nil {
		return Result{}, ErrNoSession
	}
	return e.cancelSession(ctx, s, started)
}

func (e *Engine) cancelSession(ctx context.Context, s *session.Session, started time.Time) (Result, error) {
	if err := fire(s, TriggerCancel, session.StateCancelled); err != nil {
		return e.defect(ctx, s, err, started)
	}
	e.logger.Info("booking cancelled", "user_id", s.UserID, "session_id", s.ID, "category", s.Category)
	return e.finish(ctx, s, textReply(msgCancelled), "cancelled", started)
}

func (e *Engine) save(ctx context.Context, s *session.Session, reply Reply, outcome string, started time.Time) (Result, error) {
	s.UpdatedAt = e.now()
	if err := e.sessions.Put(ctx, s); err != nil {
		return Result{}, fmt.Errorf("conversation: save session: %w", err)
	}
	e.observe(s.State, outcome, started)
	return Result{Reply: reply, State: s.State, Active: true}, nil
}

// finish clears the booking fields and deletes the session.
func (e *Engine) finish(ctx context.Context, s *session.Session, reply Reply, outcome string, started time.Time) (Result, error) {
	s.Reset()
	if err := e.sessions.Delete(ctx, s.UserID); err != nil {
		e.logger.Error("failed to delete finished session", "user_id", s.UserID, "state", s.State.String(), "error", err)
	}
	e.observe(s.State, outcome, started)
	return Result{Reply: reply, State: s.State, Active: false}, nil
}

// defect handles a state the table does not cover. The broken session is
// dropped so the user can start over.
func (e *Engine) defect(ctx context.Context, s *session.Session, err error, started time.Time) (Result, error) {
	e.logger.Error("booking dialogue defect", "user_id", s.UserID, "session_id", s.ID, "state", s.State.String(), "error", err)
	if delErr := e.sessions.Delete(ctx, s.UserID); delErr != nil {
		e.logger.Error("failed to drop broken session", "user_id", s.UserID, "error", delErr)
	}
	e.observe(s.State, "defect", started)
	return Result{Reply: textReply(msgInternalError), State: s.State, Active: false}, nil
}

func (e *Engine) observe(state session.State, outcome string, started time.Time) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveTurn(state.String(), outcome)
	e.observer.ObserveTurnLatency(state.String(), e.now().Sub(started).Seconds())
}
