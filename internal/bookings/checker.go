package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/gym-booking-bot/internal/catalog"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// DefaultBuffer is the minimum spacing between two bookings of one resource.
const DefaultBuffer = 2 * time.Hour

// ErrUnknownCategory is returned when a category has no booking table.
var ErrUnknownCategory = errors.New("bookings: unknown category")

// Route says where a category's bookings live and whether they may collide.
type Route struct {
	Table           string
	ConflictChecked bool
}

// Routes maps category name to Route.
type Routes map[string]Route

// RoutesFromDefinitions derives routing from catalog definitions.
func RoutesFromDefinitions(defs []catalog.Definition) Routes {
	routes := make(Routes, len(defs))
	for _, def := range defs {
		routes[def.Name] = Route{Table: def.BookingTable, ConflictChecked: !def.ConflictExempt}
	}
	return routes
}

// Lookup returns the route for category.
func (r Routes) Lookup(category string) (Route, error) {
	route, ok := r[category]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return route, nil
}

// Checker reports whether a requested slot is too close to an existing booking.
type Checker struct {
	store  Store
	routes Routes
	buffer time.Duration
	loc    *time.Location
	logger *logging.Logger
}

// NewChecker builds a Checker. A non-positive buffer means DefaultBuffer.
func NewChecker(store Store, routes Routes, buffer time.Duration, loc *time.Location, logger *logging.Logger) *Checker {
	if store == nil {
		panic("bookings: store required")
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{store: store, routes: routes, buffer: buffer, loc: loc, logger: logger}
}

// HasConflict reports whether resource already has a booking within the
// buffer of at. Exempt categories never conflict and are not read.
func (c *Checker) HasConflict(ctx context.Context, category, resource string, at time.Time) (bool, error) {
	route, err := c.routes.Lookup(category)
	if err != nil {
		return false, err
	}
	return c.conflictIn(ctx, route, resource, at)
}

func (c *Checker) conflictIn(ctx context.Context, route Route, resource string, at time.Time) (bool, error) {
	if !route.ConflictChecked {
		return false, nil
	}
	records, err := c.store.List(ctx, route.Table)
	if err != nil {
		return false, fmt.Errorf("bookings: conflict check: %w", err)
	}
	for _, rec := range records {
		if rec.Item != resource {
			continue
		}
		existing, err := rec.Slot(c.loc)
		if err != nil {
			c.logger.Warn("skipping unparsable booking row", "table", route.Table, "date", rec.Date, "time", rec.Time)
			continue
		}
		if within(at, existing, c.buffer) {
			return true, nil
		}
	}
	return false, nil
}

func within(a, b time.Time, buffer time.Duration) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta < buffer
}
