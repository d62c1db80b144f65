package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/gym-booking-bot/internal/sheets"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

var catalogTracer = otel.Tracer("gymbot.internal.catalog")

// ErrCatalogUnavailable is returned by Load when no category could be read.
var ErrCatalogUnavailable = errors.New("catalog: no category could be loaded")

// Loader reads one worksheet per category definition.
type Loader struct {
	source sheets.Source
	defs   []Definition
	logger *logging.Logger
	now    func() time.Time
}

// NewLoader constructs a Loader over source.
func NewLoader(source sheets.Source, defs []Definition, logger *logging.Logger) *Loader {
	if source == nil {
		panic("catalog: sheets source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{
		source: source,
		defs:   append([]Definition(nil), defs...),
		logger: logger,
		now:    time.Now,
	}
}

// Load builds a fresh snapshot. A category whose worksheet is missing or
// unreadable is left out. Load fails when ctx is done or when every
// definition failed.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.load")
	defer span.End()

	categories := make([]Category, 0, len(l.defs))
	for _, def := range l.defs {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		values, err := l.source.Values(ctx, def.Sheet)
		if errors.Is(err, sheets.ErrWorksheetNotFound) {
			l.logger.Error("catalog worksheet not found; skipping category",
				"category", def.Name, "sheet", def.Sheet)
			continue
		}
		if err != nil {
			l.logger.Error("failed to load category", "category", def.Name, "sheet", def.Sheet, "error", err)
			continue
		}
		rows := sheets.Records(values)
		var cat Category
		if def.Kind() == KindSpecialized {
			cat = buildSpecialized(def, rows)
		} else {
			cat = buildFlat(def, rows)
		}
		l.logger.Info("category loaded", "category", def.Name, "rows", len(rows), "kind", cat.Kind.String())
		categories = append(categories, cat)
	}

	span.SetAttributes(attribute.Int("gymbot.catalog.categories", len(categories)))
	if len(categories) == 0 && len(l.defs) > 0 {
		err := fmt.Errorf("%w: %d definitions failed", ErrCatalogUnavailable, len(l.defs))
		span.RecordError(err)
		return nil, err
	}
	return New(categories, l.now()), nil
}

func buildFlat(def Definition, rows []sheets.Row) Category {
	cat := Category{Name: def.Name, Kind: KindFlat, Items: []string{}}
	seen := make(map[string]struct{})
	for _, row := range rows {
		item := row.Get(def.ItemColumn)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		cat.Items = append(cat.Items, item)
	}
	return cat
}

func buildSpecialized(def Definition, rows []sheets.Row) Category {
	cat := Category{Name: def.Name, Kind: KindSpecialized, Specialties: []Specialty{}}
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	for _, row := range rows {
		specialty := row.Get(def.SpecialtyColumn)
		provider := row.Get(def.ItemColumn)
		if specialty == "" || provider == "" {
			continue
		}
		idx, ok := index[specialty]
		if !ok {
			idx = len(cat.Specialties)
			index[specialty] = idx
			seen[specialty] = make(map[string]struct{})
			cat.Specialties = append(cat.Specialties, Specialty{Name: specialty})
		}
		if _, dup := seen[specialty][provider]; dup {
			continue
		}
		seen[specialty][provider] = struct{}{}
		cat.Specialties[idx].Providers = append(cat.Specialties[idx].Providers, provider)
	}
	return cat
}
