package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Definition describes where a category's offerings and bookings live.
type Definition struct {
	Name       string `json:"name"`
	Sheet      string `json:"sheet"`
	ItemColumn string `json:"item_column"`
	// SpecialtyColumn makes the category two-level when set.
	SpecialtyColumn string `json:"specialty_column,omitempty"`
	BookingTable    string `json:"booking_table"`
	ConflictExempt  bool   `json:"conflict_exempt,omitempty"`
}

// Kind derives the category variant from the definition.
func (d Definition) Kind() Kind {
	if d.SpecialtyColumn != "" {
		return KindSpecialized
	}
	return KindFlat
}

// DefaultDefinitions are the gym's three booking categories.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "團體課程", Sheet: "課程資料", ItemColumn: "課程名稱", BookingTable: "團體課程預約", ConflictExempt: true},
		{Name: "私人教練", Sheet: "教練資料", ItemColumn: "姓名", SpecialtyColumn: "教練類別", BookingTable: "私人教練預約"},
		{Name: "場地租借", Sheet: "場地資料", ItemColumn: "名稱", BookingTable: "場地租借預約"},
	}
}

// ParseDefinitions decodes a JSON array of definitions. Blank input yields
// DefaultDefinitions.
func ParseDefinitions(raw string) ([]Definition, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultDefinitions(), nil
	}
	var defs []Definition
	if err := json.Unmarshal([]byte(raw), &defs); err != nil {
		return nil, fmt.Errorf("catalog: decode definitions: %w", err)
	}
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func validateDefinitions(defs []Definition) error {
	if len(defs) == 0 {
		return fmt.Errorf("catalog: at least one category definition is required")
	}
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		switch {
		case strings.TrimSpace(d.Name) == "":
			return fmt.Errorf("catalog: definition %d: name is required", i)
		case strings.TrimSpace(d.Sheet) == "":
			return fmt.Errorf("catalog: definition %q: sheet is required", d.Name)
		case strings.TrimSpace(d.ItemColumn) == "":
			return fmt.Errorf("catalog: definition %q: item_column is required", d.Name)
		case strings.TrimSpace(d.BookingTable) == "":
			return fmt.Errorf("catalog: definition %q: booking_table is required", d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("catalog: duplicate category %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}
