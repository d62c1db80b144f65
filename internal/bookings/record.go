package bookings

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidDate is returned for dates outside YYYY-MM-DD or YYYY/MM/DD.
	ErrInvalidDate = errors.New("bookings: invalid date")
	// ErrInvalidTime is returned for times outside H:MM or HH:MM.
	ErrInvalidTime = errors.New("bookings: invalid time")
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Header is the column order of every booking table.
var Header = []string{"使用者ID", "會員姓名", "類別", "項目", "日期", "時間"}

// Record is one committed booking. For coaches Item holds the provider name,
// for venues the venue name.
type Record struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Item        string `json:"item"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// Values renders the record in Header order.
func (r Record) Values() []string {
	return []string{r.UserID, r.DisplayName, r.Category, r.Item, r.Date, r.Time}
}

// RecordFromValues reads a row written by Values. Missing trailing cells are blank.
func RecordFromValues(row []string) Record {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return Record{
		UserID:      cell(0),
		DisplayName: cell(1),
		Category:    cell(2),
		Item:        cell(3),
		Date:        cell(4),
		Time:        cell(5),
	}
}

// Slot resolves the record's date and time in loc.
func (r Record) Slot(loc *time.Location) (time.Time, error) {
	return ParseSlot(r.Date, r.Time, loc)
}

// ParseDate accepts YYYY-MM-DD or YYYY/MM/DD and returns YYYY-MM-DD.
func ParseDate(text string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), "/", "-")
	day, err := time.Parse("2006-1-2", normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	return day.Format(dateLayout), nil
}

// ParseClock accepts H:MM or HH:MM (full-width colon allowed) and returns HH:MM.
func ParseClock(text string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), "：", ":")
	clock, err := time.Parse(clockLayout, normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, text)
	}
	return clock.Format(clockLayout), nil
}

// ParseSlot combines a date and time into an instant in loc. Either part may
// be in any format ParseDate or ParseClock accepts.
func ParseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(dateLayout+" "+clockLayout, d+" "+c, loc)
}
