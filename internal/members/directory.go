// Package members looks up gym members in the member worksheet.
package members

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/gym-booking-bot/internal/sheets"
)

var (
	// ErrMemberNotFound is returned when no row matches the keyword.
	ErrMemberNotFound = errors.New("members: member not found")
	// ErrInvalidKeyword is returned for a blank keyword.
	ErrInvalidKeyword = errors.New("members: keyword required")
)

// DefaultSheet is the worksheet holding member rows.
const DefaultSheet = "會員資料"

var memberNumber = regexp.MustCompile(`^[A-Z]\d{5}$`)

// Member is one row of the member worksheet.
type Member struct {
	Number    string `json:"number"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	Points    string `json:"points,omitempty"`
	ExpiresOn string `json:"expires_on,omitempty"`
}

// Directory resolves members by number or name.
type Directory struct {
	source sheets.Source
	sheet  string
}

// NewDirectory reads members from sheet (DefaultSheet when blank).
func NewDirectory(source sheets.Source, sheet string) *Directory {
	if source == nil {
		panic("members: sheets source required")
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	return &Directory{source: source, sheet: sheet}
}

// Lookup matches keyword against 會員編號 when it looks like a member number
// (A00001), otherwise as a substring of 姓名. The first match wins.
func (d *Directory) Lookup(ctx context.Context, keyword string) (Member, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Member{}, ErrInvalidKeyword
	}
	values, err := d.source.Values(ctx, d.sheet)
	if err != nil {
		return Member{}, fmt.Errorf("members: read %s: %w", d.sheet, err)
	}

	byNumber := memberNumber.MatchString(strings.ToUpper(keyword))
	for _, row := range sheets.Records(values) {
		if byNumber {
			if strings.EqualFold(row.Get("會員編號"), keyword) {
				return fromRow(row), nil
			}
			continue
		}
		if strings.Contains(row.Get("姓名"), keyword) {
			return fromRow(row), nil
		}
	}
	return Member{}, fmt.Errorf("%w: %q", ErrMemberNotFound, keyword)
}

func fromRow(row sheets.Row) Member {
	return Member{
		Number:    row.Get("會員編號"),
		Name:      row.Get("姓名"),
		Type:      row.Get("會員類型"),
		Status:    row.Get("會員狀態"),
		Points:    row.Get("會員點數"),
		ExpiresOn: row.Get("會員到期日"),
	}
}
