package models

import (
	"errors"
	"fmt"
	"strings"
)

// TimeKey addresses a (day, time-slot) coordinate shared by every routine.
type TimeKey struct {
	Day  int `json:"day"`
	Slot int `json:"slot"`
}

// String renders the key as "day-slot".
func (k TimeKey) String() string {
	return fmt.Sprintf("%d-%d", k.Day, k.Slot)
}

// RowSpec describes one time-slot row of the weekly grid. A non-empty BreakLabel marks a break row.
type RowSpec struct {
	Label      string `json:"label"`
	BreakLabel string `json:"break_label,omitempty"`
}

// IsBreak reports whether the row is excluded from scheduling.
func (r RowSpec) IsBreak() bool {
	return r.BreakLabel != ""
}

// Layout is the grid shape shared by all routines.
type Layout struct {
	Days []string  `json:"days"`
	Rows []RowSpec `json:"rows"`
}

// DefaultLayout returns a Monday to Friday grid of eight hourly rows with a lunch break as the fourth row.
func DefaultLayout() Layout {
	return Layout{
		Days: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Rows: []RowSpec{
			{Label: "9:00 - 10:00"},
			{Label: "10:00 - 11:00"},
			{Label: "11:00 - 12:00"},
			{Label: "12:00 - 1:00", BreakLabel: "Lunch Break"},
			{Label: "1:00 - 2:00"},
			{Label: "2:00 - 3:00"},
			{Label: "3:00 - 4:00"},
			{Label: "4:00 - 5:00"},
		},
	}
}

// ParseLayout builds a layout from day labels and row entries. A row entry of the
// form "label=Break Text" declares a break row.
func ParseLayout(days, rows []string) (Layout, error) {
	layout := Layout{}
	for _, day := range days {
		day = strings.TrimSpace(day)
		if day == "" {
			return Layout{}, errors.New("layout day label cannot be empty")
		}
		layout.Days = append(layout.Days, day)
	}
	if len(layout.Days) == 0 {
		return Layout{}, errors.New("layout requires at least one day")
	}

	teaching := 0
	for _, raw := range rows {
		label, breakLabel, isBreak := strings.Cut(raw, "=")
		spec := RowSpec{Label: strings.TrimSpace(label)}
		if spec.Label == "" {
			return Layout{}, fmt.Errorf("layout row %q has no time label", raw)
		}
		if isBreak {
			spec.BreakLabel = strings.TrimSpace(breakLabel)
			if spec.BreakLabel == "" {
				return Layout{}, fmt.Errorf("layout break row %q has no label", raw)
			}
		} else {
			teaching++
		}
		layout.Rows = append(layout.Rows, spec)
	}
	if teaching == 0 {
		return Layout{}, errors.New("layout requires at least one teaching row")
	}
	return layout, nil
}

// Contains reports whether the key addresses a position inside the grid.
func (l Layout) Contains(key TimeKey) bool {
	return key.Day >= 0 && key.Day < len(l.Days) && key.Slot >= 0 && key.Slot < len(l.Rows)
}

// IsBreak reports whether the slot index is a break row.
func (l Layout) IsBreak(slot int) bool {
	return slot >= 0 && slot < len(l.Rows) && l.Rows[slot].IsBreak()
}

// TimeLabels returns the row labels in grid order.
func (l Layout) TimeLabels() []string {
	labels := make([]string, len(l.Rows))
	for i, row := range l.Rows {
		labels[i] = row.Label
	}
	return labels
}

// TeachingKeys lists every schedulable key, slot-major.
func (l Layout) TeachingKeys() []TimeKey {
	var keys []TimeKey
	for slot, row := range l.Rows {
		if row.IsBreak() {
			continue
		}
		for day := range l.Days {
			keys = append(keys, TimeKey{Day: day, Slot: slot})
		}
	}
	return keys
}
