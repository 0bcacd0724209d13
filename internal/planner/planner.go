// Package planner turns logical schedule requests into validated
// mutation plans. It never touches the backend; persistence happens
// when the engine hands a plan to the sheets gateway.
package planner

import (
	"errors"
	"fmt"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// ErrBadValue is the named validation failure for a malformed shift
// value. Reported to the user, never retried.
var ErrBadValue = errors.New("invalid time format")

// RosterFunc supplies the current roster. A function rather than a
// value so the config watcher can swap rosters without re-wiring.
type RosterFunc func() *schedule.Roster

// Planner validates and groups mutation requests.
type Planner struct {
	roster RosterFunc
}

// New creates a planner over the live roster.
func New(roster RosterFunc) *Planner {
	return &Planner{roster: roster}
}

// PlanSingle validates one cell update. Undo restores a previously
// accepted value verbatim, so format validation is bypassed for it.
func (p *Planner) PlanSingle(name, date, value string, undo bool) (schedule.Update, error) {
	if _, _, err := schedule.ParseDayMonth(date); err != nil {
		return schedule.Update{}, err
	}
	if !undo && !schedule.ValidValue(value) {
		return schedule.Update{}, fmt.Errorf("%w: %q", ErrBadValue, value)
	}
	return schedule.Update{Name: name, Date: date, Value: value}, nil
}

// ItemError is a per-item validation failure inside a batch. The item
// is reported and skipped; valid items proceed.
type ItemError struct {
	Item   schedule.Update
	Reason string
}

// Batch is a validated multi-update plan, grouped by month because
// range addressing is local to each month sheet.
type Batch struct {
	ByMonth map[string][]schedule.Update
	Months  []string // group order, first-seen
	Errors  []ItemError
	Valid   int
}

// PlanBatch validates every item independently and groups the valid
// ones by month. A failing item never aborts the batch.
func (p *Planner) PlanBatch(items []schedule.Update) Batch {
	b := Batch{ByMonth: make(map[string][]schedule.Update)}
	for _, item := range items {
		_, month, err := schedule.ParseDayMonth(item.Date)
		if err != nil {
			b.Errors = append(b.Errors, ItemError{Item: item, Reason: err.Error()})
			continue
		}
		if !schedule.ValidValue(item.Value) {
			b.Errors = append(b.Errors, ItemError{Item: item, Reason: fmt.Sprintf("%v: %q", ErrBadValue, item.Value)})
			continue
		}
		if _, seen := b.ByMonth[month]; !seen {
			b.Months = append(b.Months, month)
		}
		b.ByMonth[month] = append(b.ByMonth[month], item)
		b.Valid++
	}
	return b
}

// FillPlan is a full-month plan plus whether the target sheet must be
// created before applying it.
type FillPlan struct {
	Month       string
	Year        int
	Items       []schedule.Update
	CreateSheet bool
}

// PlanFill generates the rotation-derived plan for a whole month.
// sheetExists comes from the gateway; when false the apply step must
// create the sheet first.
func (p *Planner) PlanFill(month string, year int, sheetExists bool) (FillPlan, error) {
	items, err := p.roster().MonthFillPlan(month, year)
	if err != nil {
		return FillPlan{}, err
	}
	return FillPlan{
		Month:       month,
		Year:        year,
		Items:       items,
		CreateSheet: !sheetExists,
	}, nil
}
