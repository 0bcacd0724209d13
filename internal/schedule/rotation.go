// Package schedule models the rotating shift schedule: who works when,
// what a valid cell value looks like, and how a whole month is generated.
// Everything in this package is pure; I/O lives in the sheets package.
package schedule

import (
	"fmt"
	"time"
)

// DayOff is the sentinel cell value for a non-working day.
const DayOff = "Day off"

// rotationPeriod is the length of the work cycle in days (2 on / 2 off).
const rotationPeriod = 4

// Employee is one member of the rotation. AnchorPos fixes the employee's
// phase within the cycle relative to the roster's anchor date.
type Employee struct {
	Name      string `yaml:"name" json:"name"`
	AnchorPos int    `yaml:"anchor_pos" json:"anchor_pos"`
	Shift     string `yaml:"shift" json:"shift"`
}

// Roster is the full employee configuration. Immutable once loaded; the
// config watcher swaps in a fresh Roster rather than mutating one.
type Roster struct {
	AnchorDate time.Time
	Employees  []Employee
}

// Names returns employee names in configured order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.Employees))
	for i, e := range r.Employees {
		names[i] = e.Name
	}
	return names
}

// Find returns the employee with the given name.
func (r *Roster) Find(name string) (Employee, bool) {
	for _, e := range r.Employees {
		if e.Name == name {
			return e, true
		}
	}
	return Employee{}, false
}

// OnShift reports whether the employee works on the given date.
// Phase 0 and 1 of the 4-day cycle are working days.
func (r *Roster) OnShift(e Employee, day time.Time) bool {
	delta := daysBetween(r.AnchorDate, day)
	return floorMod(e.AnchorPos+delta, rotationPeriod) < 2
}

// ShiftFor returns the employee's shift label for the date, or DayOff.
func (r *Roster) ShiftFor(e Employee, day time.Time) string {
	if r.OnShift(e, day) {
		return e.Shift
	}
	return DayOff
}

// Update is one planned cell mutation: set (Name, Date) to Value.
// Date is "DD.MM"; the year is implicit (current year at apply time).
type Update struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	Value string `json:"time"`
}

// MonthFillPlan emits one Update per employee per calendar day of the
// month, day-major and employee-minor in roster order.
func (r *Roster) MonthFillPlan(month string, year int) ([]Update, error) {
	days, err := DaysIn(month, year)
	if err != nil {
		return nil, err
	}
	m, _ := monthNumber(month)
	updates := make([]Update, 0, days*len(r.Employees))
	for day := 1; day <= days; day++ {
		d := time.Date(year, time.Month(m), day, 0, 0, 0, 0, time.UTC)
		for _, e := range r.Employees {
			updates = append(updates, Update{
				Name:  e.Name,
				Date:  fmt.Sprintf("%02d.%s", day, month),
				Value: r.ShiftFor(e, d),
			})
		}
	}
	return updates, nil
}

// daysBetween counts whole calendar days from a to b, negative when b
// precedes a. Both are normalized to midnight UTC first so wall-clock
// components never skew the count.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// floorMod is a mod that is non-negative for negative x, so dates before
// the anchor land on the correct phase.
func floorMod(x, m int) int {
	return ((x % m) + m) % m
}
