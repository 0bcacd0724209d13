package planner

import (
	"errors"
	"testing"
	"time"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

func testRoster() *schedule.Roster {
	return &schedule.Roster{
		AnchorDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Employees: []schedule.Employee{
			{Name: "Alice", AnchorPos: 0, Shift: "09:00 - 18:00"},
			{Name: "Bob", AnchorPos: 1, Shift: "13:00 - 21:00"},
			{Name: "Carol", AnchorPos: 2, Shift: "09:00 - 18:00"},
			{Name: "Dave", AnchorPos: 3, Shift: "13:00 - 21:00"},
		},
	}
}

func newTestPlanner() *Planner {
	r := testRoster()
	return New(func() *schedule.Roster { return r })
}

func TestPlanSingle(t *testing.T) {
	p := newTestPlanner()

	u, err := p.PlanSingle("Bob", "18.02", "13:00 - 21:00", false)
	if err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if u.Name != "Bob" || u.Date != "18.02" {
		t.Errorf("update = %+v", u)
	}

	if _, err := p.PlanSingle("Bob", "18.02", "13:00-21:00", false); !errors.Is(err, ErrBadValue) {
		t.Errorf("expected ErrBadValue for missing spaces, got %v", err)
	}
	if _, err := p.PlanSingle("Bob", "18.02", schedule.DayOff, false); err != nil {
		t.Errorf("day-off sentinel rejected: %v", err)
	}
	if _, err := p.PlanSingle("Bob", "not a date", "13:00 - 21:00", false); err == nil {
		t.Error("expected error for bad date")
	}
	// Undo bypasses format validation: it restores accepted values verbatim.
	if _, err := p.PlanSingle("Bob", "18.02", "whatever was there", true); err != nil {
		t.Errorf("undo must bypass validation, got %v", err)
	}
}

func TestPlanBatch_GroupsByMonthAndSkipsInvalid(t *testing.T) {
	p := newTestPlanner()
	b := p.PlanBatch([]schedule.Update{
		{Name: "Alice", Date: "30.04", Value: "09:00 - 18:00"},
		{Name: "Bob", Date: "01.05", Value: "13:00 - 21:00"},
		{Name: "Carol", Date: "02.05", Value: "13:00-21:00"}, // bad format
		{Name: "Dave", Date: "02.05", Value: schedule.DayOff},
	})

	if b.Valid != 3 {
		t.Errorf("valid = %d, want 3", b.Valid)
	}
	if len(b.Errors) != 1 || b.Errors[0].Item.Name != "Carol" {
		t.Errorf("errors = %+v", b.Errors)
	}
	if len(b.ByMonth["04"]) != 1 || len(b.ByMonth["05"]) != 2 {
		t.Errorf("grouping = %v", b.ByMonth)
	}
	if len(b.Months) != 2 || b.Months[0] != "04" || b.Months[1] != "05" {
		t.Errorf("month order = %v, want first-seen [04 05]", b.Months)
	}
}

func TestPlanFill(t *testing.T) {
	p := newTestPlanner()
	plan, err := p.PlanFill("02", 2026, false)
	if err != nil {
		t.Fatalf("PlanFill: %v", err)
	}
	if len(plan.Items) != 112 {
		t.Errorf("items = %d, want 112", len(plan.Items))
	}
	if !plan.CreateSheet {
		t.Error("CreateSheet should be set when the sheet is missing")
	}

	plan, err = p.PlanFill("02", 2026, true)
	if err != nil {
		t.Fatalf("PlanFill: %v", err)
	}
	if plan.CreateSheet {
		t.Error("CreateSheet should be clear when the sheet exists")
	}

	if _, err := p.PlanFill("13", 2026, true); err == nil {
		t.Error("expected error for month 13")
	}
}
