package grid

import (
	"errors"
	"testing"
)

func sampleGrid(dateCell string) MonthGrid {
	return MonthGrid{
		{"", "February"},
		{"", "Alice", "Bob", "Carol", "Dave"},
		{"17.02.2025", "09:00 - 18:00", "Day off", "09:00 - 18:00", "Day off"},
		{dateCell, "Day off", "13:00 - 21:00", "Day off", "13:00 - 21:00"},
	}
}

func TestFindDateRow_AllRenderings(t *testing.T) {
	for _, cell := range []string{"18.02.2025", "18.02", "2025-02-18", "18/02/2025", "Tue 18.02"} {
		g := sampleGrid(cell)
		row, ok := FindDateRow(g, 18, "02", 2025)
		if !ok {
			t.Errorf("date cell %q: row not found", cell)
			continue
		}
		if row != 3 {
			t.Errorf("date cell %q: row = %d, want 3", cell, row)
		}
	}
}

func TestFindDateRow_NotFound(t *testing.T) {
	g := sampleGrid("19.02.2025")
	if _, ok := FindDateRow(g, 18, "02", 2025); ok {
		t.Error("expected not found for absent date")
	}
}

func TestFindNameCol(t *testing.T) {
	g := sampleGrid("18.02.2025")
	col, ok := FindNameCol(g[HeaderRow], "Bob")
	if !ok || col != 2 {
		t.Errorf("FindNameCol(Bob) = %d %v, want 2 true", col, ok)
	}
	if _, ok := FindNameCol(g[HeaderRow], "bob"); ok {
		t.Error("name matching must be exact, not case-folded")
	}
	if _, ok := FindNameCol(g[HeaderRow], "Eve"); ok {
		t.Error("expected not found for unknown name")
	}
}

func TestLocate(t *testing.T) {
	g := sampleGrid("18.02.2025")
	row, col, err := Locate(g, 18, "02", "Dave", 2025)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if row != 3 || col != 4 {
		t.Errorf("Locate = (%d, %d), want (3, 4)", row, col)
	}

	_, _, err = Locate(g, 25, "02", "Dave", 2025)
	if !errors.Is(err, ErrDateNotFound) {
		t.Errorf("expected ErrDateNotFound, got %v", err)
	}
	_, _, err = Locate(g, 18, "02", "Eve", 2025)
	if !errors.Is(err, ErrNameNotFound) {
		t.Errorf("expected ErrNameNotFound, got %v", err)
	}
}

func TestCell_RaggedRows(t *testing.T) {
	g := sampleGrid("18.02.2025")
	if v := g.Cell(2, 1); v != "09:00 - 18:00" {
		t.Errorf("Cell(2,1) = %q", v)
	}
	if v := g.Cell(2, 99); v != "" {
		t.Errorf("out-of-range column should be empty, got %q", v)
	}
	if v := g.Cell(99, 0); v != "" {
		t.Errorf("out-of-range row should be empty, got %q", v)
	}
}

func TestRowColIndex(t *testing.T) {
	g := sampleGrid("18/02/2025")
	rows := RowIndex(g)
	if rows["17.02"] != 2 {
		t.Errorf("RowIndex[17.02] = %d, want 2", rows["17.02"])
	}
	if rows["18.02"] != 3 {
		t.Errorf("RowIndex[18.02] = %d, want 3 (slash-separated date)", rows["18.02"])
	}
	cols := ColIndex(g)
	if cols["Alice"] != 1 || cols["Dave"] != 4 {
		t.Errorf("ColIndex = %v", cols)
	}
}

func TestColumnLetter(t *testing.T) {
	for _, c := range []struct {
		idx  int
		want string
	}{{0, "A"}, {1, "B"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"}} {
		if got := ColumnLetter(c.idx); got != c.want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", c.idx, got, c.want)
		}
	}
	if got := CellRef(3, 2); got != "C4" {
		t.Errorf("CellRef(3,2) = %q, want C4", got)
	}
}

func TestNewMonthTemplate(t *testing.T) {
	g, err := NewMonthTemplate("February", []string{"Alice", "Bob"}, "02", 2028)
	if err != nil {
		t.Fatalf("NewMonthTemplate: %v", err)
	}
	if len(g) != DataStart+29 {
		t.Fatalf("template rows = %d, want %d", len(g), DataStart+29)
	}
	if g[TitleRow][1] != "February" {
		t.Errorf("title row = %v", g[TitleRow])
	}
	if g[HeaderRow][1] != "Alice" || g[HeaderRow][2] != "Bob" {
		t.Errorf("header row = %v", g[HeaderRow])
	}
	if g[DataStart][0] != "01.02.2028" {
		t.Errorf("first date row = %v", g[DataStart])
	}
	if g[len(g)-1][0] != "29.02.2028" {
		t.Errorf("last date row = %v", g[len(g)-1])
	}
}
