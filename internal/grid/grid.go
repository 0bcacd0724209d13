// Package grid locates schedule cells inside a loosely formatted month
// sheet. Row 0 is a title, row 1 holds employee names, and every later
// row starts with a date cell whose exact format has drifted over the
// sheet's lifetime, so dates are matched by substring containment
// against several renderings rather than parsed strictly.
package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// MonthGrid is one month sheet as raw cell text.
type MonthGrid [][]string

// Well-known row positions.
const (
	TitleRow  = 0
	HeaderRow = 1
	DataStart = 2
)

var (
	ErrDateNotFound = errors.New("date not found in sheet")
	ErrNameNotFound = errors.New("employee name not found in sheet header")
)

// DateTargets returns the four accepted textual renderings of a calendar
// date, any of which may appear in the sheet's date column.
func DateTargets(day int, month string, year int) []string {
	d := fmt.Sprintf("%02d", day)
	return []string{
		fmt.Sprintf("%s.%s.%d", d, month, year),
		fmt.Sprintf("%s.%s", d, month),
		fmt.Sprintf("%d-%s-%s", year, month, d),
		fmt.Sprintf("%s/%s/%d", d, month, year),
	}
}

// FindDateRow scans the first column for a cell containing any rendering
// of the date. First match wins.
func FindDateRow(g MonthGrid, day int, month string, year int) (int, bool) {
	targets := DateTargets(day, month, year)
	for i, row := range g {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if cell == "" {
			continue
		}
		for _, t := range targets {
			if strings.Contains(cell, t) {
				return i, true
			}
		}
	}
	return 0, false
}

// FindNameCol finds the employee's column in the header row by exact
// match after trimming. Names are never fuzzy-matched.
func FindNameCol(header []string, name string) (int, bool) {
	for j, cell := range header {
		if strings.TrimSpace(cell) == name {
			return j, true
		}
	}
	return 0, false
}

// Locate resolves (employee, date) to a cell coordinate. The returned
// errors name exactly what was missing so callers can surface it.
func Locate(g MonthGrid, day int, month string, name string, year int) (row, col int, err error) {
	row, ok := FindDateRow(g, day, month, year)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrDateNotFound, fmt.Sprintf("%02d.%s.%d", day, month, year))
	}
	if len(g) <= HeaderRow {
		return 0, 0, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	col, ok = FindNameCol(g[HeaderRow], name)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	return row, col, nil
}

// Cell returns the trimmed cell text, tolerating ragged rows.
func (g MonthGrid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// RowIndex builds a "DD.MM" -> row index map from the date column, for
// bulk lookups during a month fill.
func RowIndex(g MonthGrid) map[string]int {
	rows := make(map[string]int)
	for i, row := range g {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if cell == "" {
			continue
		}
		parts := strings.Split(strings.ReplaceAll(cell, "/", "."), ".")
		if len(parts) < 2 {
			continue
		}
		day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		key := fmt.Sprintf("%02d.%02d", day, m)
		if _, seen := rows[key]; !seen {
			rows[key] = i
		}
	}
	return rows
}

// ColIndex builds a name -> column index map from the header row.
func ColIndex(g MonthGrid) map[string]int {
	cols := make(map[string]int)
	if len(g) <= HeaderRow {
		return cols
	}
	for j, cell := range g[HeaderRow] {
		name := strings.TrimSpace(cell)
		if name != "" {
			if _, seen := cols[name]; !seen {
				cols[name] = j
			}
		}
	}
	return cols
}

// ColumnLetter converts a zero-based column index to its A1 letter form.
func ColumnLetter(idx int) string {
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}

// CellRef renders a zero-based (row, col) coordinate as an A1 reference.
func CellRef(row, col int) string {
	return fmt.Sprintf("%s%d", ColumnLetter(col), row+1)
}

// NewMonthTemplate builds a fresh month grid: title row, header row with
// the roster names, and one pre-labeled "DD.MM.YYYY" row per calendar
// day.
func NewMonthTemplate(title string, names []string, month string, year int) (MonthGrid, error) {
	days, err := schedule.DaysIn(month, year)
	if err != nil {
		return nil, err
	}
	g := make(MonthGrid, 0, DataStart+days)
	g = append(g, []string{"", title})
	g = append(g, append([]string{""}, names...))
	for day := 1; day <= days; day++ {
		g = append(g, []string{fmt.Sprintf("%02d.%s.%d", day, month, year)})
	}
	return g, nil
}
