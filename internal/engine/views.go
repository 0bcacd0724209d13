package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
	"github.com/Monsieur0x/suppvoicebot/internal/history"
	"github.com/Monsieur0x/suppvoicebot/internal/intent"
	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

const (
	maxPeriodDays  = 31
	historyDisplay = 15
)

func (e *Engine) handleShowPeriod(ctx context.Context, cmd intent.Command) Response {
	from, to, resp := e.parsePeriod(cmd)
	if resp != nil {
		return *resp
	}

	roster := e.Roster()
	names := roster.Names()

	table := &Table{
		Title:   fmt.Sprintf("Schedule %s - %s", from.Format("02.01"), to.Format("02.01")),
		Headers: append([]string{"Date"}, names...),
	}

	// A period may straddle a month whose sheet does not exist yet.
	// Such months are skipped and the rest of the range still renders.
	grids := make(map[string]grid.MonthGrid)
	failed := make(map[string]error)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		month := fmt.Sprintf("%02d", int(d.Month()))
		if _, bad := failed[month]; bad {
			continue
		}
		g, ok := grids[month]
		if !ok {
			var err error
			g, err = e.gateway.ReadMonth(ctx, month)
			if err != nil {
				e.log.Warn("month unavailable for period view",
					zap.String("month", month), zap.Error(err))
				failed[month] = err
				continue
			}
			grids[month] = g
		}

		row := make([]string, 0, len(names)+1)
		row = append(row, fmt.Sprintf("%s %s", d.Format("02.01"), d.Format("Mon")))
		rowIdx, found := grid.FindDateRow(g, d.Day(), month, e.year())
		if len(g) <= grid.HeaderRow {
			found = false
		}
		for _, name := range names {
			cell := "-"
			if found {
				if col, ok := grid.FindNameCol(g[grid.HeaderRow], name); ok {
					if v := g.Cell(rowIdx, col); v != "" {
						cell = v
					}
				}
			}
			row = append(row, cell)
		}
		table.Rows = append(table.Rows, row)
	}
	if len(table.Rows) == 0 {
		for month, err := range failed {
			return e.gatewayFailure(month, err)
		}
		return Response{Text: "I found no schedule rows for that period."}
	}
	return Response{Table: table}
}

func (e *Engine) handleShowWorkers(ctx context.Context, cmd intent.Command) Response {
	date := cmd.Date
	if date == "" {
		date = cmd.DateFrom
	}
	day, month, err := schedule.ParseDayMonth(date)
	if err != nil {
		return Response{Text: "Which day? Give me a date like 18.02."}
	}

	g, err := e.gateway.ReadMonth(ctx, month)
	if err != nil {
		return e.gatewayFailure(month, err)
	}
	rowIdx, found := grid.FindDateRow(g, day, month, e.year())
	if !found || len(g) <= grid.HeaderRow {
		return Response{Text: fmt.Sprintf("I could not find %s on the %s sheet.", date, e.monthName(month))}
	}

	var working, off, unknown []string
	for _, name := range e.Roster().Names() {
		col, ok := grid.FindNameCol(g[grid.HeaderRow], name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		switch v := g.Cell(rowIdx, col); v {
		case "":
			unknown = append(unknown, name)
		case schedule.DayOff:
			off = append(off, name)
		default:
			working = append(working, fmt.Sprintf("%s (%s)", name, v))
		}
	}

	text := fmt.Sprintf("On %s:\n", date)
	if len(working) == 0 {
		text += "Nobody is scheduled to work.\n"
	} else {
		text += "Working:\n"
		for _, w := range working {
			text += "- " + w + "\n"
		}
	}
	if len(off) > 0 {
		text += "Day off:\n"
		for _, o := range off {
			text += "- " + o + "\n"
		}
	}
	if len(unknown) > 0 {
		text += "No entry:\n"
		for _, u := range unknown {
			text += "- " + u + "\n"
		}
	}
	return Response{Text: text}
}

func (e *Engine) handleShowHistory() Response {
	records := e.ledger.Recent(historyDisplay)
	if len(records) == 0 {
		return Response{Text: "No changes have been made through me yet."}
	}
	return Response{Table: historyTable("Recent changes", records)}
}

func (e *Engine) handleShowChanges(cmd intent.Command) Response {
	from, to, resp := e.parsePeriod(cmd)
	if resp != nil {
		return *resp
	}

	records := e.ledger.InRange(from, to, e.year())
	if len(records) == 0 {
		return Response{Text: fmt.Sprintf("No changes between %s and %s.", from.Format("02.01"), to.Format("02.01"))}
	}
	title := fmt.Sprintf("Changes %s - %s", from.Format("02.01"), to.Format("02.01"))
	return Response{Table: historyTable(title, records)}
}

func (e *Engine) handleCheckChanges(ctx context.Context) Response {
	changes, baseline, err := e.differ.Capture(ctx)
	if err != nil {
		e.log.Error("snapshot capture failed", zap.Error(err))
		return Response{Text: "I could not check the sheet right now, please try again."}
	}
	// Cells may have moved under the cache.
	e.gateway.InvalidateAll()

	if baseline {
		return Response{Text: "I took a first snapshot of the schedule. Ask me again later and I will report what changed."}
	}
	if len(changes) == 0 {
		return Response{Text: "No external edits since the last check."}
	}

	table := &Table{
		Title:   "Edits made directly in the sheet",
		Headers: []string{"Employee", "Date", "Was", "Now"},
	}
	for _, c := range changes {
		table.Rows = append(table.Rows, []string{c.Name, c.Date, c.Old, c.New})
	}
	return Response{Table: table}
}

// DailySchedule renders who works on the given day, for the daily
// announcement.
func (e *Engine) DailySchedule(ctx context.Context, day time.Time) Response {
	return e.handleShowWorkers(ctx, intent.Command{Date: day.Format("02.01")})
}

// CheckChanges captures a fresh snapshot and reports external edits.
// Used by the snapshot subcommand, which has no chat loop around it.
func (e *Engine) CheckChanges(ctx context.Context) Response {
	return e.handleCheckChanges(ctx)
}

// parsePeriod resolves the command's date range. The error response is
// non-nil when the range is unusable.
func (e *Engine) parsePeriod(cmd intent.Command) (from, to time.Time, errResp *Response) {
	year := cmd.Year
	if year == 0 {
		year = e.year()
	}
	if cmd.DateFrom == "" {
		return from, to, &Response{Text: "Which period? Give me dates like 11.02 - 18.02."}
	}
	from, err := schedule.ResolveDate(cmd.DateFrom, year)
	if err != nil {
		return from, to, &Response{Text: fmt.Sprintf("I could not read the date %q, expected DD.MM.", cmd.DateFrom)}
	}
	if cmd.DateTo == "" {
		return from, from, nil
	}
	to, err = schedule.ResolveDate(cmd.DateTo, year)
	if err != nil {
		return from, to, &Response{Text: fmt.Sprintf("I could not read the date %q, expected DD.MM.", cmd.DateTo)}
	}
	if to.Before(from) {
		from, to = to, from
	}
	if to.Sub(from) > maxPeriodDays*24*time.Hour {
		return from, to, &Response{Text: fmt.Sprintf("That period is too long, I can show up to %d days at once.", maxPeriodDays)}
	}
	return from, to, nil
}

func historyTable(title string, records []history.Record) *Table {
	table := &Table{
		Title:   title,
		Headers: []string{"Employee", "Date", "Was", "Now", "When"},
	}
	for _, r := range records {
		name, date := history.SplitKey(r.Key)
		table.Rows = append(table.Rows, []string{
			name, date, r.Entry.Old, r.Entry.New,
			r.Entry.ChangedAt.Format("02.01 15:04"),
		})
	}
	return table
}
