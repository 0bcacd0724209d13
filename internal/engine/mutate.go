package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
	"github.com/Monsieur0x/suppvoicebot/internal/history"
	"github.com/Monsieur0x/suppvoicebot/internal/intent"
	"github.com/Monsieur0x/suppvoicebot/internal/pending"
	"github.com/Monsieur0x/suppvoicebot/internal/planner"
	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
	"github.com/Monsieur0x/suppvoicebot/internal/sheets"
)

func (e *Engine) handleUpdate(ctx context.Context, user int64, cmd intent.Command) Response {
	upd, err := e.planner.PlanSingle(cmd.Name, cmd.Date, cmd.Time, false)
	if err != nil {
		return Response{Text: fmt.Sprintf("I cannot apply that: %v. Use \"HH:MM - HH:MM\" or \"%s\".", err, schedule.DayOff)}
	}

	day, month, err := schedule.ParseDayMonth(upd.Date)
	if err != nil {
		return Response{Text: fmt.Sprintf("I could not read the date %q, expected DD.MM.", upd.Date)}
	}

	ws, g, err := e.gateway.OpenAndRead(ctx, month)
	if err != nil {
		return e.gatewayFailure(month, err)
	}
	row, col, err := grid.Locate(g, day, month, upd.Name, e.year())
	if err != nil {
		return e.locateFailure(upd.Name, upd.Date, month, err)
	}
	old := g.Cell(row, col)

	key := history.Key(upd.Name, upd.Date)
	if err := e.ledger.Record(key, old, upd.Value); err != nil {
		e.log.Warn("failed to persist history", zap.String("key", key), zap.Error(err))
	}
	if err := e.gateway.WriteCell(ctx, ws, month, row, col, upd.Value); err != nil {
		e.log.Error("cell write failed", zap.String("key", key), zap.Error(err))
		return Response{Text: "The schedule could not be updated, please try again."}
	}
	e.audit(uuid.NewString(), user, []schedule.Update{upd}, map[string]string{key: old})

	e.log.Info("cell updated",
		zap.Int64("user", user),
		zap.String("key", key),
		zap.String("old", old),
		zap.String("new", upd.Value))
	return Response{Text: fmt.Sprintf("Updated %s on %s: %q -> %q.", upd.Name, upd.Date, old, upd.Value)}
}

func (e *Engine) handleUndo(ctx context.Context, user int64, cmd intent.Command) Response {
	name := strings.TrimSpace(cmd.Name)
	date := strings.TrimSpace(cmd.Date)
	if name == "" || date == "" {
		return Response{Text: "Tell me whose change to undo and for which date, e.g. \"undo Alice for 18.02\"."}
	}

	day, month, err := schedule.ParseDayMonth(date)
	if err != nil {
		return Response{Text: fmt.Sprintf("I could not read the date %q, expected DD.MM.", date)}
	}

	ws, g, err := e.gateway.OpenAndRead(ctx, month)
	if err != nil {
		return e.gatewayFailure(month, err)
	}
	row, col, err := grid.Locate(g, day, month, name, e.year())
	if err != nil {
		return e.locateFailure(name, date, month, err)
	}
	current := g.Cell(row, col)

	key := history.Key(name, date)
	previous, err := e.ledger.Peek(key)
	if err != nil {
		if errors.Is(err, history.ErrNoHistory) {
			return Response{Text: fmt.Sprintf("I have no recorded change for %s on %s.", name, date)}
		}
		return Response{Text: "Undo failed, please try again."}
	}

	// The restored value is written verbatim, blanks included. The
	// history entry is consumed only after the write lands, so a failed
	// write leaves the undo available for another attempt.
	if err := e.gateway.WriteCell(ctx, ws, month, row, col, previous); err != nil {
		e.log.Error("undo write failed", zap.String("key", key), zap.Error(err))
		return Response{Text: "The schedule could not be updated, please try again."}
	}
	if _, err := e.ledger.Undo(key); err != nil {
		e.log.Warn("failed to consume history entry", zap.String("key", key), zap.Error(err))
	}
	e.audit(uuid.NewString(), user,
		[]schedule.Update{{Name: name, Date: date, Value: previous}},
		map[string]string{key: current})

	e.log.Info("cell restored",
		zap.Int64("user", user),
		zap.String("key", key),
		zap.String("restored", previous))
	return Response{Text: fmt.Sprintf("Restored %s on %s back to %q.", name, date, previous)}
}

func (e *Engine) handleUpdateMany(ctx context.Context, user int64, cmd intent.Command) Response {
	if len(cmd.Updates) == 0 {
		return Response{Text: "I did not find any changes in that request."}
	}

	batch := e.planner.PlanBatch(cmd.Updates)
	if batch.Valid == 0 {
		return Response{Text: "None of the changes were valid:\n" + formatItemErrors(batch.Errors)}
	}

	var valid []schedule.Update
	for _, month := range batch.Months {
		valid = append(valid, batch.ByMonth[month]...)
	}

	if batch.Valid > e.threshold {
		e.pending.Put(user, pending.Action{Kind: pending.KindBatch, Batch: valid})
		text := fmt.Sprintf("This will change %d cells:\n", batch.Valid)
		for _, u := range valid {
			text += "- " + describeItem(u) + "\n"
		}
		if len(batch.Errors) > 0 {
			text += "Skipped as invalid:\n" + formatItemErrors(batch.Errors) + "\n"
		}
		text += "Apply? Reply yes or no."
		return Response{Text: text}
	}

	resp := e.applyBatch(ctx, user, valid, false)
	if len(batch.Errors) > 0 {
		resp.Text += "\nSkipped as invalid:\n" + formatItemErrors(batch.Errors)
	}
	return resp
}

// applyBatch writes a group of updates month by month. Failing items
// are reported and skipped; the rest still apply. When undo is false
// the reverse batch is remembered for undo_batch.
func (e *Engine) applyBatch(ctx context.Context, user int64, items []schedule.Update, undo bool) Response {
	months, byMonth := groupByMonth(items)
	batchID := uuid.NewString()

	var applied []schedule.Update
	var failures []string
	oldValues := make(map[string]string)

	for _, month := range months {
		ws, g, err := e.gateway.OpenAndRead(ctx, month)
		if err != nil {
			for _, item := range byMonth[month] {
				failures = append(failures, describeItem(item)+": month sheet unavailable")
			}
			continue
		}

		var ranges []sheets.RangeUpdate
		var monthApplied []schedule.Update
		for _, item := range byMonth[month] {
			day, _, err := schedule.ParseDayMonth(item.Date)
			if err != nil {
				failures = append(failures, describeItem(item)+": bad date")
				continue
			}
			row, col, err := grid.Locate(g, day, month, item.Name, e.year())
			if err != nil {
				failures = append(failures, describeItem(item)+": "+err.Error())
				continue
			}
			old := g.Cell(row, col)
			key := history.Key(item.Name, item.Date)
			if !undo {
				if err := e.ledger.Record(key, old, item.Value); err != nil {
					e.log.Warn("failed to persist history", zap.String("key", key), zap.Error(err))
				}
			}
			ranges = append(ranges, sheets.RangeUpdate{Range: grid.CellRef(row, col), Value: item.Value})
			monthApplied = append(monthApplied, item)
			oldValues[key] = old
		}
		if len(ranges) == 0 {
			continue
		}
		if err := e.gateway.WriteBatch(ctx, ws, month, ranges); err != nil {
			e.log.Error("batch write failed", zap.String("month", month), zap.Error(err))
			for _, item := range monthApplied {
				failures = append(failures, describeItem(item)+": write failed")
			}
			continue
		}
		applied = append(applied, monthApplied...)
	}

	if len(applied) > 0 {
		if !undo {
			e.lastBatch.Set(user, reversalsFor(applied, oldValues))
		}
		e.audit(batchID, user, applied, oldValues)
	}

	e.log.Info("batch applied",
		zap.Int64("user", user),
		zap.String("batch_id", batchID),
		zap.Bool("undo", undo),
		zap.Int("applied", len(applied)),
		zap.Int("failed", len(failures)))

	verb := "Applied"
	if undo {
		verb = "Reverted"
	}
	text := fmt.Sprintf("%s %d of %d changes.", verb, len(applied), len(items))
	if len(failures) > 0 {
		text += "\nFailed:\n" + formatFailures(failures)
	}
	return Response{Text: text}
}

func (e *Engine) handleUndoBatch(ctx context.Context, user int64) Response {
	items, ok := e.lastBatch.Take(user)
	if !ok {
		return Response{Text: "There is no recent bulk update to revert."}
	}
	return e.applyBatch(ctx, user, items, true)
}

func (e *Engine) handleFill(ctx context.Context, user int64, cmd intent.Command) Response {
	month := cmd.Month
	year := cmd.Year
	if year == 0 {
		year = e.year()
	}

	exists := true
	if _, err := e.gateway.OpenMonth(ctx, month); err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) {
			exists = false
		} else {
			return e.gatewayFailure(month, err)
		}
	}

	plan, err := e.planner.PlanFill(month, year, exists)
	if err != nil {
		return Response{Text: fmt.Sprintf("I cannot fill that month: %v.", err)}
	}

	e.pending.Put(user, pending.Action{Kind: pending.KindFill, Fill: plan})

	text := fmt.Sprintf("Fill %s %d by the rotation: %d cells for %d employees.",
		e.monthName(month), year, len(plan.Items), len(e.Roster().Employees))
	if plan.CreateSheet {
		text += " The month sheet does not exist yet and will be created."
	}
	text += " Proceed? Reply yes or no."
	return Response{Text: text}
}

// FillMonth plans and applies a rotation fill without the conversational
// confirmation gate. The fill subcommand uses it; interactive fills stay
// behind the yes/no prompt.
func (e *Engine) FillMonth(ctx context.Context, month string, year int) Response {
	if year == 0 {
		year = e.year()
	}

	exists := true
	if _, err := e.gateway.OpenMonth(ctx, month); err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) {
			exists = false
		} else {
			return e.gatewayFailure(month, err)
		}
	}

	plan, err := e.planner.PlanFill(month, year, exists)
	if err != nil {
		return Response{Text: fmt.Sprintf("I cannot fill that month: %v.", err)}
	}
	return e.executeFill(ctx, 0, plan)
}

// executeFill applies a confirmed fill plan.
func (e *Engine) executeFill(ctx context.Context, user int64, plan planner.FillPlan) Response {
	var ws sheets.Worksheet
	var g grid.MonthGrid
	var err error
	if plan.CreateSheet {
		ws, err = e.gateway.CreateMonth(ctx, plan.Month, plan.Year, e.Roster().Names())
		if err == nil {
			g, err = e.gateway.ReadMonthFresh(ctx, plan.Month)
		}
	} else {
		ws, g, err = e.gateway.OpenAndRead(ctx, plan.Month)
	}
	if err != nil {
		return e.gatewayFailure(plan.Month, err)
	}
	rows := grid.RowIndex(g)
	cols := grid.ColIndex(g)

	var ranges []sheets.RangeUpdate
	var applied []schedule.Update
	skipped := 0
	for _, item := range plan.Items {
		row, okRow := rows[item.Date]
		col, okCol := cols[item.Name]
		if !okRow || !okCol {
			skipped++
			continue
		}
		ranges = append(ranges, sheets.RangeUpdate{Range: grid.CellRef(row, col), Value: item.Value})
		applied = append(applied, item)
	}
	if len(ranges) == 0 {
		return Response{Text: "The month sheet has no matching rows or columns to fill."}
	}
	if err := e.gateway.WriteBatch(ctx, ws, plan.Month, ranges); err != nil {
		e.log.Error("fill write failed", zap.String("month", plan.Month), zap.Error(err))
		return Response{Text: "The schedule could not be filled, please try again."}
	}
	e.audit(uuid.NewString(), user, applied, nil)

	e.log.Info("month filled",
		zap.Int64("user", user),
		zap.String("month", plan.Month),
		zap.Int("year", plan.Year),
		zap.Int("cells", len(applied)),
		zap.Int("skipped", skipped))

	text := fmt.Sprintf("Filled %s %d: %d cells written.", e.monthName(plan.Month), plan.Year, len(applied))
	if skipped > 0 {
		text += fmt.Sprintf(" Skipped %d cells without a matching row or column.", skipped)
	}
	return Response{Text: text}
}

func (e *Engine) audit(batchID string, user int64, applied []schedule.Update, old map[string]string) {
	if e.store == nil {
		return
	}
	if old == nil {
		old = map[string]string{}
	}
	if err := e.store.RecordMutations(batchID, user, applied, old); err != nil {
		e.log.Warn("failed to persist audit trail",
			zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (e *Engine) gatewayFailure(month string, err error) Response {
	if errors.Is(err, sheets.ErrSheetNotFound) {
		return Response{Text: fmt.Sprintf("There is no sheet for %s yet. Ask me to fill that month to create it.", e.monthName(month))}
	}
	e.log.Error("spreadsheet access failed", zap.String("month", month), zap.Error(err))
	return Response{Text: "I could not reach the schedule, please try again in a moment."}
}

func (e *Engine) locateFailure(name, date, month string, err error) Response {
	switch {
	case errors.Is(err, grid.ErrDateNotFound):
		return Response{Text: fmt.Sprintf("I could not find %s on the %s sheet.", date, e.monthName(month))}
	case errors.Is(err, grid.ErrNameNotFound):
		return Response{Text: fmt.Sprintf("I could not find %s on the %s sheet.", name, e.monthName(month))}
	default:
		return Response{Text: "I could not locate that cell, please check the name and date."}
	}
}

// groupByMonth splits updates by month, preserving first-seen order.
// Items with unparseable dates are dropped; validation upstream
// already reported them.
func groupByMonth(items []schedule.Update) ([]string, map[string][]schedule.Update) {
	byMonth := make(map[string][]schedule.Update)
	var months []string
	for _, item := range items {
		_, month, err := schedule.ParseDayMonth(item.Date)
		if err != nil {
			continue
		}
		if _, seen := byMonth[month]; !seen {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], item)
	}
	return months, byMonth
}

// reversalsFor builds the undo batch for the applied items.
func reversalsFor(applied []schedule.Update, old map[string]string) []schedule.Update {
	out := make([]schedule.Update, 0, len(applied))
	for _, item := range applied {
		out = append(out, schedule.Update{
			Name:  item.Name,
			Date:  item.Date,
			Value: old[history.Key(item.Name, item.Date)],
		})
	}
	return out
}

func formatItemErrors(errs []planner.ItemError) string {
	var lines []string
	for i, ie := range errs {
		if i == errReportLimit {
			lines = append(lines, fmt.Sprintf("... and %d more", len(errs)-errReportLimit))
			break
		}
		lines = append(lines, "- "+describeItem(ie.Item)+": "+ie.Reason)
	}
	return strings.Join(lines, "\n")
}

func formatFailures(failures []string) string {
	var lines []string
	for i, f := range failures {
		if i == errReportLimit {
			lines = append(lines, fmt.Sprintf("... and %d more", len(failures)-errReportLimit))
			break
		}
		lines = append(lines, "- "+f)
	}
	return strings.Join(lines, "\n")
}
