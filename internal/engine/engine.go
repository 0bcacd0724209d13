// Package engine routes classified commands to schedule operations and
// shapes the replies. All user-facing behavior converges here.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/history"
	"github.com/Monsieur0x/suppvoicebot/internal/intent"
	"github.com/Monsieur0x/suppvoicebot/internal/pending"
	"github.com/Monsieur0x/suppvoicebot/internal/planner"
	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
	"github.com/Monsieur0x/suppvoicebot/internal/sheets"
	"github.com/Monsieur0x/suppvoicebot/internal/snapshot"
	"github.com/Monsieur0x/suppvoicebot/internal/speech"
	"github.com/Monsieur0x/suppvoicebot/internal/store"
)

const (
	msgUnrecognizedVoice = "Sorry, I could not recognize the voice message. Please try again or type it out."
	msgUnknown           = "I did not understand that. You can change shifts, show the schedule, fill a month, or undo a change."
	msgLLMBusy           = "The assistant is overloaded right now, please try again in a minute."
	msgLLMDown           = "The assistant is unavailable right now, please try again later."
	errReportLimit       = 5
)

// Params wires an Engine.
type Params struct {
	Gateway     *sheets.Gateway
	Ledger      *history.Ledger
	Differ      *snapshot.Differ
	Pending     *pending.Store
	Classifier  *intent.Classifier
	Transcriber speech.Transcriber
	Store       *store.Store
	Roster      *schedule.Roster
	MonthNames  map[string]string

	// Batches larger than this require confirmation.
	ConfirmThreshold int

	Log *zap.Logger
}

// Engine executes schedule commands. In-memory state (cache, pending
// actions, history, last batch) is guarded by each structure's own
// lock; no lock is ever held across spreadsheet I/O. Two users writing
// the same month concurrently is a tolerated race.
type Engine struct {
	rosterMu sync.RWMutex

	gateway     *sheets.Gateway
	ledger      *history.Ledger
	differ      *snapshot.Differ
	pending     *pending.Store
	classifier  *intent.Classifier
	transcriber speech.Transcriber
	store       *store.Store
	planner     *planner.Planner
	lastBatch   *history.LastBatch
	monthNames  map[string]string
	threshold   int
	log         *zap.Logger
	now         func() time.Time

	roster *schedule.Roster
}

// New creates an Engine.
func New(p Params) *Engine {
	e := &Engine{
		gateway:     p.Gateway,
		ledger:      p.Ledger,
		differ:      p.Differ,
		pending:     p.Pending,
		classifier:  p.Classifier,
		transcriber: p.Transcriber,
		store:       p.Store,
		lastBatch:   history.NewLastBatch(),
		monthNames:  p.MonthNames,
		threshold:   p.ConfirmThreshold,
		log:         p.Log,
		now:         time.Now,
		roster:      p.Roster,
	}
	e.planner = planner.New(e.Roster)
	return e
}

// SetClock overrides the clock, for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Roster returns the current roster. Safe to call concurrently with
// SetRoster.
func (e *Engine) Roster() *schedule.Roster {
	e.rosterMu.RLock()
	defer e.rosterMu.RUnlock()
	return e.roster
}

// SetRoster swaps the roster, typically from the file watcher.
func (e *Engine) SetRoster(r *schedule.Roster) {
	e.rosterMu.Lock()
	defer e.rosterMu.Unlock()
	e.roster = r
}

// HandleVoice transcribes a voice message and processes the text.
func (e *Engine) HandleVoice(ctx context.Context, user int64, audio []byte, filename string) Response {
	text, err := e.transcriber.Transcribe(ctx, audio, filename)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			e.log.Warn("transcription failed", zap.Int64("user", user), zap.Error(err))
		}
		return Response{Text: msgUnrecognizedVoice}
	}
	e.log.Info("voice transcribed", zap.Int64("user", user), zap.Int("text_len", len(text)))
	return e.HandleText(ctx, user, text)
}

// HandleText processes one utterance end to end.
func (e *Engine) HandleText(ctx context.Context, user int64, text string) Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{Text: msgUnknown}
	}

	// Pending confirmations intercept the reply before any
	// classification. Unrelated text falls through.
	if resp, handled := e.resolvePending(ctx, user, text); handled {
		return resp
	}

	if e.store != nil {
		if err := e.store.AppendContext(user, text); err != nil {
			e.log.Warn("failed to persist context", zap.Int64("user", user), zap.Error(err))
		}
	}

	cmd, err := e.classifier.Classify(ctx, user, text)
	if err != nil {
		e.log.Error("classification failed", zap.Int64("user", user), zap.Error(err))
		switch {
		case errors.Is(err, intent.ErrRateLimited):
			return Response{Text: msgLLMBusy}
		default:
			return Response{Text: msgLLMDown}
		}
	}
	e.log.Info("command classified",
		zap.Int64("user", user),
		zap.String("action", cmd.Action))

	return e.dispatch(ctx, user, text, cmd)
}

func (e *Engine) dispatch(ctx context.Context, user int64, text string, cmd intent.Command) Response {
	switch cmd.Action {
	case intent.ActionUpdate:
		return e.handleUpdate(ctx, user, cmd)
	case intent.ActionUpdateMany:
		return e.handleUpdateMany(ctx, user, cmd)
	case intent.ActionUndo:
		return e.handleUndo(ctx, user, cmd)
	case intent.ActionUndoBatch:
		return e.handleUndoBatch(ctx, user)
	case intent.ActionFillSchedule:
		return e.handleFill(ctx, user, cmd)
	case intent.ActionShowPeriod:
		return e.handleShowPeriod(ctx, cmd)
	case intent.ActionShowWorkers:
		return e.handleShowWorkers(ctx, cmd)
	case intent.ActionShowHistory:
		return e.handleShowHistory()
	case intent.ActionShowChanges:
		return e.handleShowChanges(cmd)
	case intent.ActionCheckChanges:
		return e.handleCheckChanges(ctx)
	case intent.ActionCheer, intent.ActionChat, intent.ActionUnknown:
		// Unclassifiable requests still get a conversational reply
		// instead of canned help text.
		return e.handleFreeText(ctx, cmd, text)
	default:
		return Response{Text: msgUnknown}
	}
}

// resolvePending routes yes/no replies to the user's pending action.
func (e *Engine) resolvePending(ctx context.Context, user int64, text string) (Response, bool) {
	action, decision := e.pending.Resolve(user, text)
	switch decision {
	case pending.DecisionNone:
		return Response{}, false
	case pending.DecisionCancelled:
		return Response{Text: "Cancelled, nothing was changed."}, true
	case pending.DecisionExpired:
		return Response{Text: "The confirmation window expired, please repeat the request."}, true
	case pending.DecisionConfirmed:
		switch action.Kind {
		case pending.KindFill:
			return e.executeFill(ctx, user, action.Fill), true
		case pending.KindBatch:
			return e.applyBatch(ctx, user, action.Batch, false), true
		}
	}
	return Response{Text: msgUnknown}, true
}

func (e *Engine) handleFreeText(ctx context.Context, cmd intent.Command, text string) Response {
	kind := ""
	userText := text
	if cmd.Action == intent.ActionCheer {
		kind = cmd.Type
		if kind == "" {
			kind = "encouragement"
		}
		userText = ""
	}
	reply, err := e.classifier.FreeText(ctx, kind, userText)
	if err != nil {
		e.log.Warn("free text generation failed", zap.Error(err))
		return Response{Text: msgLLMDown}
	}
	return Response{Text: reply}
}

// monthName returns the display name for "MM".
func (e *Engine) monthName(month string) string {
	if name, ok := e.monthNames[month]; ok {
		return name
	}
	return month
}

func (e *Engine) year() int {
	return e.now().Year()
}

func describeItem(u schedule.Update) string {
	return fmt.Sprintf("%s on %s -> %s", u.Name, u.Date, u.Value)
}
