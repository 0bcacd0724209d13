package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// Command is the structured result of classifying one utterance.
type Command struct {
	Action   string            `json:"action"`
	Name     string            `json:"name,omitempty"`
	Date     string            `json:"date,omitempty"`
	Time     string            `json:"time,omitempty"`
	DateFrom string            `json:"date_from,omitempty"`
	DateTo   string            `json:"date_to,omitempty"`
	Month    string            `json:"month,omitempty"`
	Year     int               `json:"year,omitempty"`
	Updates  []schedule.Update `json:"updates,omitempty"`
	Type     string            `json:"type,omitempty"`
}

// The closed action set. Anything else the model emits degrades to
// ActionChat, never to an error shown to the user.
const (
	ActionUpdate       = "update"
	ActionUpdateMany   = "update_many"
	ActionShowPeriod   = "show_period"
	ActionShowHistory  = "show_history"
	ActionShowChanges  = "show_changes_period"
	ActionShowWorkers  = "show_workers"
	ActionCheckChanges = "check_changes"
	ActionFillSchedule = "fill_schedule"
	ActionUndo         = "undo"
	ActionUndoBatch    = "undo_batch"
	ActionCheer        = "cheer"
	ActionChat         = "chat"
	ActionUnknown      = "unknown"
)

var validActions = map[string]bool{
	ActionUpdate: true, ActionUpdateMany: true, ActionShowPeriod: true,
	ActionShowHistory: true, ActionShowChanges: true, ActionShowWorkers: true,
	ActionCheckChanges: true, ActionFillSchedule: true, ActionUndo: true,
	ActionUndoBatch: true, ActionCheer: true, ActionChat: true, ActionUnknown: true,
}

// ContextProvider supplies a user's recent utterances for grounding
// follow-up phrasing ("same for tomorrow").
type ContextProvider interface {
	RecentContext(user int64, n int) ([]string, error)
}

// RosterFunc supplies the current roster for prompt construction.
type RosterFunc func() *schedule.Roster

// Classifier turns utterances into Commands via the LLM collaborator.
type Classifier struct {
	client LLMClient
	ctxs   ContextProvider
	roster RosterFunc
	now    func() time.Time
	log    *zap.Logger
}

// NewClassifier wires a classifier.
func NewClassifier(client LLMClient, ctxs ContextProvider, roster RosterFunc, log *zap.Logger) *Classifier {
	return &Classifier{
		client: client,
		ctxs:   ctxs,
		roster: roster,
		now:    time.Now,
		log:    log,
	}
}

// SetClock overrides the clock, for tests.
func (c *Classifier) SetClock(now func() time.Time) { c.now = now }

var fencePattern = regexp.MustCompile("```json|```")

// Classify resolves one utterance. Malformed or out-of-set model output
// degrades to a chat command; provider failures surface as errors for
// the engine to translate.
func (c *Classifier) Classify(ctx context.Context, user int64, text string) (Command, error) {
	today := c.now()
	var sb strings.Builder
	if c.ctxs != nil {
		recent, err := c.ctxs.RecentContext(user, 3)
		if err != nil {
			c.log.Warn("failed to load user context", zap.Int64("user", user), zap.Error(err))
		} else if len(recent) > 0 {
			sb.WriteString("Recent messages from this user, oldest first:\n")
			for _, prev := range recent {
				sb.WriteString("- " + prev + "\n")
			}
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "Today is %s (%s). Request: %s",
		today.Format("02.01.2006"), today.Format("Mon"), text)

	raw, err := c.client.CompleteWithSystem(ctx, c.systemPrompt(today), sb.String())
	if err != nil {
		return Command{}, err
	}

	raw = strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
	var cmd Command
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		c.log.Warn("model returned unparseable command, falling back to chat",
			zap.Int64("user", user), zap.String("raw", truncate(raw, 200)))
		return Command{Action: ActionChat}, nil
	}
	return c.validate(cmd), nil
}

// validate enforces the closed action set and normalizes fields.
func (c *Classifier) validate(cmd Command) Command {
	if !validActions[cmd.Action] {
		c.log.Warn("model returned out-of-set action", zap.String("action", cmd.Action))
		return Command{Action: ActionChat}
	}
	if cmd.Action == ActionFillSchedule {
		if len(cmd.Month) == 1 {
			cmd.Month = "0" + cmd.Month
		}
		if _, err := schedule.DaysIn(cmd.Month, 2000); err != nil {
			c.log.Warn("model returned invalid fill month", zap.String("month", cmd.Month))
			return Command{Action: ActionChat}
		}
	}
	return cmd
}

// FreeText generates a conversational reply: a cheer of the given kind,
// or a response to the user's message when kind is empty.
func (c *Classifier) FreeText(ctx context.Context, kind, text string) (string, error) {
	system := "You are a friendly assistant for a small support team that " +
		"manages its shift schedule through you. Reply with one or two short, " +
		"warm sentences. No markdown, no lists."
	var prompt string
	if kind != "" {
		prompt = fmt.Sprintf("Write a short %s message for the team.", kind)
	} else {
		prompt = text
	}
	return c.client.CompleteWithSystem(ctx, system, prompt)
}

func (c *Classifier) systemPrompt(today time.Time) string {
	names := strings.Join(c.roster().Names(), ", ")
	year := today.Year()
	return fmt.Sprintf(`You manage a rotating employee work schedule.
Today: %s (%s). Current year: %d.
Employees: %s.

Recognize the user's intent and return JSON only.

Actions:
- "update" - change one employee's time
- "update_many" - change several
- "show_period" - show the schedule for a day or period
- "show_history" - changes made through the bot
- "show_changes_period" - who was changed in a period
- "show_workers" - who works on a specific day
- "check_changes" - detect edits made directly in the sheet
- "fill_schedule" - fill a month by the 2/2 rotation
- "undo" - restore the previous value
- "undo_batch" - revert the last bulk update
- "cheer" - praise or encourage the team
- "chat" - free conversation
- "unknown" - unintelligible request

Shapes:
update: {"action":"update","name":"Alice","date":"18.02","time":"13:00 - 21:00"}
update_many: {"action":"update_many","updates":[{"name":"Alice","date":"18.02","time":"13:00 - 21:00"}]}
show_period: {"action":"show_period","date_from":"18.02","date_to":"18.02"}
show_history: {"action":"show_history"}
show_changes_period: {"action":"show_changes_period","date_from":"11.02","date_to":"18.02"}
show_workers: {"action":"show_workers","date":"18.02"}
check_changes: {"action":"check_changes"}
fill_schedule: {"action":"fill_schedule","month":"03","year":%d}
undo: {"action":"undo","name":"Alice","date":"18.02"}
undo_batch: {"action":"undo_batch"}
cheer: {"action":"cheer","type":"praise"}
chat: {"action":"chat"}
unknown: {"action":"unknown"}

fill_schedule is ONLY for writing data into the sheet ("fill March",
"create the schedule for May"). "show me May", "shifts for May" is
show_period. Months are always two digits; default year is %d.

Rules:
- Time is "HH:MM - HH:MM" or "Day off"; dates are "DD.MM"
- "today/tomorrow" resolve from today's date
- A whole-month request means date_from="01.MM", date_to=last day
- Map inflected or shortened names to the employee list
- Return ONLY valid JSON with no markdown fences`,
		today.Format("02.01.2006"), today.Format("Monday"), year, names, year, year)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
