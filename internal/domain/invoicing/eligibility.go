package invoicing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type nextLevelKind uint8

const (
	nextLevelUndefined nextLevelKind = iota
	nextLevelComplete
	nextLevelActionable
)

// NextLevel is the three-way answer to "which reminder comes next":
// undefined (no reminder concept applies), complete (ladder exhausted) or a level.
// In JSON it is an absent field (with omitzero), null and an integer respectively.
type NextLevel struct {
	kind  nextLevelKind
	level ReminderLevel
}

// UndefinedNextLevel means reminders do not apply to the invoice
func UndefinedNextLevel() NextLevel {
	return NextLevel{}
}

// CompleteNextLevel means every level has been sent
func CompleteNextLevel() NextLevel {
	return NextLevel{kind: nextLevelComplete}
}

// ActionableNextLevel points at the level to send next
func ActionableNextLevel(level ReminderLevel) NextLevel {
	return NextLevel{kind: nextLevelActionable, level: level}
}

// IsZero reports the undefined state so that omitzero drops the field
func (n NextLevel) IsZero() bool {
	return n.kind == nextLevelUndefined
}

// IsUndefined reports whether no reminder concept applies
func (n NextLevel) IsUndefined() bool {
	return n.kind == nextLevelUndefined
}

// IsComplete reports whether the ladder is exhausted
func (n NextLevel) IsComplete() bool {
	return n.kind == nextLevelComplete
}

// Level returns the actionable level, if any
func (n NextLevel) Level() (ReminderLevel, bool) {
	return n.level, n.kind == nextLevelActionable
}

// String implements fmt.Stringer
func (n NextLevel) String() string {
	switch n.kind {
	case nextLevelComplete:
		return "complete"
	case nextLevelActionable:
		return fmt.Sprintf("level %d", n.level)
	default:
		return "undefined"
	}
}

// MarshalJSON implements json.Marshaler
func (n NextLevel) MarshalJSON() ([]byte, error) {
	if n.kind == nextLevelActionable {
		return json.Marshal(int(n.level))
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. A null decodes as complete; an
// absent field never reaches here and stays undefined.
func (n *NextLevel) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = CompleteNextLevel()
		return nil
	}
	var level int
	if err := json.Unmarshal(data, &level); err != nil {
		return fmt.Errorf("next reminder level: %w", err)
	}
	if !ReminderLevel(level).IsValid() {
		return fmt.Errorf("next reminder level %d is out of range", level)
	}
	*n = ActionableNextLevel(ReminderLevel(level))
	return nil
}

const (
	msgAllLevelsSent        = "All reminder levels have been sent. Consider alternative collection methods."
	msgAllLevelsSentPartial = "All reminder levels have been sent."
	msgNotYetOverdue        = "Invoice is not yet overdue. Wait until after the due date to send the first reminder."
)

// Eligibility is the read-only answer to "can this invoice be reminded now?"
type Eligibility struct {
	NextLevel     NextLevel
	CanSend       bool
	DaysOverdue   int
	DaysRemaining int
	Message       string

	// Reconciled is set when the cached status disagreed with the reminder
	// history and the history was used instead.
	Reconciled   bool
	CachedStatus InvoiceStatus
	HighestLevel ReminderLevel
}

// ResolveEligibility decides reminder eligibility for an invoice. The reminder
// history is authoritative; the invoice status is only a cache of it. The
// function is pure and never mutates its inputs.
func ResolveEligibility(inv *Invoice, history ReminderHistory, policy EscalationPolicy, now time.Time) Eligibility {
	result := Eligibility{
		DaysOverdue:  DaysOverdue(inv.DueDate, now),
		CachedStatus: inv.Status,
	}
	highest, hasHistory := history.HighestLevel()
	if hasHistory {
		result.HighestLevel = highest
	}

	// Stale cache: the status says no reminder went out but the history disagrees.
	if hasHistory && (inv.Status == InvoiceStatusSent || inv.Status == InvoiceStatusOverdue) {
		result.Reconciled = true
		return resolveFromHistory(result, history, policy, now)
	}

	switch inv.Status {
	case InvoiceStatusDraft:
		// No reminder concept applies to drafts.
	case InvoiceStatusPaid, InvoiceStatusCancelled:
		result.Message = fmt.Sprintf("Invoice has been %s. No further reminders needed.", inv.Status)
	case InvoiceStatusSent:
		if result.DaysOverdue > 0 {
			result.NextLevel = ActionableNextLevel(ReminderLevelGentle)
			result.CanSend = true
		} else {
			result.Message = msgNotYetOverdue
		}
	case InvoiceStatusOverdue:
		result.NextLevel = ActionableNextLevel(ReminderLevelGentle)
		result.CanSend = true
	case InvoiceStatusOverdueReminder1, InvoiceStatusOverdueReminder2, InvoiceStatusOverdueReminder3:
		return resolveReminderStage(result, inv.Status.ReminderStage(), inv.UpdatedAt, history, policy, now)
	case InvoiceStatusPartial:
		return resolvePartial(result, history, policy, now)
	}
	return result
}

// resolveFromHistory escalates from the highest recorded level
func resolveFromHistory(result Eligibility, history ReminderHistory, policy EscalationPolicy, now time.Time) Eligibility {
	if result.HighestLevel >= MaxReminderLevel {
		result.NextLevel = CompleteNextLevel()
		result.Message = msgAllLevelsSent
		return result
	}
	return gateLevel(result, result.HighestLevel, history.Latest().SentAt, policy, now)
}

// resolveReminderStage handles overdue_reminder_N. When the history is ahead of the
// cached stage the history wins; when it is behind, the stage is trusted because the
// email for it did go out even if its record was lost. Without any record the
// cooldown runs from stageWrittenAt, the last time the status was saved.
func resolveReminderStage(result Eligibility, stage ReminderLevel, stageWrittenAt time.Time, history ReminderHistory, policy EscalationPolicy, now time.Time) Eligibility {
	latest := history.Latest()
	switch {
	case latest == nil:
		result.Reconciled = true
		if stage >= MaxReminderLevel {
			result.NextLevel = CompleteNextLevel()
			result.Message = msgAllLevelsSent
			return result
		}
		return gateLevel(result, stage, stageWrittenAt, policy, now)
	case result.HighestLevel > stage:
		result.Reconciled = true
		return resolveFromHistory(result, history, policy, now)
	case stage >= MaxReminderLevel:
		result.NextLevel = CompleteNextLevel()
		result.Message = msgAllLevelsSent
		return result
	default:
		if result.HighestLevel < stage {
			result.Reconciled = true
		}
		return gateLevel(result, stage, latest.SentAt, policy, now)
	}
}

// resolvePartial treats a partially paid invoice like an overdue one, using the
// history for the level.
func resolvePartial(result Eligibility, history ReminderHistory, policy EscalationPolicy, now time.Time) Eligibility {
	latest := history.Latest()
	if latest == nil {
		result.NextLevel = ActionableNextLevel(ReminderLevelGentle)
		result.CanSend = true
		return result
	}
	if result.HighestLevel >= MaxReminderLevel {
		result.NextLevel = CompleteNextLevel()
		result.Message = msgAllLevelsSentPartial
		return result
	}
	next := result.HighestLevel + 1
	check := policy.CanSendNextReminder(latest.SentAt, result.HighestLevel, next, now)
	result.DaysRemaining = check.DaysRemaining
	if !check.CanSend {
		result.Message = fmt.Sprintf("Please wait %d more day(s) before sending next reminder.", check.DaysRemaining)
		return result
	}
	if gated, ok := gateThreshold(result, next, policy); ok {
		return gated
	}
	result.NextLevel = ActionableNextLevel(next)
	result.CanSend = true
	return result
}

// gateLevel applies the cooldown and then the days-overdue threshold to the
// level after last
func gateLevel(result Eligibility, last ReminderLevel, lastSentAt time.Time, policy EscalationPolicy, now time.Time) Eligibility {
	next := last + 1
	check := policy.CanSendNextReminder(lastSentAt, last, next, now)
	result.DaysRemaining = check.DaysRemaining
	if !check.CanSend {
		result.Message = fmt.Sprintf("Please wait %d more day(s) before sending Level %d reminder. Last reminder was sent on %s.",
			check.DaysRemaining, next, FormatShortDate(lastSentAt))
		return result
	}
	if gated, ok := gateThreshold(result, next, policy); ok {
		return gated
	}
	result.NextLevel = ActionableNextLevel(next)
	result.CanSend = true
	return result
}

// gateThreshold blocks next while the invoice is fewer days overdue than the
// policy asks for that level. DaysRemaining counts the days until it is.
func gateThreshold(result Eligibility, next ReminderLevel, policy EscalationPolicy) (Eligibility, bool) {
	threshold := policy.Threshold(next)
	if result.DaysOverdue >= threshold {
		return result, false
	}
	result.DaysRemaining = threshold - result.DaysOverdue
	result.Message = fmt.Sprintf("Level %d is suggested from %d days overdue.", next, threshold)
	return result, true
}
