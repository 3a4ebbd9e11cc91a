package invoicing

import (
	"fmt"
	"math"
	"time"
)

// DefaultCooldownDays is the minimum wait between two consecutive reminder levels
const DefaultCooldownDays = 7

const day = 24 * time.Hour

// DaysOverdue returns whole days elapsed since due, rounded down.
// The result is negative while the invoice is not yet due.
func DaysOverdue(due, now time.Time) int {
	return floorDays(now.Sub(due))
}

// DaysSince returns whole days elapsed since t, rounded down
func DaysSince(t, now time.Time) int {
	return floorDays(now.Sub(t))
}

func floorDays(d time.Duration) int {
	return int(math.Floor(float64(d) / float64(day)))
}

// CooldownCheck is the answer to "may the proposed level go out now?"
type CooldownCheck struct {
	CanSend       bool
	DaysRemaining int
}

// CanSendNextReminder applies the default 7-day cooldown
func CanSendNextReminder(lastSentAt time.Time, lastLevel, proposedLevel ReminderLevel, now time.Time) CooldownCheck {
	return DefaultEscalationPolicy().CanSendNextReminder(lastSentAt, lastLevel, proposedLevel, now)
}

// NextReminderInfo returns the level that follows level and how long to wait for it.
// The final level yields a complete NextLevel and zero days.
func NextReminderInfo(level ReminderLevel) (NextLevel, int) {
	switch level {
	case ReminderLevelGentle:
		return ActionableNextLevel(ReminderLevelFollowUp), DefaultCooldownDays
	case ReminderLevelFollowUp:
		return ActionableNextLevel(ReminderLevelFinal), DefaultCooldownDays
	case ReminderLevelFinal:
		return CompleteNextLevel(), 0
	default:
		return UndefinedNextLevel(), 0
	}
}

// EscalationPolicy holds the timing rules of the reminder ladder
type EscalationPolicy struct {
	// CooldownDays is the minimum wait between consecutive levels
	CooldownDays int
	// LevelThresholds[n-1] is the minimum days overdue before level n is suggested
	LevelThresholds [3]int
}

// DefaultEscalationPolicy returns the 7-day cooldown with thresholds 1, 7 and 14 days
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		CooldownDays:    DefaultCooldownDays,
		LevelThresholds: [3]int{1, 7, 14},
	}
}

// Validate checks that thresholds are ordered and leave room for the cooldown
func (p EscalationPolicy) Validate() error {
	if p.CooldownDays < 1 {
		return fmt.Errorf("cooldown must be at least 1 day, got %d", p.CooldownDays)
	}
	if p.LevelThresholds[0] < 1 {
		return fmt.Errorf("level 1 threshold must be at least 1 day overdue, got %d", p.LevelThresholds[0])
	}
	for i := 1; i < len(p.LevelThresholds); i++ {
		if p.LevelThresholds[i] < p.LevelThresholds[i-1] {
			return fmt.Errorf("level %d threshold (%d) is below level %d threshold (%d)",
				i+1, p.LevelThresholds[i], i, p.LevelThresholds[i-1])
		}
		if p.LevelThresholds[i] < i*p.CooldownDays {
			return fmt.Errorf("level %d threshold (%d) must be at least %d days to respect the %d-day cooldown",
				i+1, p.LevelThresholds[i], i*p.CooldownDays, p.CooldownDays)
		}
	}
	return nil
}

// Threshold returns the minimum days overdue for level
func (p EscalationPolicy) Threshold(level ReminderLevel) int {
	if !level.IsValid() {
		return math.MaxInt
	}
	return p.LevelThresholds[level-1]
}

// CanSendNextReminder reports whether proposedLevel may follow lastLevel now.
// Only a single-step escalation after the cooldown is sendable.
func (p EscalationPolicy) CanSendNextReminder(lastSentAt time.Time, lastLevel, proposedLevel ReminderLevel, now time.Time) CooldownCheck {
	since := DaysSince(lastSentAt, now)
	check := CooldownCheck{
		DaysRemaining: max(0, p.CooldownDays-since),
	}
	if !proposedLevel.IsValid() || proposedLevel != lastLevel+1 {
		return check
	}
	check.CanSend = since >= p.CooldownDays
	return check
}

// LevelDecision is the planner's verdict for the next reminder
type LevelDecision struct {
	Level         ReminderLevel
	Eligible      bool
	DaysRemaining int
	Reason        string
}

// DetermineReminderLevel decides the next level from days overdue and the history.
// Level 1 needs the level 1 threshold; later levels need both their threshold and
// the cooldown against the most recent reminder.
func (p EscalationPolicy) DetermineReminderLevel(daysOverdue int, history ReminderHistory, now time.Time) LevelDecision {
	highest, ok := history.HighestLevel()
	if !ok {
		if daysOverdue >= p.Threshold(ReminderLevelGentle) {
			return LevelDecision{Level: ReminderLevelGentle, Eligible: true}
		}
		return LevelDecision{Level: ReminderLevelGentle, Reason: "Invoice is not yet overdue"}
	}
	if highest >= MaxReminderLevel {
		return LevelDecision{Level: MaxReminderLevel, Reason: "All reminder levels have been sent"}
	}

	next := highest + 1
	check := p.CanSendNextReminder(history.Latest().SentAt, highest, next, now)
	decision := LevelDecision{Level: next, DaysRemaining: check.DaysRemaining}
	switch {
	case daysOverdue < p.Threshold(next):
		decision.Reason = fmt.Sprintf("Level %d is suggested from %d days overdue", next, p.Threshold(next))
	case !check.CanSend:
		decision.Reason = fmt.Sprintf("Please wait %d more day(s) before sending Level %d reminder", check.DaysRemaining, next)
	default:
		decision.Eligible = true
	}
	return decision
}

// SuggestedLevel is the level an overdue invoice should receive next, ignoring
// the cooldown. It is used for reporting only.
func (p EscalationPolicy) SuggestedLevel(daysOverdue int, history ReminderHistory) ReminderLevel {
	if highest, ok := history.HighestLevel(); ok {
		return min(MaxReminderLevel, highest+1)
	}
	if daysOverdue >= p.Threshold(ReminderLevelFinal) {
		return ReminderLevelFollowUp
	}
	return ReminderLevelGentle
}
