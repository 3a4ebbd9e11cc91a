package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultCronHour   = 3
	defaultCronMinute = 30
)

// ParseCronSchedule parses a daily cron expression "minute hour * * *".
// Only fixed minute and hour fields are honoured; an empty expression yields 03:30.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour, minute = defaultCronHour, defaultCronMinute

	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return hour, minute, nil
	}
	if len(parts) != 5 {
		return 0, 0, fmt.Errorf("%w: expected 5 cron fields, got %d", ErrInvalidConfig, len(parts))
	}

	if minute, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("%w: minute field %q", ErrInvalidConfig, parts[0])
	}
	if hour, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: hour field %q", ErrInvalidConfig, parts[1])
	}

	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute must be 0-59, got %d", ErrInvalidConfig, minute)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour must be 0-23, got %d", ErrInvalidConfig, hour)
	}

	return hour, minute, nil
}

// nextRunAfter returns the first hh:mm strictly after now, in now's location
func nextRunAfter(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
