// Package domain defines the core schedule model and reconciliation logic.
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrIndexOutOfRange is returned when a mutation targets a slot outside the schedule.
	ErrIndexOutOfRange = errors.New("activity index out of range")
	// ErrInvalidDate is returned when a date key does not parse as YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date key")
	// ErrNoIdentity indicates a sync operation was attempted before identity resolution.
	ErrNoIdentity = errors.New("identity not resolved")
)

// Identity is the opaque stable identifier gating all persistence.
type Identity string

// ActivityTemplate is one immutable slot in the daily routine catalog.
type ActivityTemplate struct {
	TimeLabel   string
	Description string
	Details     string
}

// ActivityRecord is the per-date, mutable state of one template slot.
type ActivityRecord struct {
	TimeLabel   string `json:"time_label"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
	IsDone      bool   `json:"is_done"`
	Comment     string `json:"comment"`
}

// DailySchedule is the merged, display-ready sequence of records. It always has
// exactly one entry per template slot, in template order.
type DailySchedule []ActivityRecord

// Clone returns a deep copy so callers can hand out snapshots safely.
func (s DailySchedule) Clone() DailySchedule {
	if s == nil {
		return nil
	}
	out := make(DailySchedule, len(s))
	copy(out, s)
	return out
}

// DateKey is the calendar-date partition key for persisted records.
type DateKey string

const dateLayout = "2006-01-02"

// ParseDateKey validates and normalizes a YYYY-MM-DD date string.
func ParseDateKey(raw string) (DateKey, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return DateKey(t.Format(dateLayout)), nil
}

// Today returns the date key for the current day in UTC.
func Today() DateKey {
	return DateKey(time.Now().UTC().Format(dateLayout))
}

func (d DateKey) String() string { return string(d) }
