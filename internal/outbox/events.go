package outbox

import (
	"time"

	"example.com/routine/internal/domain"
)

const (
	// EventTypeRecordUpdated marks a full-record overwrite of a daily record.
	EventTypeRecordUpdated = "routine.record_updated"
	// TopicRecordUpdates carries record change events, keyed by identity so
	// per-identity ordering is preserved across partitions.
	TopicRecordUpdates = "routine_record_updates"
)

// RecordUpdated is the payload announcing a persisted overwrite to listeners.
type RecordUpdated struct {
	Identity   string                  `json:"identity"`
	Date       string                  `json:"date"`
	Activities []domain.ActivityRecord `json:"activities"`
	UpdatedAt  time.Time               `json:"updated_at"`
}
