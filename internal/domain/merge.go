package domain

// Merge reconciles the template catalog with an optional persisted record into
// the authoritative schedule for a date. It is a pure function.
//
// Semantics:
//   - Output order and cardinality always match the template.
//   - A persisted entry is matched to a template slot by Description; its IsDone
//     and Comment are adopted, while TimeLabel and Details are always taken from
//     the template so catalog edits reach old dates.
//   - Template slots with no persisted counterpart are backfilled fresh.
//   - Persisted entries whose description is not in the template are dropped.
//
// Pass nil persisted when no record exists for the date yet.
func Merge(template []ActivityTemplate, persisted []ActivityRecord) DailySchedule {
	byDescription := make(map[string]ActivityRecord, len(persisted))
	for _, rec := range persisted {
		byDescription[rec.Description] = rec
	}

	schedule := make(DailySchedule, 0, len(template))
	for _, slot := range template {
		merged := ActivityRecord{
			TimeLabel:   slot.TimeLabel,
			Description: slot.Description,
			Details:     slot.Details,
		}
		if prev, ok := byDescription[slot.Description]; ok {
			merged.IsDone = prev.IsDone
			merged.Comment = prev.Comment
		}
		schedule = append(schedule, merged)
	}
	return schedule
}
