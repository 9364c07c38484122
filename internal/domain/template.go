package domain

// defaultTemplate is the built-in routine catalog. Declaration order is the
// authoritative display order; Description is the merge key, so it must stay
// unique within the list.
var defaultTemplate = []ActivityTemplate{
	{TimeLabel: "5:10 AM", Description: "Wake up & wudu", Details: "Drink a glass of warm water."},
	{TimeLabel: "5:30 – 6:00 AM", Description: "Fajr + Qur'an", Details: "Keep a straight posture during recitation."},
	{TimeLabel: "6:05 – 6:35 AM", Description: "Exercise", Details: "Strength, stretches, and breathing."},
	{TimeLabel: "6:35 – 6:55 AM", Description: "Shower + Breakfast", Details: "Fuel for the day: paneer, eggs, or poha."},
	{TimeLabel: "6:55 – 7:10 AM", Description: "Cycle to library"},
	{TimeLabel: "7:10 – 11:30 AM", Description: "Library deep study", Details: "Stand and stretch every hour. Carry water + nuts."},
	{TimeLabel: "11:30 – 12:15 PM", Description: "Light lunch + break", Details: "Keep it light to avoid drowsiness."},
	{TimeLabel: "12:15 – 1:15 PM", Description: "Skill study", Details: "Use a small cushion for lower back support."},
	{TimeLabel: "1:15 – 1:25 PM", Description: "Pack & prepare", Details: "Gentle shoulder & neck roll before leaving."},
	{TimeLabel: "1:30 PM", Description: "Dhuhr prayer", Details: "Prayer itself stretches spine naturally."},
	{TimeLabel: "1:35 – 1:55 PM", Description: "Cycle to work"},
	{TimeLabel: "2:00 – 6:00 PM", Description: "Work", Details: "Stretch neck/back at least once per hour. Stay hydrated."},
	{TimeLabel: "4:00 PM", Description: "Snack", Details: "Roasted chana, fruit, or sandwich."},
	{TimeLabel: "5:15 PM", Description: "Asr prayer"},
	{TimeLabel: "6:00 – 6:25 PM", Description: "Cycle home", Details: "Cardio + fresh air."},
	{TimeLabel: "6:30 PM", Description: "Maghrib prayer"},
	{TimeLabel: "6:40 – 8:20 PM", Description: "Home study block", Details: "Maintain proper posture with back support."},
	{TimeLabel: "8:30 PM", Description: "Isha prayer"},
	{TimeLabel: "8:45 – 9:15 PM", Description: "Dinner", Details: "Avoid oily/spicy foods. Add curd or salad."},
	{TimeLabel: "9:15 – 10:00 PM", Description: "Skill practice", Details: "Take a standing stretch break halfway."},
	{TimeLabel: "10:00 – 10:20 PM", Description: "Journaling + planning"},
	{TimeLabel: "10:20 – 11:00 PM", Description: "Qur'an reflection", Details: "Sit with straight back support."},
	{TimeLabel: "11:00 – 11:15 PM", Description: "Relax", Details: "Light stretching + warm milk."},
	{TimeLabel: "11:15 PM", Description: "Sleep", Details: "Medium-firm mattress and pillow."},
}

// DefaultTemplate returns a copy of the built-in routine catalog.
func DefaultTemplate() []ActivityTemplate {
	out := make([]ActivityTemplate, len(defaultTemplate))
	copy(out, defaultTemplate)
	return out
}

// Section is a static time-of-day grouping used by presentation shells. It has
// no bearing on merge or persistence.
type Section struct {
	Name       string
	TimeLabels []string
}

// Sections groups the given template's time labels into morning, afternoon,
// and evening buckets by membership, preserving template order within each.
func Sections(template []ActivityTemplate) []Section {
	afternoonStart := "11:30 – 12:15 PM"
	eveningStart := "6:00 – 6:25 PM"

	sections := []Section{{Name: "Morning"}, {Name: "Afternoon"}, {Name: "Evening"}}
	idx := 0
	for _, slot := range template {
		if idx == 0 && slot.TimeLabel == afternoonStart {
			idx = 1
		}
		if idx == 1 && slot.TimeLabel == eveningStart {
			idx = 2
		}
		sections[idx].TimeLabels = append(sections[idx].TimeLabels, slot.TimeLabel)
	}
	return sections
}
