package predictor

import "time"

// WeekOfYear numbers weeks from the first Monday-started week that has at
// least four days in the year. Days before that week belong to the last week
// of the previous year. Unlike time.ISOWeek, late December never rolls over
// into week 1 of the next year, so week 53 is possible.
func WeekOfYear(t time.Time) int {
	year := t.Year()
	start := firstWeekStart(year)
	day := t.YearDay() - 1

	if day < start {
		return WeekOfYear(time.Date(year-1, time.December, 31, 0, 0, 0, 0, t.Location()))
	}
	return (day-start)/7 + 1
}

// firstWeekStart is the zero-based day of year of the Monday opening week 1.
// It is negative when week 1 starts in the previous December.
func firstWeekStart(year int) int {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(jan1.Weekday()) + 6) % 7 // days since Monday

	if offset <= 3 {
		return -offset
	}
	return 7 - offset
}

// weekDistance is the week-number gap, folded across the year boundary.
func weekDistance(a, b int) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > 26 {
		diff = 52 - diff
	}
	return diff
}
