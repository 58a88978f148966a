package calendar

import "time"

// isOffshoreTradingDay implements the US market calendar: weekdays minus
// the federal market holidays. The set is computed per year, so unlike the
// domestic table it never runs out of data.
func isOffshoreTradingDay(d Date) bool {
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !offshoreHolidays(d.Year)[d]
}

// offshoreHolidays returns the US market holidays for a year: New Year's
// Day, MLK Day, Presidents' Day, Memorial Day, Independence Day, Labor Day,
// Thanksgiving and Christmas.
func offshoreHolidays(year int) map[Date]bool {
	h := map[Date]bool{
		NewDate(year, time.January, 1):   true,
		NewDate(year, time.July, 4):      true,
		NewDate(year, time.December, 25): true,
	}
	h[nthWeekday(year, time.January, time.Monday, 3)] = true
	h[nthWeekday(year, time.February, time.Monday, 3)] = true
	h[lastWeekday(year, time.May, time.Monday)] = true
	h[nthWeekday(year, time.September, time.Monday, 1)] = true
	h[nthWeekday(year, time.November, time.Thursday, 4)] = true
	return h
}

// nthWeekday returns the n-th given weekday of a month (n is 1-based).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) Date {
	first := NewDate(year, month, 1)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDays(offset + (n-1)*7)
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) Date {
	last := NewDate(year, month+1, 1).AddDays(-1)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDays(-offset)
}
