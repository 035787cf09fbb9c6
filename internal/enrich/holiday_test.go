package enrich

import (
	"context"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestBuiltinHoliday(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		country string
		want    string
	}{
		{"new year everywhere", date(2026, time.January, 1), "BR", "New Year's Day"},
		{"christmas everywhere", date(2026, time.December, 25), "JP", "Christmas Day"},
		{"us independence day", date(2026, time.July, 4), "US", "Independence Day"},
		{"us thanksgiving 2026", date(2026, time.November, 26), "US", "Thanksgiving"},
		{"us mlk 2026", date(2026, time.January, 19), "US", "Martin Luther King Jr. Day"},
		{"us memorial 2026", date(2026, time.May, 25), "US", "Memorial Day"},
		{"us labor 2026", date(2026, time.September, 7), "US", "Labor Day"},
		{"fr bastille", date(2026, time.July, 14), "FR", "Fête Nationale"},
		{"gb boxing day", date(2026, time.December, 26), "GB", "Boxing Day"},
		{"ordinary weekday", date(2026, time.March, 11), "US", ""},
		{"fr ordinary day", date(2026, time.March, 11), "FR", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := builtinHoliday(tt.date, tt.country); got != tt.want {
				t.Errorf("builtinHoliday(%s, %s) = %q, want %q", tt.date.Format("2006-01-02"), tt.country, got, tt.want)
			}
		})
	}
}

func TestHolidayTable_NoExternal(t *testing.T) {
	table := NewHolidayTable("", "", 0, nil)
	ok, name, err := table.IsHoliday(context.Background(), date(2026, time.July, 4), "US")
	if err != nil {
		t.Fatalf("IsHoliday: %v", err)
	}
	if !ok || name != "Independence Day" {
		t.Errorf("got (%v, %q)", ok, name)
	}

	ok, _, err = table.IsHoliday(context.Background(), date(2026, time.March, 11), "US")
	if err != nil || ok {
		t.Errorf("ordinary day: ok=%v err=%v", ok, err)
	}
}

func TestIsNthWeekday(t *testing.T) {
	// 2026-11-26 is the fourth Thursday of November
	if !isNthWeekday(date(2026, time.November, 26), 4, time.Thursday) {
		t.Error("2026-11-26 should be 4th Thursday")
	}
	if isNthWeekday(date(2026, time.November, 19), 4, time.Thursday) {
		t.Error("2026-11-19 is the 3rd Thursday")
	}
}

func TestIsLastWeekday(t *testing.T) {
	// 2026-05-25 is the last Monday of May 2026
	if !isLastWeekday(date(2026, time.May, 25), time.Monday) {
		t.Error("2026-05-25 should be last Monday of May")
	}
	if isLastWeekday(date(2026, time.May, 18), time.Monday) {
		t.Error("2026-05-18 is not the last Monday")
	}
}
