package classify

import (
	"testing"
	"time"
)

// A Wednesday. Weekday-relative cases below depend on it.
var wednesday = time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)

func TestResolveDueDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{
			name: "tomorrow is start of next day",
			text: "remind me to call mom tomorrow",
			want: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "tomorrow with explicit time",
			text: "remind me to call mom tomorrow at 5pm",
			want: time.Date(2026, 3, 12, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "tomorrow with minutes",
			text: "standup tomorrow at 9:15am",
			want: time.Date(2026, 3, 12, 9, 15, 0, 0, time.UTC),
		},
		{
			name: "next friday from a wednesday is two days out",
			text: "submit the report next friday",
			want: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "next wednesday skips today",
			text: "dentist next wednesday",
			want: time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "in three days",
			text: "renew the certificate in 3 days",
			want: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "in one day singular",
			text: "check the build in 1 day",
			want: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "in two weeks",
			text: "follow up in 2 weeks",
			want: time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "next week is seven days out",
			text: "plan the retro next week",
			want: time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "end of month",
			text: "pay rent end of month",
			want: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "end of the month variant",
			text: "close the books at the end of the month",
			want: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "day after tomorrow",
			text: "water the plants the day after tomorrow",
			want: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "today with 24h clock",
			text: "join the call today at 17:00",
			want: time.Date(2026, 3, 11, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "12am maps to midnight",
			text: "deploy tomorrow at 12am",
			want: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveDueDate(tc.text, wednesday)
			if !ok {
				t.Fatalf("ResolveDueDate(%q) not resolved, want %v", tc.text, tc.want)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ResolveDueDate(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestResolveDueDate_NoTimeframe(t *testing.T) {
	for _, text := range []string{
		"remind me to call mom",
		"the wifi password is sunflower42",
		"what did I say about the release",
	} {
		if got, ok := ResolveDueDate(text, wednesday); ok {
			t.Errorf("ResolveDueDate(%q) = %v, want no resolution", text, got)
		}
	}
}

func TestResolveDueDate_EndOfMonthFebruary(t *testing.T) {
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	got, ok := ResolveDueDate("invoice clients end of month", now)
	if !ok {
		t.Fatal("not resolved")
	}
	want := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
