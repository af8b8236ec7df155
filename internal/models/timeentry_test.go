package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidPerDiem(t *testing.T) {
	assert.True(t, ValidPerDiem(0))
	assert.True(t, ValidPerDiem(0.75))
	assert.True(t, ValidPerDiem(1))
	assert.False(t, ValidPerDiem(0.5))
	assert.False(t, ValidPerDiem(1.5))
	assert.False(t, ValidPerDiem(-0.75))
}

func TestEntryKind(t *testing.T) {
	hours := 8.0
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)

	cases := []struct {
		name  string
		entry TimeEntry
		want  EntryKind
	}{
		{"regular with hours", TimeEntry{Category: DayRegular, TotalHours: &hours}, EntryKindWorked},
		{"regular with clock times", TimeEntry{Category: DayRegular, StartTime: &start, EndTime: &end}, EntryKindWorked},
		{"per diem only", TimeEntry{Category: DayRegular, PerDiem: 0.75}, EntryKindPerDiemOnly},
		{"regular with nothing", TimeEntry{Category: DayRegular}, EntryKindWorked},
		{"pto", TimeEntry{Category: DayPTO, TotalHours: &hours}, EntryKindPTO},
		{"holiday", TimeEntry{Category: DayHoliday, TotalHours: &hours}, EntryKindHoliday},
		{"sick", TimeEntry{Category: DaySick, TotalHours: &hours}, EntryKindSick},
		{"rotation", TimeEntry{Category: DayRotation, TotalHours: &hours}, EntryKindRotation},
		{"travel", TimeEntry{Category: DayTravel, TotalHours: &hours}, EntryKindTravel},
		{"unpaid leave", TimeEntry{Category: DayUnpaidLeave}, EntryKindUnpaidLeave},
		{"pto with per diem stays pto", TimeEntry{Category: DayPTO, PerDiem: 1}, EntryKindPTO},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.entry.Kind())
		})
	}
}

func TestEntryHours(t *testing.T) {
	hours := 9.5
	assert.Equal(t, 9.5, (&TimeEntry{TotalHours: &hours}).Hours())
	assert.Zero(t, (&TimeEntry{}).Hours())
}

func TestDayCategoryValid(t *testing.T) {
	for _, c := range []DayCategory{DayRegular, DayPTO, DayHoliday, DaySick, DayRotation, DayTravel, DayUnpaidLeave} {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, DayCategory("WEEKEND").Valid())
	assert.False(t, DayCategory("").Valid())
}

func TestHasPerDiem(t *testing.T) {
	assert.True(t, (&TimeEntry{PerDiem: 0.75}).HasPerDiem())
	assert.False(t, (&TimeEntry{}).HasPerDiem())
}
