package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paylog/timecard-api/internal/models"
)

func hoursEntry(date string, hours float64, category models.DayCategory, perDiem float64) models.TimeEntry {
	day, _ := time.Parse("2006-01-02", date)
	return models.TimeEntry{
		Date:       day,
		TotalHours: &hours,
		Category:   category,
		PerDiem:    perDiem,
	}
}

func TestComputeTotalsOvertimeOverflow(t *testing.T) {
	entries := []models.TimeEntry{
		hoursEntry("2026-03-02", 9, models.DayRegular, 0),
		hoursEntry("2026-03-03", 9, models.DayRegular, 0),
		hoursEntry("2026-03-04", 9, models.DayRegular, 0),
		hoursEntry("2026-03-05", 9, models.DayRegular, 0),
		hoursEntry("2026-03-06", 9, models.DayRegular, 0),
	}

	totals := ComputeTotals(entries, 40)
	assert.Equal(t, 40.0, totals.TotalHours)
	assert.Equal(t, 5.0, totals.TotalOvertimeHours)
	assert.Zero(t, totals.TotalPerDiem)
}

func TestComputeTotalsUnderThreshold(t *testing.T) {
	entries := []models.TimeEntry{
		hoursEntry("2026-03-02", 8, models.DayRegular, 1),
		hoursEntry("2026-03-03", 7.5, models.DayRegular, 1),
	}

	totals := ComputeTotals(entries, 40)
	assert.Equal(t, 15.5, totals.TotalHours)
	assert.Zero(t, totals.TotalOvertimeHours)
	assert.Equal(t, 2.0, totals.TotalPerDiem)
}

func TestComputeTotalsPtoDayCountsNotHours(t *testing.T) {
	entries := []models.TimeEntry{
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Category: models.DayPTO},
	}

	totals := ComputeTotals(entries, 40)
	assert.Equal(t, 1, totals.TotalPto)
	assert.Zero(t, totals.TotalHours)
	assert.Zero(t, totals.TotalOvertimeHours)
}

func TestComputeTotalsPerDiemOnlyDay(t *testing.T) {
	entries := []models.TimeEntry{
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Category: models.DayRegular, PerDiem: 0.75},
	}

	totals := ComputeTotals(entries, 40)
	assert.Equal(t, 0.75, totals.TotalPerDiem)
	assert.Zero(t, totals.TotalHours)
}

func TestComputeTotalsCategoryBuckets(t *testing.T) {
	entries := []models.TimeEntry{
		hoursEntry("2026-03-02", 8, models.DayHoliday, 0),
		hoursEntry("2026-03-03", 8, models.DaySick, 0),
		hoursEntry("2026-03-04", 10, models.DayRotation, 1),
		hoursEntry("2026-03-05", 4, models.DayTravel, 0.75),
		hoursEntry("2026-03-06", 38, models.DayRegular, 0),
	}

	totals := ComputeTotals(entries, 40)
	assert.Equal(t, 8.0, totals.TotalHolidayHours)
	assert.Equal(t, 8.0, totals.TotalSickHours)
	assert.Equal(t, 1, totals.TotalSickDays)
	assert.Equal(t, 10.0, totals.TotalRotationHours)
	assert.Equal(t, 1, totals.TotalRotationDays)
	assert.Equal(t, 4.0, totals.TotalTravelHours)
	// category hours never spill into the regular bucket or overtime
	assert.Equal(t, 38.0, totals.TotalHours)
	assert.Zero(t, totals.TotalOvertimeHours)
	assert.Equal(t, 1.75, totals.TotalPerDiem)
}

func TestComputeTotalsUnpaidLeaveContributesNothing(t *testing.T) {
	entries := []models.TimeEntry{
		hoursEntry("2026-03-02", 8, models.DayUnpaidLeave, 1),
		hoursEntry("2026-03-03", 8, models.DayRegular, 0),
	}

	totals := ComputeTotals(entries, 40)
	assert.Equal(t, 8.0, totals.TotalHours)
	assert.Zero(t, totals.TotalPerDiem)
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	a := []models.TimeEntry{
		hoursEntry("2026-03-02", 12, models.DayRegular, 1),
		hoursEntry("2026-03-03", 12, models.DayRegular, 0),
		hoursEntry("2026-03-04", 12, models.DayRegular, 0),
		hoursEntry("2026-03-05", 12, models.DayRegular, 0.75),
	}
	b := []models.TimeEntry{a[3], a[1], a[0], a[2]}

	assert.Equal(t, ComputeTotals(a, 40), ComputeTotals(b, 40))
}

func TestComputeTotalsEmpty(t *testing.T) {
	assert.Equal(t, models.PeriodTotals{}, ComputeTotals(nil, 40))
}
