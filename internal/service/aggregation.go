package service

import "github.com/paylog/timecard-api/internal/models"

// ComputeTotals folds a period's entry set into its aggregate fields.
//
// Regular worked hours are capped at the weekly overtime threshold; the
// overflow lands in overtime. Category buckets (holiday, sick, rotation,
// travel, PTO) are kept separate and uncapped. Unpaid leave contributes
// nothing, including per-diem. The result depends only on the entry set,
// never on the order entries were recorded in.
func ComputeTotals(entries []models.TimeEntry, overtimeThreshold float64) models.PeriodTotals {
	var totals models.PeriodTotals
	var workedHours float64

	for i := range entries {
		entry := &entries[i]
		if entry.Category == models.DayUnpaidLeave {
			continue
		}

		totals.TotalPerDiem += entry.PerDiem

		switch entry.Kind() {
		case models.EntryKindWorked:
			workedHours += entry.Hours()
		case models.EntryKindPerDiemOnly:
			// per-diem already counted
		case models.EntryKindPTO:
			totals.TotalPto++
			totals.TotalPtoHours += entry.Hours()
		case models.EntryKindHoliday:
			totals.TotalHolidayHours += entry.Hours()
		case models.EntryKindSick:
			totals.TotalSickDays++
			totals.TotalSickHours += entry.Hours()
		case models.EntryKindRotation:
			totals.TotalRotationDays++
			totals.TotalRotationHours += entry.Hours()
		case models.EntryKindTravel:
			totals.TotalTravelHours += entry.Hours()
		}
	}

	if overtimeThreshold > 0 && workedHours > overtimeThreshold {
		totals.TotalHours = overtimeThreshold
		totals.TotalOvertimeHours = workedHours - overtimeThreshold
	} else {
		totals.TotalHours = workedHours
	}

	return totals
}
