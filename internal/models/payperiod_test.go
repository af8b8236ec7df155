package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodStatusNext(t *testing.T) {
	cases := []struct {
		name    string
		from    PeriodStatus
		event   PeriodEvent
		want    PeriodStatus
		allowed bool
	}{
		{"submit draft", PeriodStatusDraft, EventSubmit, PeriodStatusSubmitted, true},
		{"approve submitted", PeriodStatusSubmitted, EventApprove, PeriodStatusApproved, true},
		{"reject submitted", PeriodStatusSubmitted, EventReject, PeriodStatusRejected, true},
		{"resubmit rejected", PeriodStatusRejected, EventSubmit, PeriodStatusSubmitted, true},
		{"pay approved", PeriodStatusApproved, EventMarkPaid, PeriodStatusPaid, true},
		{"approve draft", PeriodStatusDraft, EventApprove, "", false},
		{"submit submitted", PeriodStatusSubmitted, EventSubmit, "", false},
		{"pay submitted", PeriodStatusSubmitted, EventMarkPaid, "", false},
		{"reject approved", PeriodStatusApproved, EventReject, "", false},
		{"paid is terminal", PeriodStatusPaid, EventSubmit, "", false},
		{"paid cannot be paid again", PeriodStatusPaid, EventMarkPaid, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, ok := tc.from.Next(tc.event)
			assert.Equal(t, tc.allowed, ok)
			if tc.allowed {
				assert.Equal(t, tc.want, next)
			}
		})
	}
}

func TestPeriodStatusValid(t *testing.T) {
	for _, s := range []PeriodStatus{PeriodStatusDraft, PeriodStatusSubmitted, PeriodStatusApproved, PeriodStatusRejected, PeriodStatusPaid} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, PeriodStatus("PENDING").Valid())
	assert.False(t, PeriodStatus("").Valid())
}

func TestPeriodWindowEnd(t *testing.T) {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := PeriodWindowEnd(start)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, PeriodWindowDays-1, int(end.Sub(start).Hours()/24))
}
