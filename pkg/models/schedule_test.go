package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Aligned(t *testing.T) {
	testCases := []struct {
		name    string
		sched   Schedule
		instant time.Time
		want    bool
	}{
		{"hours aligned", Schedule{Kind: Hours}, time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC), true},
		{"hours misaligned", Schedule{Kind: Hours}, time.Date(2020, 1, 1, 3, 15, 0, 0, time.UTC), false},
		{"days aligned", Schedule{Kind: Days}, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"days misaligned", Schedule{Kind: Days}, time.Date(2020, 1, 1, 3, 15, 0, 0, time.UTC), false},
		{"months aligned", Schedule{Kind: Months}, time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), true},
		{"months misaligned", Schedule{Kind: Months}, time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC), false},
		{"years aligned", Schedule{Kind: Years}, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sched.Aligned(tc.instant))
		})
	}
}

func TestSchedule_Next(t *testing.T) {
	days := Schedule{Kind: Days}
	assert.Equal(t,
		time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		days.Next(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		days.Next(time.Date(2019, 12, 31, 12, 0, 0, 0, time.UTC)))

	hours := Schedule{Kind: Hours}
	assert.Equal(t,
		time.Date(2020, 1, 1, 4, 0, 0, 0, time.UTC),
		hours.Next(time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC)))
}

func TestSchedule_Previous(t *testing.T) {
	days := Schedule{Kind: Days}
	assert.Equal(t,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		days.Previous(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestSchedule_Parameter(t *testing.T) {
	testCases := []struct {
		name  string
		sched Schedule
		t     time.Time
		want  string
	}{
		{"hours", Schedule{Kind: Hours}, time.Date(2017, 1, 2, 3, 0, 0, 0, time.UTC), "2017-01-02T03"},
		{"days", Schedule{Kind: Days}, time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC), "2017-01-02"},
		{"months", Schedule{Kind: Months}, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), "2017-01"},
		{"years", Schedule{Kind: Years}, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), "2017"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sched.Parameter(tc.t))
		})
	}
}

func TestNewCronSchedule_Valid(t *testing.T) {
	sched, err := NewCronSchedule("0 9 * * 1")
	require.NoError(t, err)
	assert.Equal(t, WellformedCron, sched.Kind)
	assert.True(t, sched.Aligned(sched.Next(time.Now().UTC())))
}

func TestNewCronSchedule_Invalid(t *testing.T) {
	_, err := NewCronSchedule("not a cron expression")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestSchedule_Validate(t *testing.T) {
	assert.NoError(t, Schedule{Kind: Days}.Validate())
	assert.Error(t, Schedule{Kind: "BOGUS"}.Validate())
	assert.Error(t, Schedule{Kind: WellformedCron, Expression: ""}.Validate())
}

func TestSchedule_FirstAlignedAtOrAfter(t *testing.T) {
	days := Schedule{Kind: Days}
	aligned := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, days.FirstAlignedAtOrAfter(aligned).Equal(aligned))

	misaligned := time.Date(2020, 1, 1, 5, 0, 0, 0, time.UTC)
	assert.True(t, days.FirstAlignedAtOrAfter(misaligned).Equal(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)))
}
