package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validBackfill() Backfill {
	return Backfill{
		ID:          "backfill-1",
		WorkflowId:  WorkflowId{Component: "comp", Name: "wf"},
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Schedule:    Schedule{Kind: Days},
		Concurrency: 2,
		NextTrigger: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBackfill_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(b Backfill) Backfill
		wantErr error
	}{
		{"valid", func(b Backfill) Backfill { return b }, nil},
		{
			"start after end",
			func(b Backfill) Backfill { b.Start, b.End = b.End, b.Start; return b },
			ErrBackfillRange,
		},
		{
			"start misaligned",
			func(b Backfill) Backfill {
				b.Start = b.Start.Add(3 * time.Hour)
				return b
			},
			ErrBackfillMisaligned,
		},
		{
			"concurrency zero",
			func(b Backfill) Backfill { b.Concurrency = 0; return b },
			ErrBackfillConcurrency,
		},
		{
			"next trigger before start",
			func(b Backfill) Backfill {
				b.NextTrigger = b.Start.Add(-24 * time.Hour)
				return b
			},
			ErrBackfillNextTrigger,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(validBackfill()).Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBackfill_Done_Forward(t *testing.T) {
	b := validBackfill()
	assert.False(t, b.Done())
	b.NextTrigger = b.End
	assert.True(t, b.Done())
}

func TestBackfill_Done_Reverse(t *testing.T) {
	b := validBackfill()
	b.Reverse = true
	b.NextTrigger = b.End
	assert.False(t, b.Done())
	b.NextTrigger = b.Start
	assert.False(t, b.Done(), "the start partition itself is still to be triggered")
	b.NextTrigger = b.Schedule.Previous(b.Start)
	assert.True(t, b.Done())
}
