package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601Duration(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{"hours only", "PT1H", time.Hour},
		{"hours and minutes", "PT1H30M", 90 * time.Minute},
		{"seconds", "PT5S", 5 * time.Second},
		{"days", "P1D", 24 * time.Hour},
		{"days and hours", "P1DT12H", 36 * time.Hour},
		{"fractional seconds", "PT0.5S", 500 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseISO8601Duration(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseISO8601Duration_Invalid(t *testing.T) {
	_, err := ParseISO8601Duration("1H")
	assert.Error(t, err)

	_, err = ParseISO8601Duration("PT1X")
	assert.Error(t, err)
}

func TestFile_StaleTTL(t *testing.T) {
	f := File{StaleStateTTLs: map[string]string{
		"SUBMITTED": "PT10M",
		"default":   "PT1H",
	}}

	got, err := f.StaleTTL("SUBMITTED")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, got)

	got, err = f.StaleTTL("RUNNING")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, got)
}
