package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		input     string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "empty means current month",
			input:     "",
			wantStart: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "range with inclusive end",
			input:     "01/02/2025-15/02/2025",
			wantStart: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, time.February, 15, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "single day",
			input:     "05/01/2025",
			wantStart: time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, time.January, 5, 23, 59, 59, 0, time.UTC),
		},
		{name: "garbage", input: "yesterday", wantErr: true},
		{name: "end before start", input: "10/02/2025-01/02/2025", wantErr: true},
		{name: "month out of range", input: "01/13/2025", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDateRange(tc.input, now)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidDateRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, got.Start)
			assert.Equal(t, tc.wantEnd, got.End)
			assert.True(t, got.Contains(tc.wantEnd))
			assert.False(t, got.Contains(tc.wantEnd.Add(time.Second)))
		})
	}
}
