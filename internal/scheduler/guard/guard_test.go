package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsDue(t *testing.T) {
	cases := []struct {
		name  string
		day   int
		today time.Time
		want  bool
	}{
		{"same day", 5, time.Date(2024, 6, 5, 22, 15, 0, 0, time.UTC), true},
		{"other day", 20, time.Date(2024, 6, 5, 22, 15, 0, 0, time.UTC), false},
		{"31 on last day of june", 31, time.Date(2024, 6, 30, 22, 15, 0, 0, time.UTC), true},
		{"31 not before last day", 31, time.Date(2024, 6, 29, 22, 15, 0, 0, time.UTC), false},
		{"30 on leap february", 30, time.Date(2024, 2, 29, 22, 15, 0, 0, time.UTC), true},
		{"29 on short february", 29, time.Date(2023, 2, 28, 22, 15, 0, 0, time.UTC), true},
		{"28 stays 28 on leap year", 28, time.Date(2024, 2, 29, 22, 15, 0, 0, time.UTC), false},
		{"invalid zero", 0, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), false},
		{"invalid 32", 32, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDue(tc.day, tc.today))
		})
	}
}

func TestValidateWindowDay(t *testing.T) {
	assert.NoError(t, ValidateWindowDay(1))
	assert.NoError(t, ValidateWindowDay(31))
	assert.ErrorIs(t, ValidateWindowDay(0), ErrInvalidWindowDay)
	assert.ErrorIs(t, ValidateWindowDay(32), ErrInvalidWindowDay)
}
