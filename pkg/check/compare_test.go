package check

import (
	"testing"

	"gotest.tools/assert"
)

func TestComparisons(t *testing.T) {
	type testCase struct {
		name    string
		err     error
		wantErr bool
	}
	tests := []testCase{
		{"greater", GreaterThan(3, 2), false},
		{"not greater", GreaterThan(2, 2, "eta must be > 1"), true},
		{"greater or equal", GreaterThanOrEqualTo(2, 2), false},
		{"less", GreaterThanOrEqualTo(1.5, 2.0), true},
		{"less or equal", LessThanOrEqualTo(0, 1), false},
		{"not less or equal", LessThanOrEqualTo(2, 1, "skip_last must be <= %d", 1), true},
		{"in", In("postgres", []string{"memory", "postgres"}), false},
		{"not in", In("sqlite", []string{"memory", "postgres"}), true},
		{"true", True(true), false},
		{"false", True(false, "never"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.err != nil, tt.wantErr, "error = %v", tt.err)
		})
	}
}

func TestMessageFormatting(t *testing.T) {
	err := LessThanOrEqualTo(3, 1, "skip_last must be <= %d", 1)
	assert.Error(t, err, "skip_last must be <= 1: 3 is not less than or equal to 1")

	err = GreaterThan(1, 1)
	assert.Error(t, err, "1 is not greater than 1")
}
