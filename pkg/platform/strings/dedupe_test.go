package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "single element",
			input:    "0xab",
			expected: []string{"0xab"},
		},
		{
			name:     "trims and lowercases",
			input:    " 0xAB , 0xCd",
			expected: []string{"0xab", "0xcd"},
		},
		{
			name:     "case-insensitive duplicates removed",
			input:    "0xab,0xAB,0xcd",
			expected: []string{"0xab", "0xcd"},
		},
		{
			name:     "empty elements dropped",
			input:    "0xab,,  ,0xcd,",
			expected: []string{"0xab", "0xcd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input, ","))
		})
	}
}
