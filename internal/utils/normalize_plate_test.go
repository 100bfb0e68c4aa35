package utils

import (
	"testing"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "punctuation and spaces",
			input:    "AB-C1 2#34",
			expected: "ABC1234",
		},
		{
			name:     "lowercase",
			input:    "abc1d23",
			expected: "ABC1D23",
		},
		{
			name:     "mercosul with dot",
			input:    "BRA.2E19",
			expected: "BRA2E19",
		},
		{
			name:     "trailing newline from recognizer",
			input:    "QWE4567\n\f",
			expected: "QWE4567",
		},
		{
			name:     "accented letters dropped",
			input:    "ÇAB123",
			expected: "AB123",
		},
		{
			name:     "only noise",
			input:    " -#.|",
			expected: "",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePlate(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePlate(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeManualPlate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "trim and upper", input: "  xyz9999 ", expected: "XYZ9999"},
		{name: "keeps separators", input: "abc-1234", expected: "ABC-1234"},
		{name: "blank", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeManualPlate(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeManualPlate(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
