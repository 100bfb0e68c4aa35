package utils

import (
	"strings"
)

// NormalizePlate uppercases raw recognizer output and keeps only A-Z and 0-9.
func NormalizePlate(raw string) string {
	upper := strings.ToUpper(raw)
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeManualPlate applies the lighter cleanup used for operator-supplied plates.
func NormalizeManualPlate(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
