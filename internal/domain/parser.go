package domain

import (
	"math"
	"strconv"
	"strings"
)

const activitySeparator = "-"

// ParseActivity turns "Name - Reps" into a ParsedDetail. The text is split on the
// first separator; the name is trimmed and lower-cased, the reps must be a
// non-negative base-10 integer.
func ParseActivity(text string) (ParsedDetail, bool) {
	namePart, repsPart, found := strings.Cut(text, activitySeparator)
	if !found {
		return ParsedDetail{}, false
	}

	name := strings.ToLower(strings.TrimSpace(namePart))
	if name == "" {
		return ParsedDetail{}, false
	}

	reps, err := strconv.Atoi(strings.TrimSpace(repsPart))
	if err != nil || reps < 0 {
		return ParsedDetail{}, false
	}

	return ParsedDetail{Name: name, Reps: reps}, true
}

// ParseWeight parses a decimal weight. Zero and negative values are accepted.
func ParseWeight(text string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || !isFinite(value) {
		return 0, ErrInvalidNumber
	}
	return value, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
