// Package timecode converts split timestamps between their textual forms and
// offsets in seconds.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"vsplit/internal/services"
)

// ErrInvalidTimeFormat reports a timestamp outside the accepted grammar.
var ErrInvalidTimeFormat = fmt.Errorf("%w: invalid time format", services.ErrValidation)

// Parse converts a timestamp into seconds. Accepted forms are HH:MM:SS[.mmm],
// MM:SS[.mmm], and bare (possibly fractional) seconds; the number of colons
// selects the form. Hours and minutes must be integers.
func Parse(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, invalid(value)
	}

	parts := strings.Split(trimmed, ":")
	var (
		hours, minutes int64
		seconds        float64
		err            error
	)
	switch len(parts) {
	case 3:
		if hours, err = parseInt(parts[0]); err != nil {
			return 0, invalid(value)
		}
		if minutes, err = parseInt(parts[1]); err != nil {
			return 0, invalid(value)
		}
		if seconds, err = parseSeconds(parts[2]); err != nil {
			return 0, invalid(value)
		}
	case 2:
		if minutes, err = parseInt(parts[0]); err != nil {
			return 0, invalid(value)
		}
		if seconds, err = parseSeconds(parts[1]); err != nil {
			return 0, invalid(value)
		}
	case 1:
		if seconds, err = parseSeconds(parts[0]); err != nil {
			return 0, invalid(value)
		}
	default:
		return 0, invalid(value)
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds, nil
}

// Format renders seconds as HH:MM:SS.mmm. Negative input is clamped to zero.
func Format(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	millis := totalMillis % 60_000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, millis/1000, millis%1000)
}

func parseInt(part string) (int64, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return 0, errors.New("empty component")
	}
	return strconv.ParseInt(part, 10, 64)
}

func parseSeconds(part string) (float64, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return 0, errors.New("empty component")
	}
	// ParseFloat also takes hex floats and digit separators; plain decimal only.
	if strings.ContainsFunc(part, func(r rune) bool {
		return !strings.ContainsRune("0123456789.+-eE", r)
	}) {
		return 0, fmt.Errorf("unexpected character in %q", part)
	}
	value, err := strconv.ParseFloat(part, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("non-finite value")
	}
	return value, nil
}

func invalid(value string) error {
	return fmt.Errorf("%w: %q (expected HH:MM:SS[.mmm], MM:SS[.mmm], or seconds)", ErrInvalidTimeFormat, value)
}
