package utils

import (
	"fmt"
	"math"
	"time"
)

// ParseDuration extends time.ParseDuration with days ("7d") and weeks ("2w").
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var days int
	if n, err := fmt.Sscanf(s, "%dd", &days); err == nil && n == 1 {
		return time.Duration(days) * 24 * time.Hour, nil
	}

	var weeks int
	if n, err := fmt.Sscanf(s, "%dw", &weeks); err == nil && n == 1 {
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}

// CeilSeconds rounds d up to whole seconds, never returning less than min.
func CeilSeconds(d time.Duration, min int) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < min {
		return min
	}
	return secs
}
