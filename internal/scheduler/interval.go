package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseInterval turns a schedule expression into a fixed run interval.
// Supported forms: @hourly, @daily, @weekly, @monthly (30d), @yearly or
// @annually (365d), "@every <duration>" and a bare duration. Durations accept
// Go syntax ("90m", "6h") plus a day suffix ("7d").
func ParseInterval(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)

	switch expr {
	case "@hourly":
		return time.Hour, nil
	case "@daily":
		return day, nil
	case "@weekly":
		return 7 * day, nil
	case "@monthly":
		return 30 * day, nil
	case "@yearly", "@annually":
		return 365 * day, nil
	}

	if strings.HasPrefix(expr, "@every ") {
		return parseEveryDuration(strings.TrimSpace(strings.TrimPrefix(expr, "@every ")))
	}
	if strings.HasPrefix(expr, "@") {
		return 0, fmt.Errorf("unsupported schedule expression: %s", expr)
	}
	return parseEveryDuration(expr)
}

func parseEveryDuration(duration string) (time.Duration, error) {
	// time.ParseDuration has no day unit
	if strings.HasSuffix(duration, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(duration, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration: %s", duration)
		}
		return time.Duration(days) * day, nil
	}

	d, err := time.ParseDuration(duration)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration: %s", duration)
	}
	return d, nil
}
