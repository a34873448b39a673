package sidecarapi

import (
	"fmt"
	"strconv"
)

func parseNonNegativeMillis(raw string) (int64, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("must be an integer: %w", err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("must be >= 0")
	}
	return ms, nil
}
