package config

import "errors"

var (
	ErrInvalidHalfLifeBounds = errors.New("half-life bounds must satisfy 0 < min <= max")
	ErrInvalidTargetRecall   = errors.New("target recall must be in (0, 1)")
	ErrInvalidIntervalBounds = errors.New("interval bounds must satisfy 1 <= min <= max")
	ErrInvalidThresholds     = errors.New("follow-up threshold must be below strong score threshold")
)
