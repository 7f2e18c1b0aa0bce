package tools

import "errors"

// Tool-local failures. Each degrades only the tool that raised it; the
// orchestrator records the failure and keeps going.
var (
	// ErrInsufficientData means too few samples for a statistical method.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientOverlap means the paired samples of two series are too
	// sparse for correlation.
	ErrInsufficientOverlap = errors.New("insufficient overlap")

	// ErrUndefinedStatistic marks a degenerate statistic, e.g. correlation
	// against a zero-variance series. It is never coerced to a numeric value.
	ErrUndefinedStatistic = errors.New("statistic undefined")

	// ErrResearchUnavailable means the upstream research service failed.
	ErrResearchUnavailable = errors.New("research unavailable")

	// ErrToolTimeout marks a tool abandoned at its deadline.
	ErrToolTimeout = errors.New("tool timed out")
)

// ErrCrossScope indicates a privacy invariant breach: a query would have
// touched another user's data. Unlike the tool-local errors above it is
// fatal to the whole request.
var ErrCrossScope = errors.New("cross-scope violation")
