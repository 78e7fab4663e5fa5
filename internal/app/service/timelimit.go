package service

import (
	"math"

	"examgrade/internal/domain/model"
)

const (
	// Fallback when the question gives no sizing information.
	defaultTimeLimitSec = 2.0
	// Fallback for an absent base limit.
	defaultBaseTimeLimitSec = 1.0

	// Reference machine: ~100M simple operations per second.
	opsPerSecond = 1e8
	// Headroom over the straight-line estimate.
	safetyFactor = 1.5
)

// EstimateTimeLimit derives the execution time budget for a question from
// its expected input size, complexity class and base time limit. It runs
// once at authoring time; the result is frozen onto the question and never
// recomputed at submission time.
func EstimateTimeLimit(maxInputSize *int64, complexity *string, baseTimeLimit *float64) float64 {
	if maxInputSize == nil || *maxInputSize <= 0 || complexity == nil || baseTimeLimit == nil {
		return defaultTimeLimitSec
	}

	n := float64(*maxInputSize)
	var ops float64
	switch *complexity {
	case model.ComplexityLinear:
		ops = n
	case model.ComplexityLogLinear:
		ops = n * math.Log2(n)
	case model.ComplexityQuadratic:
		ops = n * n
	case model.ComplexityCubic:
		ops = n * n * n
	default:
		// Unrecognized classes degrade to linear rather than erroring.
		ops = n
	}

	recommended := ops / opsPerSecond
	return math.Max(*baseTimeLimit, safetyFactor*recommended)
}
