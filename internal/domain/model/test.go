package model

import "time"

type TestStatus string

const (
	TestStatusDraft   TestStatus = "draft"
	TestStatusActive  TestStatus = "active"
	TestStatusStopped TestStatus = "stopped"
)

// Complexity classes recognized by the time limit estimator. Anything else
// is treated as linear.
const (
	ComplexityLinear    = "O(N)"
	ComplexityLogLinear = "O(NlogN)"
	ComplexityQuadratic = "O(N^2)"
	ComplexityCubic     = "O(N^3)"
)

type Test struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	DurationMin int        `json:"duration_min"`
	CreatedByID string     `json:"created_by_id"`
	Status      TestStatus `json:"status"`
	Deleted     bool       `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `json:"questions,omitempty"`
}

type Question struct {
	ID          string `json:"id"`
	TestID      string `json:"test_id"`
	Description string `json:"description"`
	Marks       int    `json:"marks"`

	// Inputs to the time limit estimation, kept for display/auditing.
	MaxInputSize  *int64   `json:"max_input_size,omitempty"`
	Complexity    *string  `json:"complexity,omitempty"`
	BaseTimeLimit *float64 `json:"base_time_limit,omitempty"`

	// Computed once at authoring time, immutable afterwards.
	TimeLimitSec float64 `json:"time_limit_sec"`

	SortOrder int        `json:"sort_order"`
	TestCases []TestCase `json:"test_cases,omitempty"`
}

type TestCase struct {
	ID             string `json:"id"`
	QuestionID     string `json:"question_id"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	ExampleCase    bool   `json:"example_case"`
	SortOrder      int    `json:"sort_order"`
}

// TestLink is a shareable token students use to open a test without an
// account.
type TestLink struct {
	ID        string    `json:"id"`
	TestID    string    `json:"test_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
