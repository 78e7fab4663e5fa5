package model

import "time"

// Verdict is the backend-assigned classification of a single test case
// outcome. The runner never decides correctness; it only reports telemetry.
type Verdict string

const (
	VerdictAccepted          Verdict = "AC"
	VerdictWrongAnswer       Verdict = "WA"
	VerdictTimeLimitExceeded Verdict = "TLE"
	VerdictCompileError      Verdict = "CE"
	VerdictRuntimeError      Verdict = "RTE"
)

// Submission status is free-form: PENDING at creation, FAILED on dispatch
// error, otherwise whatever overall status the runner reported on callback.
const (
	SubmissionStatusPending = "PENDING"
	SubmissionStatusFailed  = "FAILED"
)

// Overall-status sentinels the classifier recognizes in runner callbacks.
// Any other overall value is treated as normal completion.
const (
	RunnerStatusCompileError = "COMPILE_ERROR"
	RunnerStatusFailed       = "FAILED"
	RunnerStatusTLE          = "TLE"
)

type Submission struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	TestID        string    `json:"test_id"`
	QuestionID    string    `json:"question_id"`
	Language      string    `json:"language"`
	Filename      string    `json:"filename,omitempty"`
	Source        string    `json:"source"`
	Stdin         string    `json:"stdin,omitempty"`
	Status        string    `json:"status"`
	CompileOutput *string   `json:"compile_output,omitempty"`
	Score         *int      `json:"score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SubmissionResult is one row per test case per submission, created only
// during callback reconciliation and never updated afterwards. Input and
// expected output are denormalized for display.
type SubmissionResult struct {
	ID             string    `json:"id"`
	SubmissionID   string    `json:"submission_id"`
	TestCaseID     string    `json:"test_case_id"`
	Status         Verdict   `json:"status"`
	Stdout         *string   `json:"stdout,omitempty"`
	Stderr         *string   `json:"stderr,omitempty"`
	ExecTimeMs     *int      `json:"exec_time_ms,omitempty"`
	MemoryKb       *int      `json:"memory_kb,omitempty"`
	InputData      string    `json:"input_data"`
	ExpectedOutput string    `json:"expected_output"`
	CreatedAt      time.Time `json:"created_at"`
}
