package model

import "time"

// Student is a test taker identified by a test link; students have no
// account, they register name/email against the link before starting.
type Student struct {
	ID                string     `json:"id"`
	TestID            string     `json:"test_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone,omitempty"`
	Batch             string     `json:"batch,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	Score             *int       `json:"score,omitempty"`
	TabSwitchCount    *int       `json:"tab_switch_count,omitempty"`
	CopyPasteAttempts *int       `json:"copy_paste_attempts,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
