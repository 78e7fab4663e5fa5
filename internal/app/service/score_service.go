package service

import (
	"math"
	"strings"
)

// ScoreService aggregates the client-reported results of a final test
// submission into an exam-level score. It trusts the client payload and
// never reads stored submission results; the server-verdict score on each
// submission is computed independently in SubmissionService.
type ScoreService struct{}

func NewScoreService() *ScoreService {
	return &ScoreService{}
}

// QuestionResult is the client-reported outcome of one question.
type QuestionResult struct {
	QuestionID string            `json:"question_id"`
	Results    []TestCaseOutcome `json:"results"`
}

// TestCaseOutcome is a single client-reported test case run. Status
// "passed" (case-insensitive) counts as a pass; anything else fails.
type TestCaseOutcome struct {
	Status         string `json:"status"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	ActualOutput   string `json:"actual_output,omitempty"`
}

type ScoringBreakdown struct {
	QuestionScores []QuestionScore `json:"question_scores"`
	TotalScore     float64         `json:"total_score"`
}

type QuestionScore struct {
	QuestionNumber  int     `json:"question_number"`
	QuestionID      string  `json:"question_id"`
	MaxPoints       float64 `json:"max_points"`
	EarnedPoints    float64 `json:"earned_points"`
	PassedTestCases int     `json:"passed_test_cases"`
	TotalTestCases  int     `json:"total_test_cases"`
}

// CalculateScore distributes 100 points equally across all questions of the
// test, regardless of each question's marks weight, and within a question
// equally across its reported test cases. Questions with no reported test
// cases earn nothing and do not shift weight to the others.
func (s *ScoreService) CalculateScore(questionResults []QuestionResult, totalQuestions int) int {
	if len(questionResults) == 0 || totalQuestions == 0 {
		return 0
	}

	pointsPerQuestion := 100.0 / float64(totalQuestions)
	totalScore := 0.0

	for _, q := range questionResults {
		if len(q.Results) == 0 {
			continue
		}
		pointsPerTestCase := pointsPerQuestion / float64(len(q.Results))
		totalScore += float64(countPassed(q.Results)) * pointsPerTestCase
	}

	return int(math.Round(totalScore))
}

// CalculateScoreWithPenalties applies the misconduct deductions on top of
// the base score: 2 points per tab switch capped at 10, 1 point per
// copy-paste attempt capped at 5, never below zero overall.
func (s *ScoreService) CalculateScoreWithPenalties(questionResults []QuestionResult, totalQuestions int, tabSwitchCount, copyPasteAttempts *int) int {
	baseScore := s.CalculateScore(questionResults, totalQuestions)

	tabSwitchPenalty := 0
	if tabSwitchCount != nil {
		tabSwitchPenalty = min(*tabSwitchCount*2, 10)
	}
	copyPastePenalty := 0
	if copyPasteAttempts != nil {
		copyPastePenalty = min(*copyPasteAttempts*1, 5)
	}

	return max(0, baseScore-tabSwitchPenalty-copyPastePenalty)
}

// DetailedBreakdown reports the same per-question earned points as
// CalculateScore but keeps the total at 2-decimal precision for display.
func (s *ScoreService) DetailedBreakdown(questionResults []QuestionResult, totalQuestions int) ScoringBreakdown {
	breakdown := ScoringBreakdown{QuestionScores: []QuestionScore{}}
	if len(questionResults) == 0 || totalQuestions == 0 {
		return breakdown
	}

	pointsPerQuestion := 100.0 / float64(totalQuestions)

	for i, q := range questionResults {
		qScore := QuestionScore{
			QuestionNumber: i + 1,
			QuestionID:     q.QuestionID,
			MaxPoints:      pointsPerQuestion,
		}
		if len(q.Results) > 0 {
			passed := countPassed(q.Results)
			qScore.PassedTestCases = passed
			qScore.TotalTestCases = len(q.Results)
			qScore.EarnedPoints = float64(passed) * pointsPerQuestion / float64(len(q.Results))
		}
		breakdown.QuestionScores = append(breakdown.QuestionScores, qScore)
		breakdown.TotalScore += qScore.EarnedPoints
	}

	breakdown.TotalScore = math.Round(breakdown.TotalScore*100.0) / 100.0
	return breakdown
}

func countPassed(outcomes []TestCaseOutcome) int {
	passed := 0
	for _, tc := range outcomes {
		if strings.EqualFold(tc.Status, "passed") {
			passed++
		}
	}
	return passed
}
