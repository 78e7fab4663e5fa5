package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func passedOutcomes(n int) []TestCaseOutcome {
	out := make([]TestCaseOutcome, n)
	for i := range out {
		out[i] = TestCaseOutcome{Status: "passed"}
	}
	return out
}

func failedOutcomes(n int) []TestCaseOutcome {
	out := make([]TestCaseOutcome, n)
	for i := range out {
		out[i] = TestCaseOutcome{Status: "failed"}
	}
	return out
}

func TestCalculateScore_EqualWeightPerQuestion(t *testing.T) {
	s := NewScoreService()

	results := []QuestionResult{
		{QuestionID: "q1", Results: passedOutcomes(2)},
		{QuestionID: "q2", Results: append(passedOutcomes(1), failedOutcomes(1)...)},
	}

	// q1 earns 50, q2 earns 25.
	require.Equal(t, 75, s.CalculateScore(results, 2))
}

func TestCalculateScore_RoundsToNearest(t *testing.T) {
	s := NewScoreService()

	results := []QuestionResult{
		{QuestionID: "q1", Results: append(passedOutcomes(2), failedOutcomes(1)...)},
	}

	// 2/3 of 100 is 66.67, which rounds to 67.
	require.Equal(t, 67, s.CalculateScore(results, 1))
}

func TestCalculateScore_EmptyInputs(t *testing.T) {
	s := NewScoreService()

	require.Equal(t, 0, s.CalculateScore(nil, 3))
	require.Equal(t, 0, s.CalculateScore([]QuestionResult{{QuestionID: "q1", Results: passedOutcomes(1)}}, 0))
}

func TestCalculateScore_QuestionWithoutResultsEarnsNothing(t *testing.T) {
	s := NewScoreService()

	results := []QuestionResult{
		{QuestionID: "q1", Results: passedOutcomes(1)},
		{QuestionID: "q2"},
	}

	require.Equal(t, 50, s.CalculateScore(results, 2))
}

func TestCalculateScore_StatusIsCaseInsensitive(t *testing.T) {
	s := NewScoreService()

	results := []QuestionResult{
		{QuestionID: "q1", Results: []TestCaseOutcome{{Status: "Passed"}, {Status: "PASSED"}}},
	}

	require.Equal(t, 100, s.CalculateScore(results, 1))
}

func TestCalculateScoreWithPenalties_Caps(t *testing.T) {
	s := NewScoreService()
	allPassed := []QuestionResult{{QuestionID: "q1", Results: passedOutcomes(4)}}

	tabSwitches := 6 // 12 points uncapped, capped at 10
	copyPastes := 8  // capped at 5
	score := s.CalculateScoreWithPenalties(allPassed, 1, &tabSwitches, &copyPastes)
	require.Equal(t, 85, score)
}

func TestCalculateScoreWithPenalties_NeverNegative(t *testing.T) {
	s := NewScoreService()
	lowScore := []QuestionResult{
		{QuestionID: "q1", Results: append(passedOutcomes(1), failedOutcomes(9)...)},
	}

	tabSwitches := 5
	copyPastes := 5
	score := s.CalculateScoreWithPenalties(lowScore, 1, &tabSwitches, &copyPastes)
	require.Equal(t, 0, score)
}

func TestCalculateScoreWithPenalties_NilCountsMeanNoPenalty(t *testing.T) {
	s := NewScoreService()
	allPassed := []QuestionResult{{QuestionID: "q1", Results: passedOutcomes(2)}}

	require.Equal(t, 100, s.CalculateScoreWithPenalties(allPassed, 1, nil, nil))
}

func TestDetailedBreakdown_MatchesCalculateScore(t *testing.T) {
	s := NewScoreService()

	results := []QuestionResult{
		{QuestionID: "q1", Results: passedOutcomes(3)},
		{QuestionID: "q2", Results: append(passedOutcomes(1), failedOutcomes(2)...)},
		{QuestionID: "q3"},
	}

	breakdown := s.DetailedBreakdown(results, 3)
	require.Len(t, breakdown.QuestionScores, 3)

	q1 := breakdown.QuestionScores[0]
	require.Equal(t, 1, q1.QuestionNumber)
	require.InDelta(t, 100.0/3.0, q1.MaxPoints, 1e-9)
	require.InDelta(t, 100.0/3.0, q1.EarnedPoints, 1e-9)
	require.Equal(t, 3, q1.PassedTestCases)

	q2 := breakdown.QuestionScores[1]
	require.InDelta(t, 100.0/9.0, q2.EarnedPoints, 1e-9)
	require.Equal(t, 1, q2.PassedTestCases)
	require.Equal(t, 3, q2.TotalTestCases)

	q3 := breakdown.QuestionScores[2]
	require.Zero(t, q3.EarnedPoints)
	require.Zero(t, q3.TotalTestCases)

	// 33.33 + 11.11 = 44.44 at 2-decimal precision.
	require.InDelta(t, 44.44, breakdown.TotalScore, 0.005)
}

func TestDetailedBreakdown_EmptyInputs(t *testing.T) {
	s := NewScoreService()

	breakdown := s.DetailedBreakdown(nil, 2)
	require.Empty(t, breakdown.QuestionScores)
	require.Zero(t, breakdown.TotalScore)
}
