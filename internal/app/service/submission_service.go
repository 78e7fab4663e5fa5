package service

import (
	"context"
	"database/sql"
	"strings"

	"examgrade/internal/common"
	"examgrade/internal/domain/model"
	"examgrade/internal/domain/repository"
	"examgrade/internal/platform/runner"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// txRunner scopes a function to one database transaction.
type txRunner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	testRepo       repository.TestRepository
	runner         runner.Client
	tx             txRunner
	logger         *zap.Logger
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	testRepo repository.TestRepository,
	runnerClient runner.Client,
	tx txRunner,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		testRepo:       testRepo,
		runner:         runnerClient,
		tx:             tx,
		logger:         logger,
	}
}

type CreateSubmissionRequest struct {
	QuestionID string `json:"question_id"`
	Language   string `json:"language"`
	Filename   string `json:"filename"`
	Source     string `json:"source"`
	Stdin      string `json:"stdin"`
}

// CreateSubmission persists the submission and dispatches it to the runner
// inline, as one best-effort attempt. A transport failure never surfaces to
// the caller: the submission is parked in a terminal FAILED state and the
// failure is discoverable only by polling.
func (s *SubmissionService) CreateSubmission(ctx context.Context, testID, studentID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if req.QuestionID == "" || req.Language == "" || req.Source == "" {
		return nil, common.Errorf("question_id, language and source are required: %w", common.ErrBadRequest)
	}

	question, err := s.testRepo.FindQuestionByID(ctx, req.QuestionID)
	if err != nil {
		return nil, common.Errorf("question %s not found: %w", req.QuestionID, err)
	}

	submission := &model.Submission{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		TestID:     testID,
		QuestionID: question.ID,
		Language:   req.Language,
		Filename:   req.Filename,
		Source:     req.Source,
		Stdin:      req.Stdin,
		Status:     model.SubmissionStatusPending,
	}

	if err := s.submissionRepo.CreateSubmission(ctx, nil, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	s.dispatch(ctx, submission, question)
	return submission, nil
}

// dispatch sends the execution job to the runner. Expected outputs are
// withheld: the runner reports telemetry only and the callback path decides
// correctness against the stored test cases.
func (s *SubmissionService) dispatch(ctx context.Context, submission *model.Submission, question *model.Question) {
	testCases, err := s.testRepo.GetTestCasesByQuestionID(ctx, question.ID)
	if err != nil {
		s.failSubmission(ctx, submission, "failed to load test cases: "+err.Error())
		return
	}

	job := runner.Job{
		SubmissionID: submission.ID,
		Language:     submission.Language,
		Source:       submission.Source,
		TimeLimitSec: question.TimeLimitSec,
	}
	for _, tc := range testCases {
		job.TestCases = append(job.TestCases, runner.JobTestCase{
			TestCaseID: tc.ID,
			InputData:  tc.InputData,
		})
	}

	if err := s.runner.SendJob(ctx, job); err != nil {
		s.failSubmission(ctx, submission, "Runner error: "+err.Error())
		return
	}
}

func (s *SubmissionService) failSubmission(ctx context.Context, submission *model.Submission, diagnostic string) {
	s.logger.Error("submission dispatch failed",
		zap.String("submission_id", submission.ID),
		zap.String("diagnostic", diagnostic))

	submission.Status = model.SubmissionStatusFailed
	submission.CompileOutput = &diagnostic
	if err := s.submissionRepo.UpdateSubmissionOutcome(ctx, nil, submission.ID, submission.Status, submission.CompileOutput, nil); err != nil {
		s.logger.Error("failed to persist FAILED submission state",
			zap.String("submission_id", submission.ID), zap.Error(err))
	}
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	return s.submissionRepo.GetSubmissionByID(ctx, id)
}

func (s *SubmissionService) GetResultsForSubmission(ctx context.Context, submissionID string) ([]model.SubmissionResult, error) {
	return s.submissionRepo.GetResultsBySubmissionID(ctx, submissionID)
}

// RunnerResult is the callback payload from the runner. The reported score
// is ignored; it is always recomputed from the classified verdicts.
type RunnerResult struct {
	SubmissionID  string             `json:"submissionId"`
	Status        string             `json:"status"`
	CompileOutput *string            `json:"compileOutput"`
	Score         int                `json:"score"`
	Results       []RunnerTestResult `json:"results"`
}

type RunnerTestResult struct {
	TestCaseID string  `json:"testCaseId"`
	Status     string  `json:"status"`
	Stdout     *string `json:"stdout"`
	Stderr     *string `json:"stderr"`
	ExecTimeMs int     `json:"execTimeMs"`
	MemoryKb   int     `json:"memoryKb"`
}

// HandleRunnerCallback reconciles one runner callback inside a single
// transaction: classify every reported test case, persist the result rows,
// and overwrite the submission's status and score. Duplicate callbacks are
// not deduplicated; the last write wins.
func (s *SubmissionService) HandleRunnerCallback(ctx context.Context, dto RunnerResult) error {
	submission, err := s.submissionRepo.GetSubmissionByID(ctx, dto.SubmissionID)
	if err != nil {
		return common.Errorf("submission %s not found: %w", dto.SubmissionID, err)
	}

	ids := mapset.NewSet[string]()
	for _, tr := range dto.Results {
		ids.Add(tr.TestCaseID)
	}
	testCases, err := s.testRepo.FindTestCasesByIDs(ctx, ids.ToSlice())
	if err != nil {
		return common.Errorf("failed to fetch test cases for submission %s: %w", submission.ID, err)
	}
	testCaseMap := make(map[string]model.TestCase, len(testCases))
	for _, tc := range testCases {
		testCaseMap[tc.ID] = tc
	}

	results := classifyResults(dto.Status, dto.Results, testCaseMap, submission.ID)

	// The denominator is the authoritative test case count of the question,
	// not the size of this callback; a partial callback still divides by
	// the full expected total.
	total, err := s.testRepo.CountTestCasesByQuestionID(ctx, submission.QuestionID)
	if err != nil {
		return common.Errorf("failed to count test cases for question %s: %w", submission.QuestionID, err)
	}
	score := percentScore(countAccepted(results), total)

	err = s.tx.RunTx(ctx, func(tx *sql.Tx) error {
		if err := s.submissionRepo.CreateSubmissionResults(ctx, tx, results); err != nil {
			return common.Errorf("failed to store submission results for %s: %w", submission.ID, err)
		}
		if err := s.submissionRepo.UpdateSubmissionOutcome(ctx, tx, submission.ID, dto.Status, dto.CompileOutput, &score); err != nil {
			return common.Errorf("failed to update submission %s: %w", submission.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("runner callback reconciled",
		zap.String("submission_id", submission.ID),
		zap.String("runner_status", dto.Status),
		zap.Int("results", len(results)),
		zap.Int("score", score))
	return nil
}

// classifyResults turns runner telemetry into verdicts. Rows referencing an
// unknown test case id are dropped without error; the rest of the batch is
// unaffected.
func classifyResults(overallStatus string, results []RunnerTestResult, testCases map[string]model.TestCase, submissionID string) []model.SubmissionResult {
	out := make([]model.SubmissionResult, 0, len(results))
	for _, tr := range results {
		tc, ok := testCases[tr.TestCaseID]
		if !ok {
			continue
		}

		execTimeMs := tr.ExecTimeMs
		memoryKb := tr.MemoryKb
		out = append(out, model.SubmissionResult{
			ID:             uuid.NewString(),
			SubmissionID:   submissionID,
			TestCaseID:     tr.TestCaseID,
			Status:         classifyVerdict(overallStatus, tr, tc.ExpectedOutput),
			Stdout:         tr.Stdout,
			Stderr:         tr.Stderr,
			ExecTimeMs:     &execTimeMs,
			MemoryKb:       &memoryKb,
			InputData:      tc.InputData,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}
	return out
}

// classifyVerdict applies the precedence rules: a per-case TLE beats
// everything, then the overall compile/runtime failures apply uniformly,
// and only then is output compared.
func classifyVerdict(overallStatus string, tr RunnerTestResult, expectedOutput string) model.Verdict {
	switch {
	case tr.Status == model.RunnerStatusTLE:
		return model.VerdictTimeLimitExceeded
	case overallStatus == model.RunnerStatusCompileError:
		return model.VerdictCompileError
	case overallStatus == model.RunnerStatusFailed:
		return model.VerdictRuntimeError
	}

	actual := ""
	if tr.Stdout != nil {
		actual = strings.TrimSpace(*tr.Stdout)
	}
	if strings.TrimSpace(expectedOutput) == actual {
		return model.VerdictAccepted
	}
	return model.VerdictWrongAnswer
}

func countAccepted(results []model.SubmissionResult) int {
	passed := 0
	for _, r := range results {
		if r.Status == model.VerdictAccepted {
			passed++
		}
	}
	return passed
}

// percentScore truncates toward zero; 2 of 3 passing is 66, not 67.
func percentScore(passed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(passed) / float64(total) * 100)
}
