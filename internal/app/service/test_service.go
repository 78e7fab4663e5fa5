package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"examgrade/internal/common"
	"examgrade/internal/domain/model"
	"examgrade/internal/domain/repository"
	"examgrade/internal/platform/cache"
	"examgrade/internal/platform/config"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type TestService struct {
	testRepo       repository.TestRepository
	studentRepo    repository.StudentRepository
	submissionRepo repository.SubmissionRepository
	scoreService   *ScoreService
	linkCache      *cache.LinkCache
	tx             txRunner
	logger         *zap.Logger
}

func NewTestService(
	testRepo repository.TestRepository,
	studentRepo repository.StudentRepository,
	submissionRepo repository.SubmissionRepository,
	scoreService *ScoreService,
	linkCache *cache.LinkCache,
	tx txRunner,
	logger *zap.Logger,
) *TestService {
	return &TestService{
		testRepo:       testRepo,
		studentRepo:    studentRepo,
		submissionRepo: submissionRepo,
		scoreService:   scoreService,
		linkCache:      linkCache,
		tx:             tx,
		logger:         logger,
	}
}

type CreateTestRequest struct {
	Title       string                  `json:"title"`
	DurationMin int                     `json:"duration_min"`
	Questions   []CreateQuestionRequest `json:"questions"`
}

type CreateQuestionRequest struct {
	Description   string                  `json:"description"`
	Marks         int                     `json:"marks"`
	MaxInputSize  *int64                  `json:"max_input_size,omitempty"`
	Complexity    *string                 `json:"complexity,omitempty"`
	BaseTimeLimit *float64                `json:"base_time_limit,omitempty"`
	TestCases     []CreateTestCaseRequest `json:"test_cases"`
}

type CreateTestCaseRequest struct {
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	ExampleCase    bool   `json:"example_case"`
}

type CreateTestResponse struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// CreateTest persists a test with its questions and test cases in one
// transaction. Each question's time limit is estimated here, once, and
// frozen; submissions later read the stored value without recomputing.
func (s *TestService) CreateTest(ctx context.Context, teacherID string, req CreateTestRequest) (*CreateTestResponse, error) {
	if req.Title == "" || len(req.Questions) == 0 {
		return nil, common.Errorf("title and at least one question are required: %w", common.ErrBadRequest)
	}
	for _, q := range req.Questions {
		if q.Description == "" || len(q.TestCases) == 0 {
			return nil, common.Errorf("every question needs a description and at least one test case: %w", common.ErrBadRequest)
		}
	}

	test := &model.Test{
		ID:          uuid.NewString(),
		Title:       req.Title,
		DurationMin: req.DurationMin,
		CreatedByID: teacherID,
		Status:      model.TestStatusDraft,
	}

	for i, qReq := range req.Questions {
		baseTimeLimit := qReq.BaseTimeLimit
		if baseTimeLimit == nil {
			def := defaultBaseTimeLimitSec
			baseTimeLimit = &def
		}

		question := model.Question{
			ID:            uuid.NewString(),
			TestID:        test.ID,
			Description:   qReq.Description,
			Marks:         qReq.Marks,
			MaxInputSize:  qReq.MaxInputSize,
			Complexity:    qReq.Complexity,
			BaseTimeLimit: baseTimeLimit,
			TimeLimitSec:  EstimateTimeLimit(qReq.MaxInputSize, qReq.Complexity, baseTimeLimit),
			SortOrder:     i + 1,
		}
		for j, tcReq := range qReq.TestCases {
			question.TestCases = append(question.TestCases, model.TestCase{
				ID:             uuid.NewString(),
				QuestionID:     question.ID,
				InputData:      tcReq.InputData,
				ExpectedOutput: tcReq.ExpectedOutput,
				ExampleCase:    tcReq.ExampleCase,
				SortOrder:      j + 1,
			})
		}
		test.Questions = append(test.Questions, question)
	}

	err := s.tx.RunTx(ctx, func(tx *sql.Tx) error {
		if err := s.testRepo.CreateTest(ctx, tx, test); err != nil {
			return common.Errorf("failed to create test: %w", err)
		}
		if err := s.testRepo.AddQuestions(ctx, tx, test.ID, test.Questions); err != nil {
			return common.Errorf("failed to add questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("test created",
		zap.String("test_id", test.ID),
		zap.Int("questions", len(test.Questions)))
	return &CreateTestResponse{ID: test.ID, Link: "/exam/" + test.ID}, nil
}

// GetTestDetails returns the test with questions and full test cases, for
// the owning teacher.
func (s *TestService) GetTestDetails(ctx context.Context, id string) (*model.Test, error) {
	test, err := s.testRepo.FindTestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadQuestions(ctx, test, true); err != nil {
		return nil, err
	}
	return test, nil
}

func (s *TestService) ListTestsByTeacher(ctx context.Context, teacherID string) ([]model.Test, error) {
	return s.testRepo.ListTestsByTeacher(ctx, teacherID)
}

func (s *TestService) SoftDeleteTest(ctx context.Context, testID string) error {
	return s.testRepo.SoftDeleteTest(ctx, nil, testID)
}

func (s *TestService) StartTest(ctx context.Context, testID string) error {
	return s.testRepo.UpdateTestStatus(ctx, nil, testID, model.TestStatusActive)
}

func (s *TestService) StopTest(ctx context.Context, testID string) error {
	return s.testRepo.UpdateTestStatus(ctx, nil, testID, model.TestStatusStopped)
}

// GenerateTestLink issues a shareable URL token for a test. Tokens are the
// slugified title plus a random suffix, so links stay readable.
func (s *TestService) GenerateTestLink(ctx context.Context, testID string) (string, error) {
	test, err := s.testRepo.FindTestByID(ctx, testID)
	if err != nil {
		return "", err
	}

	token := slug.Make(test.Title) + "-" + uuid.NewString()[:8]
	link := &model.TestLink{
		ID:     uuid.NewString(),
		TestID: test.ID,
		Token:  token,
	}
	if err := s.testRepo.CreateTestLink(ctx, nil, link); err != nil {
		return "", common.Errorf("failed to create test link: %w", err)
	}

	if s.linkCache != nil {
		if err := s.linkCache.SetTestID(ctx, token, test.ID); err != nil {
			s.logger.Warn("failed to cache test link", zap.String("token", token), zap.Error(err))
		}
	}

	return config.AppConfig.PublicBaseURL + "/test/" + token, nil
}

// GetTestByLinkToken resolves a link token for a student. Only active tests
// can be opened, and hidden test cases are returned without their expected
// outputs.
func (s *TestService) GetTestByLinkToken(ctx context.Context, token string) (*model.Test, error) {
	testID, err := s.resolveLinkToken(ctx, token)
	if err != nil {
		return nil, err
	}

	test, err := s.testRepo.FindTestByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test.Status != model.TestStatusActive {
		return nil, common.Errorf("test is not active: %w", common.ErrForbidden)
	}

	if err := s.loadQuestions(ctx, test, false); err != nil {
		return nil, err
	}
	return test, nil
}

func (s *TestService) resolveLinkToken(ctx context.Context, token string) (string, error) {
	if s.linkCache != nil {
		if testID, ok := s.linkCache.GetTestID(ctx, token); ok {
			return testID, nil
		}
	}

	link, err := s.testRepo.FindTestLinkByToken(ctx, token)
	if err != nil {
		return "", common.Errorf("invalid test link %q: %w", token, err)
	}

	if s.linkCache != nil {
		if err := s.linkCache.SetTestID(ctx, token, link.TestID); err != nil {
			s.logger.Warn("failed to cache test link", zap.String("token", token), zap.Error(err))
		}
	}
	return link.TestID, nil
}

func (s *TestService) loadQuestions(ctx context.Context, test *model.Test, includeHiddenOutputs bool) error {
	questions, err := s.testRepo.GetQuestionsByTestID(ctx, test.ID)
	if err != nil {
		return err
	}
	for i := range questions {
		testCases, err := s.testRepo.GetTestCasesByQuestionID(ctx, questions[i].ID)
		if err != nil {
			return err
		}
		if !includeHiddenOutputs {
			for j := range testCases {
				if !testCases[j].ExampleCase {
					testCases[j].ExpectedOutput = ""
				}
			}
		}
		questions[i].TestCases = testCases
	}
	test.Questions = questions
	return nil
}

type StudentInfoRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Batch string `json:"batch"`
}

// RegisterStudent records a test taker against a link token before the test
// starts.
func (s *TestService) RegisterStudent(ctx context.Context, token string, req StudentInfoRequest) (*model.Student, error) {
	if req.Name == "" || req.Email == "" {
		return nil, common.Errorf("name and email are required: %w", common.ErrBadRequest)
	}

	testID, err := s.resolveLinkToken(ctx, token)
	if err != nil {
		return nil, err
	}

	student := &model.Student{
		ID:     uuid.NewString(),
		TestID: testID,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Batch:  req.Batch,
	}
	if err := s.studentRepo.CreateStudent(ctx, nil, student); err != nil {
		return nil, common.Errorf("failed to register student: %w", err)
	}
	return student, nil
}

type FinalSubmitRequest struct {
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Batch             string           `json:"batch"`
	SubmittedAt       *time.Time       `json:"submitted_at,omitempty"`
	QuestionResults   []QuestionResult `json:"question_results"`
	TabSwitchCount    *int             `json:"tab_switch_count,omitempty"`
	CopyPasteAttempts *int             `json:"copy_paste_attempts,omitempty"`
}

// SaveFinalSubmission closes out a student's exam: the client-reported
// question results are aggregated with equal per-question weighting,
// misconduct penalties are deducted, and the student row is upserted by
// (email, test).
func (s *TestService) SaveFinalSubmission(ctx context.Context, token string, req FinalSubmitRequest) (*model.Student, error) {
	if req.Email == "" {
		return nil, common.Errorf("email is required: %w", common.ErrBadRequest)
	}

	testID, err := s.resolveLinkToken(ctx, token)
	if err != nil {
		return nil, err
	}
	totalQuestions, err := s.testRepo.CountQuestionsByTestID(ctx, testID)
	if err != nil {
		return nil, common.Errorf("failed to count questions for test %s: %w", testID, err)
	}

	submittedAt := time.Now()
	if req.SubmittedAt != nil {
		submittedAt = *req.SubmittedAt
	}
	score := s.scoreService.CalculateScoreWithPenalties(req.QuestionResults, totalQuestions, req.TabSwitchCount, req.CopyPasteAttempts)

	student, err := s.studentRepo.FindByEmailAndTestID(ctx, req.Email, testID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to look up student: %w", err)
		}
		student = &model.Student{
			ID:     uuid.NewString(),
			TestID: testID,
			Email:  req.Email,
		}
		student.Name = req.Name
		student.Batch = req.Batch
		student.SubmittedAt = &submittedAt
		student.Score = &score
		student.TabSwitchCount = req.TabSwitchCount
		student.CopyPasteAttempts = req.CopyPasteAttempts
		if err := s.studentRepo.CreateStudent(ctx, nil, student); err != nil {
			return nil, common.Errorf("failed to create student for final submission: %w", err)
		}
		return student, nil
	}

	student.Name = req.Name
	student.Batch = req.Batch
	student.SubmittedAt = &submittedAt
	student.Score = &score
	student.TabSwitchCount = req.TabSwitchCount
	student.CopyPasteAttempts = req.CopyPasteAttempts
	if err := s.studentRepo.UpdateFinalSubmission(ctx, nil, student); err != nil {
		return nil, common.Errorf("failed to save final submission: %w", err)
	}

	s.logger.Info("final submission saved",
		zap.String("test_id", testID),
		zap.String("student_email", req.Email),
		zap.Int("score", score))
	return student, nil
}

// PreviewScoreBreakdown computes the per-question point split for the
// reported results without persisting anything. Penalties are not applied;
// this is the pre-submit view of the raw score.
func (s *TestService) PreviewScoreBreakdown(ctx context.Context, token string, questionResults []QuestionResult) (ScoringBreakdown, error) {
	testID, err := s.resolveLinkToken(ctx, token)
	if err != nil {
		return ScoringBreakdown{}, err
	}
	totalQuestions, err := s.testRepo.CountQuestionsByTestID(ctx, testID)
	if err != nil {
		return ScoringBreakdown{}, common.Errorf("failed to count questions for test %s: %w", testID, err)
	}
	return s.scoreService.DetailedBreakdown(questionResults, totalQuestions), nil
}

func (s *TestService) GetStudentsByTest(ctx context.Context, testID string) ([]model.Student, error) {
	if _, err := s.testRepo.FindTestByID(ctx, testID); err != nil {
		return nil, err
	}
	return s.studentRepo.ListByTestID(ctx, testID)
}

type StudentResult struct {
	StudentID         string                  `json:"student_id"`
	Name              string                  `json:"name"`
	Email             string                  `json:"email"`
	Batch             string                  `json:"batch,omitempty"`
	Status            string                  `json:"status"`
	SubmittedAt       *time.Time              `json:"submitted_at,omitempty"`
	TotalMarks        int                     `json:"total_marks"`
	Score             int                     `json:"score"`
	TabSwitchCount    *int                    `json:"tab_switch_count,omitempty"`
	CopyPasteAttempts *int                    `json:"copy_paste_attempts,omitempty"`
	QuestionResults   []QuestionResultDetails `json:"question_results"`
}

type QuestionResultDetails struct {
	QuestionID      string           `json:"question_id"`
	Description     string           `json:"description"`
	Marks           int              `json:"marks"`
	Correct         bool             `json:"correct"`
	Attempts        int              `json:"attempts"`
	PassedTestCases int              `json:"passed_test_cases"`
	TotalTestCases  int              `json:"total_test_cases"`
	EarnedPoints    float64          `json:"earned_points"`
	SubmittedCode   *string          `json:"submitted_code,omitempty"`
	Language        *string          `json:"language,omitempty"`
	TestCaseResults []TestCaseDetail `json:"test_case_results"`
}

type TestCaseDetail struct {
	Passed         bool    `json:"passed"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	ExecTimeMs     *int    `json:"exec_time_ms,omitempty"`
	Stderr         *string `json:"stderr,omitempty"`
}

// GetTestResults builds the teacher-facing results view: per student, the
// latest submission per question with its stored verdict rows.
func (s *TestService) GetTestResults(ctx context.Context, testID string) ([]StudentResult, error) {
	if _, err := s.testRepo.FindTestByID(ctx, testID); err != nil {
		return nil, err
	}
	questions, err := s.testRepo.GetQuestionsByTestID(ctx, testID)
	if err != nil {
		return nil, err
	}

	totalMarks := 0
	for _, q := range questions {
		totalMarks += q.Marks
	}

	students, err := s.studentRepo.ListByTestID(ctx, testID)
	if err != nil {
		return nil, err
	}

	results := make([]StudentResult, 0, len(students))
	for _, student := range students {
		sr := StudentResult{
			StudentID:         student.ID,
			Name:              student.Name,
			Email:             student.Email,
			Batch:             student.Batch,
			Status:            "Not Attempted",
			SubmittedAt:       student.SubmittedAt,
			TotalMarks:        totalMarks,
			TabSwitchCount:    student.TabSwitchCount,
			CopyPasteAttempts: student.CopyPasteAttempts,
		}
		if student.SubmittedAt != nil {
			sr.Status = "Submitted"
		}
		if student.Score != nil {
			sr.Score = *student.Score
		}

		submissions, err := s.submissionRepo.GetSubmissionsByStudentAndTest(ctx, student.ID, testID)
		if err != nil {
			return nil, err
		}
		sr.QuestionResults, err = s.buildQuestionResults(ctx, submissions, questions)
		if err != nil {
			return nil, err
		}

		results = append(results, sr)
	}

	return results, nil
}

func (s *TestService) buildQuestionResults(ctx context.Context, submissions []model.Submission, questions []model.Question) ([]QuestionResultDetails, error) {
	details := make([]QuestionResultDetails, 0, len(questions))
	pointsPerQuestion := 0.0
	if len(questions) > 0 {
		pointsPerQuestion = 100.0 / float64(len(questions))
	}

	for _, question := range questions {
		qd := QuestionResultDetails{
			QuestionID:      question.ID,
			Description:     question.Description,
			Marks:           question.Marks,
			TestCaseResults: []TestCaseDetail{},
		}

		var questionSubs []model.Submission
		for _, sub := range submissions {
			if sub.QuestionID == question.ID {
				questionSubs = append(questionSubs, sub)
			}
		}

		if len(questionSubs) == 0 {
			totalCases, err := s.testRepo.CountTestCasesByQuestionID(ctx, question.ID)
			if err != nil {
				return nil, err
			}
			qd.TotalTestCases = totalCases
			details = append(details, qd)
			continue
		}

		latest := questionSubs[len(questionSubs)-1]
		qd.Attempts = len(questionSubs)
		qd.SubmittedCode = &latest.Source
		qd.Language = &latest.Language

		rows, err := s.submissionRepo.GetResultsBySubmissionID(ctx, latest.ID)
		if err != nil {
			return nil, err
		}

		passed := 0
		for _, row := range rows {
			detail := TestCaseDetail{
				Passed:         row.Status == model.VerdictAccepted,
				Input:          row.InputData,
				ExpectedOutput: row.ExpectedOutput,
				ExecTimeMs:     row.ExecTimeMs,
				Stderr:         row.Stderr,
			}
			if row.Stdout != nil {
				detail.ActualOutput = *row.Stdout
			}
			if detail.Passed {
				passed++
			}
			qd.TestCaseResults = append(qd.TestCaseResults, detail)
		}

		qd.PassedTestCases = passed
		qd.TotalTestCases = len(rows)
		qd.Correct = passed == len(rows) && len(rows) > 0
		if len(rows) > 0 {
			earned := float64(passed) * pointsPerQuestion / float64(len(rows))
			qd.EarnedPoints = math.Round(earned*100.0) / 100.0
		}

		details = append(details, qd)
	}
	return details, nil
}
