package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"examgrade/internal/common"
	"examgrade/internal/domain/model"
	"examgrade/internal/platform/runner"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTestRepo struct {
	tests     map[string]*model.Test
	questions map[string]*model.Question
	testCases map[string][]model.TestCase
	links     map[string]*model.TestLink
}

func (f *fakeTestRepo) CreateTest(ctx context.Context, tx *sql.Tx, test *model.Test) error {
	if f.tests == nil {
		f.tests = map[string]*model.Test{}
	}
	f.tests[test.ID] = test
	return nil
}
func (f *fakeTestRepo) AddQuestions(ctx context.Context, tx *sql.Tx, testID string, questions []model.Question) error {
	if f.questions == nil {
		f.questions = map[string]*model.Question{}
	}
	for i := range questions {
		q := questions[i]
		f.questions[q.ID] = &q
	}
	return nil
}
func (f *fakeTestRepo) FindTestByID(ctx context.Context, id string) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return t, nil
}
func (f *fakeTestRepo) ListTestsByTeacher(ctx context.Context, teacherID string) ([]model.Test, error) {
	return nil, nil
}
func (f *fakeTestRepo) UpdateTestStatus(ctx context.Context, tx *sql.Tx, testID string, status model.TestStatus) error {
	return nil
}
func (f *fakeTestRepo) SoftDeleteTest(ctx context.Context, tx *sql.Tx, testID string) error {
	return nil
}
func (f *fakeTestRepo) GetQuestionsByTestID(ctx context.Context, testID string) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.TestID == testID {
			out = append(out, *q)
		}
	}
	return out, nil
}
func (f *fakeTestRepo) FindQuestionByID(ctx context.Context, id string) (*model.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return q, nil
}
func (f *fakeTestRepo) CountQuestionsByTestID(ctx context.Context, testID string) (int, error) {
	return len(f.questions), nil
}
func (f *fakeTestRepo) GetTestCasesByQuestionID(ctx context.Context, questionID string) ([]model.TestCase, error) {
	return f.testCases[questionID], nil
}
func (f *fakeTestRepo) CountTestCasesByQuestionID(ctx context.Context, questionID string) (int, error) {
	return len(f.testCases[questionID]), nil
}
func (f *fakeTestRepo) FindTestCasesByIDs(ctx context.Context, ids []string) ([]model.TestCase, error) {
	var out []model.TestCase
	for _, cases := range f.testCases {
		for _, tc := range cases {
			for _, id := range ids {
				if tc.ID == id {
					out = append(out, tc)
				}
			}
		}
	}
	return out, nil
}
func (f *fakeTestRepo) CreateTestLink(ctx context.Context, tx *sql.Tx, link *model.TestLink) error {
	if f.links == nil {
		f.links = map[string]*model.TestLink{}
	}
	f.links[link.Token] = link
	return nil
}
func (f *fakeTestRepo) FindTestLinkByToken(ctx context.Context, token string) (*model.TestLink, error) {
	link, ok := f.links[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return link, nil
}

type outcomeUpdate struct {
	id            string
	status        string
	compileOutput *string
	score         *int
}

type fakeSubmissionRepo struct {
	created      []*model.Submission
	updates      []outcomeUpdate
	savedResults []model.SubmissionResult
}

func (f *fakeSubmissionRepo) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	f.created = append(f.created, sub)
	return nil
}
func (f *fakeSubmissionRepo) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	for _, sub := range f.created {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, common.ErrNotFound
}
func (f *fakeSubmissionRepo) UpdateSubmissionOutcome(ctx context.Context, tx *sql.Tx, id string, status string, compileOutput *string, score *int) error {
	f.updates = append(f.updates, outcomeUpdate{id: id, status: status, compileOutput: compileOutput, score: score})
	return nil
}
func (f *fakeSubmissionRepo) GetSubmissionsByStudentAndTest(ctx context.Context, studentID, testID string) ([]model.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissionRepo) CreateSubmissionResults(ctx context.Context, tx *sql.Tx, results []model.SubmissionResult) error {
	f.savedResults = append(f.savedResults, results...)
	return nil
}
func (f *fakeSubmissionRepo) GetResultsBySubmissionID(ctx context.Context, submissionID string) ([]model.SubmissionResult, error) {
	return nil, nil
}

type stubRunner struct {
	err  error
	jobs []runner.Job
}

func (s *stubRunner) SendJob(ctx context.Context, job runner.Job) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

// fakeTxRunner invokes the work immediately with a nil transaction, which
// the fake repositories accept.
type fakeTxRunner struct{}

func (f *fakeTxRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func newTestSubmissionService(testRepo *fakeTestRepo, subRepo *fakeSubmissionRepo, r runner.Client) *SubmissionService {
	return NewSubmissionService(subRepo, testRepo, r, &fakeTxRunner{}, zap.NewNop())
}

func questionFixture() (*fakeTestRepo, *model.Question) {
	q := &model.Question{ID: "q1", TestID: "t1", TimeLimitSec: 2.5}
	repo := &fakeTestRepo{
		questions: map[string]*model.Question{"q1": q},
		testCases: map[string][]model.TestCase{
			"q1": {
				{ID: "tc1", QuestionID: "q1", InputData: "1 2", ExpectedOutput: "3"},
				{ID: "tc2", QuestionID: "q1", InputData: "4 5", ExpectedOutput: "9"},
			},
		},
	}
	return repo, q
}

func TestCreateSubmission_UnknownQuestion(t *testing.T) {
	testRepo, _ := questionFixture()
	subRepo := &fakeSubmissionRepo{}
	svc := newTestSubmissionService(testRepo, subRepo, &stubRunner{})

	_, err := svc.CreateSubmission(context.Background(), "t1", "s1", CreateSubmissionRequest{
		QuestionID: "missing",
		Language:   "python",
		Source:     "print(1)",
	})

	require.ErrorIs(t, err, common.ErrNotFound)
	require.Empty(t, subRepo.created)
}

func TestCreateSubmission_MissingFields(t *testing.T) {
	testRepo, _ := questionFixture()
	svc := newTestSubmissionService(testRepo, &fakeSubmissionRepo{}, &stubRunner{})

	_, err := svc.CreateSubmission(context.Background(), "t1", "s1", CreateSubmissionRequest{
		QuestionID: "q1",
		Language:   "python",
	})

	require.ErrorIs(t, err, common.ErrBadRequest)
}

func TestCreateSubmission_DispatchWithholdsExpectedOutput(t *testing.T) {
	testRepo, _ := questionFixture()
	subRepo := &fakeSubmissionRepo{}
	stub := &stubRunner{}
	svc := newTestSubmissionService(testRepo, subRepo, stub)

	sub, err := svc.CreateSubmission(context.Background(), "t1", "s1", CreateSubmissionRequest{
		QuestionID: "q1",
		Language:   "python",
		Source:     "print(input())",
	})

	require.NoError(t, err)
	require.Equal(t, model.SubmissionStatusPending, sub.Status)
	require.Len(t, stub.jobs, 1)

	job := stub.jobs[0]
	require.Equal(t, sub.ID, job.SubmissionID)
	require.Equal(t, 2.5, job.TimeLimitSec)
	require.Len(t, job.TestCases, 2)
	require.Equal(t, "tc1", job.TestCases[0].TestCaseID)
	require.Equal(t, "1 2", job.TestCases[0].InputData)
	require.Empty(t, subRepo.updates)
}

func TestCreateSubmission_RunnerFailureParksSubmission(t *testing.T) {
	testRepo, _ := questionFixture()
	subRepo := &fakeSubmissionRepo{}
	stub := &stubRunner{err: errors.New("connection refused")}
	svc := newTestSubmissionService(testRepo, subRepo, stub)

	sub, err := svc.CreateSubmission(context.Background(), "t1", "s1", CreateSubmissionRequest{
		QuestionID: "q1",
		Language:   "python",
		Source:     "print(1)",
	})

	// The caller still gets the submission; the failure is visible only on
	// the stored record.
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, model.SubmissionStatusFailed, sub.Status)

	require.Len(t, subRepo.updates, 1)
	update := subRepo.updates[0]
	require.Equal(t, sub.ID, update.id)
	require.Equal(t, model.SubmissionStatusFailed, update.status)
	require.NotNil(t, update.compileOutput)
	require.Contains(t, *update.compileOutput, "Runner error: connection refused")
	require.Nil(t, update.score)
}

func strResultPtr(s string) *string { return &s }

func TestHandleRunnerCallback_UnknownSubmission(t *testing.T) {
	testRepo, _ := questionFixture()
	subRepo := &fakeSubmissionRepo{}
	svc := newTestSubmissionService(testRepo, subRepo, &stubRunner{})

	err := svc.HandleRunnerCallback(context.Background(), RunnerResult{SubmissionID: "ghost", Status: "OK"})

	require.ErrorIs(t, err, common.ErrNotFound)
	require.Empty(t, subRepo.updates)
	require.Empty(t, subRepo.savedResults)
}

func TestHandleRunnerCallback_OverwritesStatusAndRecomputesScore(t *testing.T) {
	testRepo, _ := questionFixture()
	subRepo := &fakeSubmissionRepo{}
	svc := newTestSubmissionService(testRepo, subRepo, &stubRunner{})

	sub, err := svc.CreateSubmission(context.Background(), "t1", "s1", CreateSubmissionRequest{
		QuestionID: "q1",
		Language:   "python",
		Source:     "print(input())",
	})
	require.NoError(t, err)

	compileOut := "warning: unused variable"
	dto := RunnerResult{
		SubmissionID:  sub.ID,
		Status:        "DONE_WITH_NOTES",
		CompileOutput: &compileOut,
		Score:         999, // reported score must be ignored
		Results: []RunnerTestResult{
			{TestCaseID: "tc1", Status: "OK", Stdout: strResultPtr("3")},
			{TestCaseID: "tc2", Status: "OK", Stdout: strResultPtr("wrong")},
		},
	}
	require.NoError(t, svc.HandleRunnerCallback(context.Background(), dto))

	require.Len(t, subRepo.savedResults, 2)
	require.Equal(t, model.VerdictAccepted, subRepo.savedResults[0].Status)
	require.Equal(t, model.VerdictWrongAnswer, subRepo.savedResults[1].Status)

	require.Len(t, subRepo.updates, 1)
	update := subRepo.updates[0]
	require.Equal(t, sub.ID, update.id)
	// The runner's overall status is stored verbatim, not normalized.
	require.Equal(t, "DONE_WITH_NOTES", update.status)
	require.NotNil(t, update.compileOutput)
	require.Equal(t, compileOut, *update.compileOutput)
	// 1 of 2 accepted; the reported 999 never reaches storage.
	require.NotNil(t, update.score)
	require.Equal(t, 50, *update.score)
}

func TestHandleRunnerCallback_DuplicateLastWriteWins(t *testing.T) {
	testRepo, _ := questionFixture()
	subRepo := &fakeSubmissionRepo{}
	svc := newTestSubmissionService(testRepo, subRepo, &stubRunner{})

	sub, err := svc.CreateSubmission(context.Background(), "t1", "s1", CreateSubmissionRequest{
		QuestionID: "q1",
		Language:   "python",
		Source:     "print(1)",
	})
	require.NoError(t, err)

	first := RunnerResult{
		SubmissionID: sub.ID,
		Status:       "FINISHED",
		Results: []RunnerTestResult{
			{TestCaseID: "tc1", Status: "OK", Stdout: strResultPtr("wrong")},
			{TestCaseID: "tc2", Status: "OK", Stdout: strResultPtr("wrong")},
		},
	}
	require.NoError(t, svc.HandleRunnerCallback(context.Background(), first))

	second := RunnerResult{
		SubmissionID: sub.ID,
		Status:       "FINISHED",
		Results: []RunnerTestResult{
			{TestCaseID: "tc1", Status: "OK", Stdout: strResultPtr("3")},
			{TestCaseID: "tc2", Status: "OK", Stdout: strResultPtr("9")},
		},
	}
	require.NoError(t, svc.HandleRunnerCallback(context.Background(), second))

	require.Len(t, subRepo.updates, 2)
	require.Equal(t, 0, *subRepo.updates[0].score)
	require.Equal(t, 100, *subRepo.updates[1].score)
}

func TestClassifyVerdict_Precedence(t *testing.T) {
	cases := []struct {
		name          string
		overallStatus string
		result        RunnerTestResult
		expected      string
		want          model.Verdict
	}{
		{
			name:          "per-case TLE beats matching output",
			overallStatus: "OK",
			result:        RunnerTestResult{Status: model.RunnerStatusTLE, Stdout: strResultPtr("42")},
			expected:      "42",
			want:          model.VerdictTimeLimitExceeded,
		},
		{
			name:          "compile error applies regardless of output",
			overallStatus: model.RunnerStatusCompileError,
			result:        RunnerTestResult{Status: "OK", Stdout: strResultPtr("42")},
			expected:      "42",
			want:          model.VerdictCompileError,
		},
		{
			name:          "overall failure becomes runtime error",
			overallStatus: model.RunnerStatusFailed,
			result:        RunnerTestResult{Status: "OK", Stdout: strResultPtr("42")},
			expected:      "42",
			want:          model.VerdictRuntimeError,
		},
		{
			name:          "trailing whitespace still accepted",
			overallStatus: "OK",
			result:        RunnerTestResult{Status: "OK", Stdout: strResultPtr("hello\n")},
			expected:      " hello ",
			want:          model.VerdictAccepted,
		},
		{
			name:          "comparison is case sensitive",
			overallStatus: "OK",
			result:        RunnerTestResult{Status: "OK", Stdout: strResultPtr("Hello")},
			expected:      "hello",
			want:          model.VerdictWrongAnswer,
		},
		{
			name:          "missing stdout is a wrong answer",
			overallStatus: "OK",
			result:        RunnerTestResult{Status: "OK"},
			expected:      "hello",
			want:          model.VerdictWrongAnswer,
		},
		{
			name:          "missing stdout matches empty expectation",
			overallStatus: "OK",
			result:        RunnerTestResult{Status: "OK"},
			expected:      "",
			want:          model.VerdictAccepted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyVerdict(tc.overallStatus, tc.result, tc.expected)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyResults_DropsUnknownTestCases(t *testing.T) {
	testCases := map[string]model.TestCase{
		"tc1": {ID: "tc1", InputData: "1", ExpectedOutput: "1"},
	}
	results := []RunnerTestResult{
		{TestCaseID: "tc1", Status: "OK", Stdout: strResultPtr("1")},
		{TestCaseID: "ghost", Status: "OK", Stdout: strResultPtr("1")},
	}

	out := classifyResults("OK", results, testCases, "sub1")

	require.Len(t, out, 1)
	require.Equal(t, "tc1", out[0].TestCaseID)
	require.Equal(t, model.VerdictAccepted, out[0].Status)
	require.Equal(t, "1", out[0].InputData)
	require.Equal(t, "1", out[0].ExpectedOutput)
}

func TestPercentScore_TruncatesTowardZero(t *testing.T) {
	require.Equal(t, 66, percentScore(2, 3))
	require.Equal(t, 100, percentScore(3, 3))
	require.Equal(t, 0, percentScore(0, 3))
	require.Equal(t, 0, percentScore(1, 0))
}

func TestCountAccepted(t *testing.T) {
	results := []model.SubmissionResult{
		{Status: model.VerdictAccepted},
		{Status: model.VerdictWrongAnswer},
		{Status: model.VerdictAccepted},
		{Status: model.VerdictTimeLimitExceeded},
	}
	require.Equal(t, 2, countAccepted(results))
}
