package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"examgrade/internal/common"
	"examgrade/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// TestRepository owns tests and, through them, questions, test cases and
// shareable links. Navigation is always downward: test -> questions ->
// test cases; back references are id lookups.
type TestRepository interface {
	CreateTest(ctx context.Context, tx *sql.Tx, test *model.Test) error
	AddQuestions(ctx context.Context, tx *sql.Tx, testID string, questions []model.Question) error
	FindTestByID(ctx context.Context, id string) (*model.Test, error)
	ListTestsByTeacher(ctx context.Context, teacherID string) ([]model.Test, error)
	UpdateTestStatus(ctx context.Context, tx *sql.Tx, testID string, status model.TestStatus) error
	SoftDeleteTest(ctx context.Context, tx *sql.Tx, testID string) error

	GetQuestionsByTestID(ctx context.Context, testID string) ([]model.Question, error)
	FindQuestionByID(ctx context.Context, id string) (*model.Question, error)
	CountQuestionsByTestID(ctx context.Context, testID string) (int, error)

	GetTestCasesByQuestionID(ctx context.Context, questionID string) ([]model.TestCase, error)
	CountTestCasesByQuestionID(ctx context.Context, questionID string) (int, error)
	FindTestCasesByIDs(ctx context.Context, ids []string) ([]model.TestCase, error)

	CreateTestLink(ctx context.Context, tx *sql.Tx, link *model.TestLink) error
	FindTestLinkByToken(ctx context.Context, token string) (*model.TestLink, error)
}

type pgTestRepository struct {
	db *sql.DB
}

func NewPgTestRepository(db *sql.DB) TestRepository {
	return &pgTestRepository{db: db}
}

func (r *pgTestRepository) CreateTest(ctx context.Context, tx *sql.Tx, t *model.Test) error {
	query := `INSERT INTO tests (id, title, duration_min, created_by, status, deleted)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, t.ID, t.Title, t.DurationMin, t.CreatedByID, t.Status, t.Deleted)
	} else {
		_, err = r.db.ExecContext(ctx, query, t.ID, t.Title, t.DurationMin, t.CreatedByID, t.Status, t.Deleted)
	}
	if err != nil {
		return fmt.Errorf("pgTestRepository.CreateTest: %w", err)
	}
	return nil
}

func (r *pgTestRepository) AddQuestions(ctx context.Context, tx *sql.Tx, testID string, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}

	qStmt, err := tx.PrepareContext(ctx, `INSERT INTO questions
	    (id, test_id, description, marks, max_input_size, complexity, base_time_limit, time_limit_sec, sort_order)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("pgTestRepository.AddQuestions prepare questions: %w", err)
	}
	defer qStmt.Close()

	tcStmt, err := tx.PrepareContext(ctx, `INSERT INTO test_cases
	    (id, question_id, input_data, expected_output, example_case, sort_order)
	    VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("pgTestRepository.AddQuestions prepare test cases: %w", err)
	}
	defer tcStmt.Close()

	for i, q := range questions {
		q.SortOrder = i + 1
		_, err := qStmt.ExecContext(ctx, q.ID, testID, q.Description, q.Marks,
			q.MaxInputSize, q.Complexity, q.BaseTimeLimit, q.TimeLimitSec, q.SortOrder)
		if err != nil {
			return fmt.Errorf("pgTestRepository.AddQuestions exec for question %s: %w", q.ID, err)
		}
		for j, tc := range q.TestCases {
			tc.SortOrder = j + 1
			_, err := tcStmt.ExecContext(ctx, tc.ID, q.ID, tc.InputData, tc.ExpectedOutput, tc.ExampleCase, tc.SortOrder)
			if err != nil {
				return fmt.Errorf("pgTestRepository.AddQuestions exec for test case %s: %w", tc.ID, err)
			}
		}
	}
	return nil
}

func (r *pgTestRepository) FindTestByID(ctx context.Context, id string) (*model.Test, error) {
	query := `SELECT id, title, duration_min, created_by, status, deleted, created_at, updated_at
	          FROM tests WHERE id = $1 AND deleted = FALSE`

	test := &model.Test{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&test.ID, &test.Title, &test.DurationMin, &test.CreatedByID,
		&test.Status, &test.Deleted, &test.CreatedAt, &test.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindTestByID: %w", err)
	}
	return test, nil
}

func (r *pgTestRepository) ListTestsByTeacher(ctx context.Context, teacherID string) ([]model.Test, error) {
	query := `SELECT id, title, duration_min, created_by, status, deleted, created_at, updated_at
	          FROM tests WHERE created_by = $1 AND deleted = FALSE ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestsByTeacher query: %w", err)
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.DurationMin, &t.CreatedByID,
			&t.Status, &t.Deleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListTestsByTeacher scan: %w", err)
		}
		tests = append(tests, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestsByTeacher rows.Err: %w", err)
	}
	return tests, nil
}

func (r *pgTestRepository) UpdateTestStatus(ctx context.Context, tx *sql.Tx, testID string, status model.TestStatus) error {
	query := `UPDATE tests SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND deleted = FALSE`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, status, testID)
	} else {
		res, err = r.db.ExecContext(ctx, query, status, testID)
	}
	if err != nil {
		return fmt.Errorf("pgTestRepository.UpdateTestStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTestRepository) SoftDeleteTest(ctx context.Context, tx *sql.Tx, testID string) error {
	query := `UPDATE tests SET deleted = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, testID)
	} else {
		res, err = r.db.ExecContext(ctx, query, testID)
	}
	if err != nil {
		return fmt.Errorf("pgTestRepository.SoftDeleteTest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTestRepository) GetQuestionsByTestID(ctx context.Context, testID string) ([]model.Question, error) {
	query := `SELECT id, test_id, description, marks, max_input_size, complexity, base_time_limit, time_limit_sec, sort_order
	          FROM questions WHERE test_id = $1 ORDER BY sort_order ASC`

	rows, err := r.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.GetQuestionsByTestID query: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.Description, &q.Marks,
			&q.MaxInputSize, &q.Complexity, &q.BaseTimeLimit, &q.TimeLimitSec, &q.SortOrder); err != nil {
			return nil, fmt.Errorf("pgTestRepository.GetQuestionsByTestID scan: %w", err)
		}
		questions = append(questions, q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.GetQuestionsByTestID rows.Err: %w", err)
	}
	return questions, nil
}

func (r *pgTestRepository) FindQuestionByID(ctx context.Context, id string) (*model.Question, error) {
	query := `SELECT id, test_id, description, marks, max_input_size, complexity, base_time_limit, time_limit_sec, sort_order
	          FROM questions WHERE id = $1`

	q := &model.Question{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.TestID, &q.Description, &q.Marks,
		&q.MaxInputSize, &q.Complexity, &q.BaseTimeLimit, &q.TimeLimitSec, &q.SortOrder,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindQuestionByID: %w", err)
	}
	return q, nil
}

func (r *pgTestRepository) CountQuestionsByTestID(ctx context.Context, testID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE test_id = $1`, testID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgTestRepository.CountQuestionsByTestID: %w", err)
	}
	return count, nil
}

func (r *pgTestRepository) GetTestCasesByQuestionID(ctx context.Context, questionID string) ([]model.TestCase, error) {
	query := `SELECT id, question_id, input_data, expected_output, example_case, sort_order
	          FROM test_cases WHERE question_id = $1 ORDER BY sort_order ASC`

	rows, err := r.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.GetTestCasesByQuestionID query: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.QuestionID, &tc.InputData, &tc.ExpectedOutput, &tc.ExampleCase, &tc.SortOrder); err != nil {
			return nil, fmt.Errorf("pgTestRepository.GetTestCasesByQuestionID scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.GetTestCasesByQuestionID rows.Err: %w", err)
	}
	return testCases, nil
}

func (r *pgTestRepository) CountTestCasesByQuestionID(ctx context.Context, questionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_cases WHERE question_id = $1`, questionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgTestRepository.CountTestCasesByQuestionID: %w", err)
	}
	return count, nil
}

func (r *pgTestRepository) FindTestCasesByIDs(ctx context.Context, ids []string) ([]model.TestCase, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id, question_id, input_data, expected_output, example_case, sort_order
	          FROM test_cases WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.FindTestCasesByIDs query: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.QuestionID, &tc.InputData, &tc.ExpectedOutput, &tc.ExampleCase, &tc.SortOrder); err != nil {
			return nil, fmt.Errorf("pgTestRepository.FindTestCasesByIDs scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.FindTestCasesByIDs rows.Err: %w", err)
	}
	return testCases, nil
}

func (r *pgTestRepository) CreateTestLink(ctx context.Context, tx *sql.Tx, link *model.TestLink) error {
	query := `INSERT INTO test_links (id, test_id, link_token) VALUES ($1, $2, $3)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, link.ID, link.TestID, link.Token)
	} else {
		_, err = r.db.ExecContext(ctx, query, link.ID, link.TestID, link.Token)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for token
			return fmt.Errorf("test link token already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTestRepository.CreateTestLink: %w", err)
	}
	return nil
}

func (r *pgTestRepository) FindTestLinkByToken(ctx context.Context, token string) (*model.TestLink, error) {
	query := `SELECT id, test_id, link_token, created_at FROM test_links WHERE link_token = $1`

	link := &model.TestLink{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(&link.ID, &link.TestID, &link.Token, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindTestLinkByToken: %w", err)
	}
	return link, nil
}
