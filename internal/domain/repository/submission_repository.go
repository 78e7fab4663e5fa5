package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"examgrade/internal/common"
	"examgrade/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// UpdateSubmissionOutcome overwrites status, compile output and score.
	// Status is stored verbatim; it is not normalized to the verdict set.
	UpdateSubmissionOutcome(ctx context.Context, tx *sql.Tx, id string, status string, compileOutput *string, score *int) error
	GetSubmissionsByStudentAndTest(ctx context.Context, studentID, testID string) ([]model.Submission, error)

	CreateSubmissionResults(ctx context.Context, tx *sql.Tx, results []model.SubmissionResult) error
	GetResultsBySubmissionID(ctx context.Context, submissionID string) ([]model.SubmissionResult, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `INSERT INTO submissions (id, student_id, test_id, question_id, language, filename, source, stdin, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, s.ID, s.StudentID, s.TestID, s.QuestionID,
			s.Language, s.Filename, s.Source, s.Stdin, s.Status)
	} else {
		_, err = r.db.ExecContext(ctx, query, s.ID, s.StudentID, s.TestID, s.QuestionID,
			s.Language, s.Filename, s.Source, s.Stdin, s.Status)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT id, student_id, test_id, question_id, language, filename, source, stdin,
	                 status, compile_output, score, created_at, updated_at
	          FROM submissions WHERE id = $1`

	s := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.StudentID, &s.TestID, &s.QuestionID, &s.Language, &s.Filename, &s.Source, &s.Stdin,
		&s.Status, &s.CompileOutput, &s.Score, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) UpdateSubmissionOutcome(ctx context.Context, tx *sql.Tx, id string, status string, compileOutput *string, score *int) error {
	query := `UPDATE submissions SET status = $1, compile_output = $2, score = $3, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $4`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, status, compileOutput, score, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, status, compileOutput, score, id)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateSubmissionOutcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionsByStudentAndTest(ctx context.Context, studentID, testID string) ([]model.Submission, error) {
	query := `SELECT id, student_id, test_id, question_id, language, filename, source, stdin,
	                 status, compile_output, score, created_at, updated_at
	          FROM submissions WHERE student_id = $1 AND test_id = $2 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionsByStudentAndTest query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.StudentID, &s.TestID, &s.QuestionID, &s.Language, &s.Filename,
			&s.Source, &s.Stdin, &s.Status, &s.CompileOutput, &s.Score, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionsByStudentAndTest scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionsByStudentAndTest rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) CreateSubmissionResults(ctx context.Context, tx *sql.Tx, results []model.SubmissionResult) error {
	if len(results) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO submission_results
	    (id, submission_id, test_case_id, status, stdout, stderr, exec_time_ms, memory_kb, input_data, expected_output)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmissionResults prepare: %w", err)
	}
	defer stmt.Close()

	for _, sr := range results {
		_, err := stmt.ExecContext(ctx, sr.ID, sr.SubmissionID, sr.TestCaseID, sr.Status,
			sr.Stdout, sr.Stderr, sr.ExecTimeMs, sr.MemoryKb, sr.InputData, sr.ExpectedOutput)
		if err != nil {
			return fmt.Errorf("pgSubmissionRepository.CreateSubmissionResults exec for result %s: %w", sr.ID, err)
		}
	}
	return nil
}

func (r *pgSubmissionRepository) GetResultsBySubmissionID(ctx context.Context, submissionID string) ([]model.SubmissionResult, error) {
	query := `SELECT id, submission_id, test_case_id, status, stdout, stderr, exec_time_ms, memory_kb,
	                 input_data, expected_output, created_at
	          FROM submission_results WHERE submission_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetResultsBySubmissionID query: %w", err)
	}
	defer rows.Close()

	results := []model.SubmissionResult{}
	for rows.Next() {
		var sr model.SubmissionResult
		if err := rows.Scan(&sr.ID, &sr.SubmissionID, &sr.TestCaseID, &sr.Status, &sr.Stdout, &sr.Stderr,
			&sr.ExecTimeMs, &sr.MemoryKb, &sr.InputData, &sr.ExpectedOutput, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetResultsBySubmissionID scan: %w", err)
		}
		results = append(results, sr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetResultsBySubmissionID rows.Err: %w", err)
	}
	return results, nil
}
