package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"examgrade/internal/common"
	"examgrade/internal/domain/model"
)

type StudentRepository interface {
	CreateStudent(ctx context.Context, tx *sql.Tx, student *model.Student) error
	FindByEmailAndTestID(ctx context.Context, email, testID string) (*model.Student, error)
	// UpdateFinalSubmission writes the exam-level outcome: submitted time,
	// misconduct counters and the aggregated score.
	UpdateFinalSubmission(ctx context.Context, tx *sql.Tx, student *model.Student) error
	ListByTestID(ctx context.Context, testID string) ([]model.Student, error)
}

type pgStudentRepository struct {
	db *sql.DB
}

func NewPgStudentRepository(db *sql.DB) StudentRepository {
	return &pgStudentRepository{db: db}
}

func (r *pgStudentRepository) CreateStudent(ctx context.Context, tx *sql.Tx, s *model.Student) error {
	query := `INSERT INTO students (id, test_id, name, email, phone, batch, submitted_at, score, tab_switch_count, copy_paste_attempts)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, s.ID, s.TestID, s.Name, s.Email, s.Phone, s.Batch,
			s.SubmittedAt, s.Score, s.TabSwitchCount, s.CopyPasteAttempts)
	} else {
		_, err = r.db.ExecContext(ctx, query, s.ID, s.TestID, s.Name, s.Email, s.Phone, s.Batch,
			s.SubmittedAt, s.Score, s.TabSwitchCount, s.CopyPasteAttempts)
	}
	if err != nil {
		return fmt.Errorf("pgStudentRepository.CreateStudent: %w", err)
	}
	return nil
}

func (r *pgStudentRepository) FindByEmailAndTestID(ctx context.Context, email, testID string) (*model.Student, error) {
	query := `SELECT id, test_id, name, email, phone, batch, submitted_at, score, tab_switch_count, copy_paste_attempts, created_at
	          FROM students WHERE email = $1 AND test_id = $2`

	s := &model.Student{}
	err := r.db.QueryRowContext(ctx, query, email, testID).Scan(
		&s.ID, &s.TestID, &s.Name, &s.Email, &s.Phone, &s.Batch,
		&s.SubmittedAt, &s.Score, &s.TabSwitchCount, &s.CopyPasteAttempts, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgStudentRepository.FindByEmailAndTestID: %w", err)
	}
	return s, nil
}

func (r *pgStudentRepository) UpdateFinalSubmission(ctx context.Context, tx *sql.Tx, s *model.Student) error {
	query := `UPDATE students SET name = $1, batch = $2, submitted_at = $3, score = $4,
	                 tab_switch_count = $5, copy_paste_attempts = $6
	          WHERE id = $7`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, s.Name, s.Batch, s.SubmittedAt, s.Score,
			s.TabSwitchCount, s.CopyPasteAttempts, s.ID)
	} else {
		res, err = r.db.ExecContext(ctx, query, s.Name, s.Batch, s.SubmittedAt, s.Score,
			s.TabSwitchCount, s.CopyPasteAttempts, s.ID)
	}
	if err != nil {
		return fmt.Errorf("pgStudentRepository.UpdateFinalSubmission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgStudentRepository) ListByTestID(ctx context.Context, testID string) ([]model.Student, error) {
	query := `SELECT id, test_id, name, email, phone, batch, submitted_at, score, tab_switch_count, copy_paste_attempts, created_at
	          FROM students WHERE test_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, fmt.Errorf("pgStudentRepository.ListByTestID query: %w", err)
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.TestID, &s.Name, &s.Email, &s.Phone, &s.Batch,
			&s.SubmittedAt, &s.Score, &s.TabSwitchCount, &s.CopyPasteAttempts, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgStudentRepository.ListByTestID scan: %w", err)
		}
		students = append(students, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgStudentRepository.ListByTestID rows.Err: %w", err)
	}
	return students, nil
}
