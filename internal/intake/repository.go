package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSubmissionNotFound = errors.New("submission not found")

type Repository interface {
	SaveSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	SaveContactRequest(ctx context.Context, c *ContactRequest) error
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) SaveSubmission(ctx context.Context, s *Submission) error {
	payload, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO assessment_submissions (id, instrument_id, total_score, max_score, severity_label, crisis_flag, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Result.InstrumentID, s.Result.TotalScore, s.Result.MaxScore,
		s.Result.SeverityLabel, s.Result.CrisisFlag, payload, s.CreatedAt)
	return err
}

func (r *postgresRepo) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	query := `SELECT id, payload, created_at FROM assessment_submissions WHERE id = $1`

	var s Submission
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &payload, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &s.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &s, nil
}

func (r *postgresRepo) SaveContactRequest(ctx context.Context, c *ContactRequest) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO contact_requests (id, submission_id, name, email, phone, preferred_contact, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.SubmissionID, c.Name, c.Email, c.Phone, c.PreferredContact, c.Message, c.CreatedAt)
	return err
}
