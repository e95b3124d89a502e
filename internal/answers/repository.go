package answers

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oneshhh/hirexpert-worker/internal/models"
)

// Repository handles answer persistence for the compression worker.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an answers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchPendingBatch returns up to limit answers not yet compressed, in no
// particular order. Pure read; no cursor is kept between passes.
func (r *Repository) FetchPendingBatch(ctx context.Context, limit int) ([]models.Answer, error) {
	const q = `SELECT id, interview_id, question_id, COALESCE(candidate_token,''), COALESCE(raw_path,''), COALESCE(mime_type,''),
		is_compressed, COALESCE(compression_succeeded,false), COALESCE(compression_attempts,0), created_at, updated_at
		FROM answers WHERE is_compressed = false LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.InterviewID, &a.QuestionID, &a.CandidateToken, &a.RawPath, &a.MimeType,
			&a.IsCompressed, &a.CompressionSucceeded, &a.CompressionAttempts, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// MarkCompressed sets is_compressed so the answer is never selected again.
// The worker never resets this flag.
func (r *Repository) MarkCompressed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE answers SET is_compressed = true, compression_attempts = compression_attempts + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// MarkCompressionSucceeded records that the compressed artifact actually
// replaced the original, as opposed to a no-op completion.
func (r *Repository) MarkCompressionSucceeded(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE answers SET compression_succeeded = true, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
