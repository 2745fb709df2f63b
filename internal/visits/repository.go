package visits

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles visit persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a visits repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an archived visit.
func (r *Repository) Create(ctx context.Context, v *Visit) error {
	transcript, err := json.Marshal(v.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	const query = `INSERT INTO visits (id, backend, started_at, ended_at, transcript, chunk_count, byte_count, word_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		v.ID, v.Backend, v.StartedAt, v.EndedAt, transcript,
		v.ChunkCount, v.ByteCount, v.WordCount).
		Scan(&v.CreatedAt)
}

// GetByID returns a visit by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	const query = `SELECT id, backend, started_at, ended_at, transcript, chunk_count, byte_count, word_count,
			summary, summary_model, summarized_at, created_at
		FROM visits WHERE id = $1`
	var v Visit
	var transcript []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.Backend, &v.StartedAt, &v.EndedAt, &transcript,
		&v.ChunkCount, &v.ByteCount, &v.WordCount,
		&v.Summary, &v.SummaryModel, &v.SummarizedAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(transcript, &v.Transcript); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return &v, nil
}

// List returns recent visits, newest first, without transcripts.
func (r *Repository) List(ctx context.Context, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, backend, started_at, ended_at, chunk_count, byte_count, word_count,
			summary, summary_model, summarized_at, created_at
		FROM visits ORDER BY started_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(
			&v.ID, &v.Backend, &v.StartedAt, &v.EndedAt,
			&v.ChunkCount, &v.ByteCount, &v.WordCount,
			&v.Summary, &v.SummaryModel, &v.SummarizedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateSummary stores the worker-produced summary for a visit.
func (r *Repository) UpdateSummary(ctx context.Context, id uuid.UUID, summary, model string) error {
	const query = `UPDATE visits SET summary = $2, summary_model = $3, summarized_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, summary, model)
	return err
}
