package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

type Repository interface {
	// Matches
	CreateMatch(ctx context.Context, match *Match) error
	GetMatch(ctx context.Context, id string) (*Match, error)
	GetUserMatches(ctx context.Context, userID int64, status Status) ([]*Match, error)
	UpdateMatch(ctx context.Context, match *Match) error

	// Candidate exclusion
	PartnerIDs(ctx context.Context, userID int64) ([]int64, error)

	// Maintenance
	ExpirePending(ctx context.Context, now time.Time) (int, error)
	GetStats(ctx context.Context) (*Stats, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const matchColumns = `
    id, user1_id, user2_id, score, reasons, breakdown,
    user1_decision, user2_decision, status, version,
    created_at, expires_at, completed_at`

func (r *postgresRepository) CreateMatch(ctx context.Context, match *Match) error {
	query := `
        INSERT INTO matches (
            id, user1_id, user2_id, score, reasons, breakdown,
            user1_decision, user2_decision, status, version,
            created_at, expires_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	_, err := r.db.ExecContext(
		ctx, query,
		match.ID, match.User1ID, match.User2ID, match.Score,
		match.Reasons, match.Breakdown,
		match.User1Decision, match.User2Decision, match.Status, match.Version,
		match.CreatedAt, match.ExpiresAt,
	)
	if database.IsUniqueViolation(err) {
		return ErrMatchExists
	}
	if err != nil {
		return fmt.Errorf("create match: %w", database.Classify(err))
	}
	return nil
}

func (r *postgresRepository) GetMatch(ctx context.Context, id string) (*Match, error) {
	// ids are UUIDs; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrMatchNotFound
	}

	var match Match
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	err := r.db.GetContext(ctx, &match, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", database.Classify(err))
	}
	return &match, nil
}

func (r *postgresRepository) GetUserMatches(ctx context.Context, userID int64, status Status) ([]*Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE (user1_id = $1 OR user2_id = $1)`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	matches := []*Match{}
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, fmt.Errorf("list matches: %w", database.Classify(err))
	}
	return matches, nil
}

// UpdateMatch writes decisions and status only if the stored version still
// equals match.Version. On success match.Version is advanced.
func (r *postgresRepository) UpdateMatch(ctx context.Context, match *Match) error {
	query := `
        UPDATE matches
        SET user1_decision = $3, user2_decision = $4, status = $5,
            completed_at = $6, version = version + 1
        WHERE id = $1 AND version = $2
    `

	result, err := r.db.ExecContext(
		ctx, query,
		match.ID, match.Version,
		match.User1Decision, match.User2Decision, match.Status, match.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update match: %w", database.Classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match: %w", database.Classify(err))
	}
	if rows == 0 {
		return ErrConcurrentUpdate
	}
	match.Version++
	return nil
}

func (r *postgresRepository) PartnerIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
        SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
        FROM matches
        WHERE user1_id = $1 OR user2_id = $1
    `

	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("partner ids: %w", database.Classify(err))
	}
	return ids, nil
}

func (r *postgresRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	query := `
        UPDATE matches
        SET status = 'expired', completed_at = $1, version = version + 1
        WHERE status = 'pending' AND expires_at < $1
    `

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("expire matches: %w", database.Classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire matches: %w", database.Classify(err))
	}
	return int(rows), nil
}

func (r *postgresRepository) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	query := `
        SELECT
            COUNT(*) AS total,
            COUNT(*) FILTER (WHERE status = 'pending') AS pending,
            COUNT(*) FILTER (WHERE status = 'mutual_match') AS mutual_match,
            COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
            COUNT(*) FILTER (WHERE status = 'expired') AS expired,
            COUNT(*) FILTER (
                WHERE user1_decision <> 'pending' OR user2_decision <> 'pending'
            ) AS with_decision
        FROM matches
    `

	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("match stats: %w", database.Classify(err))
	}
	return &stats, nil
}
