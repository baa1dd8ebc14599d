package repository

import (
	"context"
	"fmt"

	"lootledger/database"
	"lootledger/domain/entities"
)

// WagerAbortRepository stores the audit trail of wagers that failed after commitment
type WagerAbortRepository struct {
	q   Queryable
	obs QueryObserver
}

// NewWagerAbortRepository creates a new wager abort repository
func NewWagerAbortRepository(db *database.DB) *WagerAbortRepository {
	return &WagerAbortRepository{q: db.Pool, obs: noopObserver{}}
}

func newWagerAbortRepository(q Queryable, obs QueryObserver) *WagerAbortRepository {
	return &WagerAbortRepository{q: q, obs: observerOrNoop(obs)}
}

// Record inserts an abort entry
func (r *WagerAbortRepository) Record(ctx context.Context, abort *entities.WagerAbort) error {
	defer r.obs.MeasureDatabaseQuery("wager_abort", "Record")()

	query := `
		INSERT INTO wager_aborts (box_id, user_id, nonce, commitment, client_seed, stage, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		abort.BoxID,
		abort.UserID,
		abort.Nonce,
		abort.Commitment,
		abort.ClientSeed,
		string(abort.Stage),
		abort.Reason,
	).Scan(&abort.ID, &abort.CreatedAt)
	if err != nil {
		return wrapError(fmt.Sprintf("record wager abort for user %d", abort.UserID), err)
	}
	return nil
}

// ListByUser returns a user's most recent aborts
func (r *WagerAbortRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.WagerAbort, error) {
	defer r.obs.MeasureDatabaseQuery("wager_abort", "ListByUser")()

	rows, err := r.q.Query(ctx, `
		SELECT id, box_id, user_id, nonce, commitment, client_seed, stage, reason, created_at
		FROM wager_aborts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, wrapError(fmt.Sprintf("list wager aborts for user %d", userID), err)
	}
	defer rows.Close()

	aborts := []*entities.WagerAbort{}
	for rows.Next() {
		var abort entities.WagerAbort
		var stage string
		if err := rows.Scan(
			&abort.ID,
			&abort.BoxID,
			&abort.UserID,
			&abort.Nonce,
			&abort.Commitment,
			&abort.ClientSeed,
			&stage,
			&abort.Reason,
			&abort.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wager abort: %w", err)
		}
		abort.Stage = entities.WagerStage(stage)
		aborts = append(aborts, &abort)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate wager aborts", err)
	}
	return aborts, nil
}
