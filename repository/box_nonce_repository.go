package repository

import (
	"context"
	"fmt"

	"lootledger/database"
)

// BoxNonceRepository hands out per-box nonces from the box_nonces counter table
type BoxNonceRepository struct {
	q   Queryable
	obs QueryObserver
}

// NewBoxNonceRepository creates a new nonce repository
func NewBoxNonceRepository(db *database.DB) *BoxNonceRepository {
	return &BoxNonceRepository{q: db.Pool, obs: noopObserver{}}
}

func newBoxNonceRepository(q Queryable, obs QueryObserver) *BoxNonceRepository {
	return &BoxNonceRepository{q: q, obs: observerOrNoop(obs)}
}

// Next increments and returns the box's nonce in one statement. The counter row
// stays locked until the surrounding transaction ends, so concurrent wagers on the
// same box queue behind each other and an aborted wager gives its nonce back.
func (r *BoxNonceRepository) Next(ctx context.Context, boxID int64) (int64, error) {
	defer r.obs.MeasureDatabaseQuery("box_nonce", "Next")()

	query := `
		INSERT INTO box_nonces (box_id, nonce)
		VALUES ($1, 1)
		ON CONFLICT (box_id) DO UPDATE
		SET nonce = box_nonces.nonce + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING nonce
	`
	var nonce int64
	if err := r.q.QueryRow(ctx, query, boxID).Scan(&nonce); err != nil {
		return 0, wrapError(fmt.Sprintf("allocate nonce for box %d", boxID), err)
	}
	return nonce, nil
}
