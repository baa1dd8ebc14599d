package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lootledger/database"
	"lootledger/domain/entities"

	"github.com/jackc/pgx/v5"
)

const wagerOutcomeColumns = `
	id, box_id, user_id, nonce, server_secret, commitment, client_seed,
	winning_item, items_snapshot, odds_ranges, normalized, digest, price,
	transaction_reference, processed_for_resell, resell_transaction_reference, created_at`

// WagerOutcomeRepository stores fair spin records
type WagerOutcomeRepository struct {
	q   Queryable
	obs QueryObserver
}

// NewWagerOutcomeRepository creates a new wager outcome repository
func NewWagerOutcomeRepository(db *database.DB) *WagerOutcomeRepository {
	return &WagerOutcomeRepository{q: db.Pool, obs: noopObserver{}}
}

func newWagerOutcomeRepository(q Queryable, obs QueryObserver) *WagerOutcomeRepository {
	return &WagerOutcomeRepository{q: q, obs: observerOrNoop(obs)}
}

// Create inserts a verifiable outcome
func (r *WagerOutcomeRepository) Create(ctx context.Context, outcome *entities.WagerOutcome) error {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "Create")()

	winningItem, err := json.Marshal(outcome.WinningItem)
	if err != nil {
		return fmt.Errorf("failed to marshal winning item: %w", err)
	}
	snapshot, err := json.Marshal(outcome.ItemsSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal items snapshot: %w", err)
	}
	ranges, err := json.Marshal(outcome.OddsRanges)
	if err != nil {
		return fmt.Errorf("failed to marshal odds ranges: %w", err)
	}

	query := `
		INSERT INTO wager_outcomes
		(box_id, user_id, nonce, server_secret, commitment, client_seed, winning_item,
		 items_snapshot, odds_ranges, normalized, digest, price, verifiable, transaction_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13)
		RETURNING id, created_at
	`
	err = r.q.QueryRow(ctx, query,
		outcome.BoxID,
		outcome.UserID,
		outcome.Nonce,
		outcome.ServerSecret,
		outcome.Commitment,
		outcome.ClientSeed,
		winningItem,
		snapshot,
		ranges,
		outcome.Normalized,
		outcome.Digest,
		outcome.Price,
		outcome.TransactionReference,
	).Scan(&outcome.ID, &outcome.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_wager_outcomes_box_nonce") {
			return &entities.StorageConflictError{Op: "insert wager outcome", Err: err}
		}
		return wrapError(fmt.Sprintf("record wager outcome for box %d", outcome.BoxID), err)
	}
	return nil
}

// GetByID returns the outcome or nil
func (r *WagerOutcomeRepository) GetByID(ctx context.Context, outcomeID int64) (*entities.WagerOutcome, error) {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "GetByID")()
	return r.getOne(ctx, `SELECT `+wagerOutcomeColumns+` FROM wager_outcomes WHERE id = $1`, outcomeID)
}

// GetByIDForUpdate returns the outcome with its row locked, or nil
func (r *WagerOutcomeRepository) GetByIDForUpdate(ctx context.Context, outcomeID int64) (*entities.WagerOutcome, error) {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "GetByIDForUpdate")()
	return r.getOne(ctx, `SELECT `+wagerOutcomeColumns+` FROM wager_outcomes WHERE id = $1 FOR UPDATE`, outcomeID)
}

// FindForVerification returns the outcome matching all three revealed values, or nil
func (r *WagerOutcomeRepository) FindForVerification(ctx context.Context, clientSeed, serverSecret string, nonce int64) (*entities.WagerOutcome, error) {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "FindForVerification")()

	query := `SELECT ` + wagerOutcomeColumns + `
		FROM wager_outcomes
		WHERE client_seed = $1 AND server_secret = $2 AND nonce = $3 AND verifiable
		ORDER BY id
		LIMIT 1`
	return r.getOne(ctx, query, clientSeed, serverSecret, nonce)
}

// MarkResold sets the one-way resell flag
func (r *WagerOutcomeRepository) MarkResold(ctx context.Context, outcomeID int64, transactionReference string) error {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "MarkResold")()

	tag, err := r.q.Exec(ctx, `
		UPDATE wager_outcomes
		SET processed_for_resell = TRUE, resell_transaction_reference = $2
		WHERE id = $1 AND NOT processed_for_resell
	`, outcomeID, transactionReference)
	if err != nil {
		return wrapError(fmt.Sprintf("mark outcome %d resold", outcomeID), err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrAlreadyResold
	}
	return nil
}

// List returns one page of outcomes matching filter, newest first
func (r *WagerOutcomeRepository) List(ctx context.Context, filter entities.SpinFilter, page entities.PageRequest) ([]*entities.WagerOutcome, error) {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "List")()

	page = page.Normalize()
	where, args := spinWhere(filter)
	args = append(args, page.Limit, page.Offset())

	query := fmt.Sprintf(`SELECT %s FROM wager_outcomes WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		wagerOutcomeColumns, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list wager outcomes", err)
	}
	defer rows.Close()

	outcomes := []*entities.WagerOutcome{}
	for rows.Next() {
		outcome, err := scanWagerOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate wager outcomes", err)
	}
	return outcomes, nil
}

// Count returns the number of outcomes matching filter
func (r *WagerOutcomeRepository) Count(ctx context.Context, filter entities.SpinFilter) (int64, error) {
	defer r.obs.MeasureDatabaseQuery("wager_outcome", "Count")()

	where, args := spinWhere(filter)
	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM wager_outcomes WHERE `+where, args...).Scan(&total); err != nil {
		return 0, wrapError("count wager outcomes", err)
	}
	return total, nil
}

func (r *WagerOutcomeRepository) getOne(ctx context.Context, query string, args ...any) (*entities.WagerOutcome, error) {
	outcome, err := scanWagerOutcome(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("get wager outcome", err)
	}
	return outcome, nil
}

func spinWhere(filter entities.SpinFilter) (string, []any) {
	clauses := []string{"verifiable"}
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.BoxID != nil {
		add("box_id = $%d", *filter.BoxID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	return strings.Join(clauses, " AND "), args
}

func scanWagerOutcome(row pgx.Row) (*entities.WagerOutcome, error) {
	var outcome entities.WagerOutcome
	var winningItem, snapshot, ranges []byte

	err := row.Scan(
		&outcome.ID,
		&outcome.BoxID,
		&outcome.UserID,
		&outcome.Nonce,
		&outcome.ServerSecret,
		&outcome.Commitment,
		&outcome.ClientSeed,
		&winningItem,
		&snapshot,
		&ranges,
		&outcome.Normalized,
		&outcome.Digest,
		&outcome.Price,
		&outcome.TransactionReference,
		&outcome.ProcessedForResell,
		&outcome.ResellTransactionReference,
		&outcome.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(winningItem, &outcome.WinningItem); err != nil {
		return nil, fmt.Errorf("failed to unmarshal winning item: %w", err)
	}
	if err := json.Unmarshal(snapshot, &outcome.ItemsSnapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items snapshot: %w", err)
	}
	if err := json.Unmarshal(ranges, &outcome.OddsRanges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal odds ranges: %w", err)
	}
	return &outcome, nil
}
