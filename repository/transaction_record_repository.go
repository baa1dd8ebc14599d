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

const transactionRecordColumns = `
	id, user_id, amount, direction, bucket, to_bucket, status, category,
	reference_id, related_reference_id, order_id, wager_outcome_id, metadata,
	available_after, pending_after, is_deleted, deleted_by, created_by, created_at`

// TransactionRecordRepository implements the append-only TransactionRecordRepository interface
type TransactionRecordRepository struct {
	q   Queryable
	obs QueryObserver
}

// NewTransactionRecordRepository creates a new transaction record repository
func NewTransactionRecordRepository(db *database.DB) *TransactionRecordRepository {
	return &TransactionRecordRepository{q: db.Pool, obs: noopObserver{}}
}

func newTransactionRecordRepository(q Queryable, obs QueryObserver) *TransactionRecordRepository {
	return &TransactionRecordRepository{q: q, obs: observerOrNoop(obs)}
}

// GetLatest returns the user's most recent non-deleted record, or nil
func (r *TransactionRecordRepository) GetLatest(ctx context.Context, userID int64) (*entities.TransactionRecord, error) {
	defer r.obs.MeasureDatabaseQuery("transaction_record", "GetLatest")()

	query := `SELECT ` + transactionRecordColumns + `
		FROM transaction_records
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY id DESC
		LIMIT 1`

	record, err := scanTransactionRecord(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(fmt.Sprintf("get latest transaction for user %d", userID), err)
	}
	return record, nil
}

// Create appends a record
func (r *TransactionRecordRepository) Create(ctx context.Context, record *entities.TransactionRecord) error {
	defer r.obs.MeasureDatabaseQuery("transaction_record", "Create")()

	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	var toBucket *string
	if record.ToBucket != nil {
		b := string(*record.ToBucket)
		toBucket = &b
	}

	query := `
		INSERT INTO transaction_records
		(user_id, amount, direction, bucket, to_bucket, status, category, reference_id,
		 related_reference_id, order_id, wager_outcome_id, metadata,
		 available_after, pending_after, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`
	err = r.q.QueryRow(ctx, query,
		record.UserID,
		record.Amount,
		string(record.Direction),
		string(record.Bucket),
		toBucket,
		string(record.Status),
		string(record.Category),
		record.ReferenceID,
		record.RelatedReferenceID,
		record.OrderID,
		record.WagerOutcomeID,
		metadataJSON,
		record.BalanceAfter.Available,
		record.BalanceAfter.Pending,
		record.CreatedBy,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return wrapError(fmt.Sprintf("record transaction for user %d", record.UserID), err)
	}
	return nil
}

// GetByReferenceID returns a record by its reference id, or nil
func (r *TransactionRecordRepository) GetByReferenceID(ctx context.Context, referenceID string) (*entities.TransactionRecord, error) {
	defer r.obs.MeasureDatabaseQuery("transaction_record", "GetByReferenceID")()

	query := `SELECT ` + transactionRecordColumns + ` FROM transaction_records WHERE reference_id = $1`

	record, err := scanTransactionRecord(r.q.QueryRow(ctx, query, referenceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("get transaction "+referenceID, err)
	}
	return record, nil
}

// List returns one page of a user's history, newest first
func (r *TransactionRecordRepository) List(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) ([]*entities.TransactionRecord, error) {
	defer r.obs.MeasureDatabaseQuery("transaction_record", "List")()

	page = page.Normalize()
	where, args := historyWhere(userID, filter)
	args = append(args, page.Limit, page.Offset())

	query := fmt.Sprintf(`SELECT %s FROM transaction_records WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		transactionRecordColumns, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(fmt.Sprintf("list transactions for user %d", userID), err)
	}
	defer rows.Close()

	records := []*entities.TransactionRecord{}
	for rows.Next() {
		record, err := scanTransactionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate transactions", err)
	}
	return records, nil
}

// Count returns the number of records matching filter
func (r *TransactionRecordRepository) Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error) {
	defer r.obs.MeasureDatabaseQuery("transaction_record", "Count")()

	where, args := historyWhere(userID, filter)
	var total int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_records WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, wrapError(fmt.Sprintf("count transactions for user %d", userID), err)
	}
	return total, nil
}

// SoftDelete flags a record deleted. No other column of a record ever changes.
func (r *TransactionRecordRepository) SoftDelete(ctx context.Context, referenceID string, actorID int64) error {
	defer r.obs.MeasureDatabaseQuery("transaction_record", "SoftDelete")()

	tag, err := r.q.Exec(ctx,
		`UPDATE transaction_records SET is_deleted = TRUE, deleted_by = $2 WHERE reference_id = $1 AND NOT is_deleted`,
		referenceID, actorID,
	)
	if err != nil {
		return wrapError("delete transaction "+referenceID, err)
	}
	if tag.RowsAffected() == 0 {
		return &entities.TransactionNotFoundError{ReferenceID: referenceID}
	}
	return nil
}

func historyWhere(userID int64, filter entities.HistoryFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if !filter.IncludeDeleted {
		clauses = append(clauses, "NOT is_deleted")
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.Direction != nil {
		add("direction = $%d", string(*filter.Direction))
	}
	if filter.Category != nil {
		add("category = $%d", string(*filter.Category))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	return strings.Join(clauses, " AND "), args
}

func scanTransactionRecord(row pgx.Row) (*entities.TransactionRecord, error) {
	var (
		record       entities.TransactionRecord
		direction    string
		bucket       string
		toBucket     *string
		status       string
		category     string
		metadataJSON []byte
	)

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Amount,
		&direction,
		&bucket,
		&toBucket,
		&status,
		&category,
		&record.ReferenceID,
		&record.RelatedReferenceID,
		&record.OrderID,
		&record.WagerOutcomeID,
		&metadataJSON,
		&record.BalanceAfter.Available,
		&record.BalanceAfter.Pending,
		&record.IsDeleted,
		&record.DeletedBy,
		&record.CreatedBy,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Direction = entities.Direction(direction)
	record.Bucket = entities.Bucket(bucket)
	record.Status = entities.Status(status)
	record.Category = entities.Category(category)
	if toBucket != nil {
		b := entities.Bucket(*toBucket)
		record.ToBucket = &b
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}

	return &record, nil
}
