package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lootledger/database"
	"lootledger/domain/entities"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, first_name, last_name, role, is_active, created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q   Queryable
	obs QueryObserver
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool, obs: noopObserver{}}
}

// newUserRepository creates a user repository bound to a transaction
func newUserRepository(q Queryable, obs QueryObserver) *UserRepository {
	return &UserRepository{q: q, obs: observerOrNoop(obs)}
}

// GetByID retrieves a user by id, or nil if none exists
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*entities.UserAccount, error) {
	defer r.obs.MeasureDatabaseQuery("user", "GetByID")()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(ctx, "get user", query, userID)
}

// LockForUpdate retrieves a user and holds its row lock until the transaction ends.
// All balance-affecting work for the user serializes on this lock.
func (r *UserRepository) LockForUpdate(ctx context.Context, userID int64) (*entities.UserAccount, error) {
	defer r.obs.MeasureDatabaseQuery("user", "LockForUpdate")()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.scanOne(ctx, "lock user", query, userID)
}

// Create inserts a user and fills in its id and timestamps
func (r *UserRepository) Create(ctx context.Context, user *entities.UserAccount) error {
	defer r.obs.MeasureDatabaseQuery("user", "Create")()

	if user.Role == "" {
		user.Role = entities.RoleUser
	}

	query := `
		INSERT INTO users (first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, user.FirstName, user.LastName, user.Role, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return wrapError("create user", err)
	}
	return nil
}

// SetActive flips the user's active flag
func (r *UserRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	defer r.obs.MeasureDatabaseQuery("user", "SetActive")()

	tag, err := r.q.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		userID, active,
	)
	if err != nil {
		return wrapError(fmt.Sprintf("set active flag for user %d", userID), err)
	}
	if tag.RowsAffected() == 0 {
		return &entities.UserNotFoundError{UserID: userID}
	}
	return nil
}

// activeUserFilter matches active users whose first or last name contains $1.
// An empty $1 matches every active user.
const activeUserFilter = `u.is_active AND ($1 = '' OR u.first_name ILIKE '%' || $1 || '%' ESCAPE '\' OR u.last_name ILIKE '%' || $1 || '%' ESCAPE '\')`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListActiveWithBalances returns active users newest first, each joined to the
// snapshot on its latest non-deleted record
func (r *UserRepository) ListActiveWithBalances(ctx context.Context, search string, page entities.PageRequest) ([]*entities.UserWithBalance, error) {
	defer r.obs.MeasureDatabaseQuery("user", "ListActiveWithBalances")()

	page = page.Normalize()
	query := `
		SELECT u.id, u.first_name, u.last_name, u.role, u.is_active, u.created_at, u.updated_at,
			COALESCE(latest.available_after, 0), COALESCE(latest.pending_after, 0)
		FROM users u
		LEFT JOIN LATERAL (
			SELECT available_after, pending_after FROM transaction_records
			WHERE user_id = u.id AND NOT is_deleted
			ORDER BY id DESC LIMIT 1
		) latest ON TRUE
		WHERE ` + activeUserFilter + `
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.q.Query(ctx, query, likeEscaper.Replace(search), page.Limit, page.Offset())
	if err != nil {
		return nil, wrapError("list users with balances", err)
	}
	defer rows.Close()

	users := []*entities.UserWithBalance{}
	for rows.Next() {
		var u entities.UserWithBalance
		var balance entities.Balance
		if err := rows.Scan(
			&u.ID,
			&u.FirstName,
			&u.LastName,
			&u.Role,
			&u.IsActive,
			&u.CreatedAt,
			&u.UpdatedAt,
			&balance.Available,
			&balance.Pending,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Balance = balance.View()
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate users", err)
	}
	return users, nil
}

// CountActive counts the active users matching search
func (r *UserRepository) CountActive(ctx context.Context, search string) (int64, error) {
	defer r.obs.MeasureDatabaseQuery("user", "CountActive")()

	var total int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users u WHERE `+activeUserFilter, likeEscaper.Replace(search)).Scan(&total)
	if err != nil {
		return 0, wrapError("count users", err)
	}
	return total, nil
}

func (r *UserRepository) scanOne(ctx context.Context, op, query string, args ...any) (*entities.UserAccount, error) {
	var user entities.UserAccount
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(op, err)
	}
	return &user, nil
}
