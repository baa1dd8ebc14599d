package repository

import (
	"context"
	"errors"
	"fmt"

	"lootledger/database"
	"lootledger/domain/entities"

	"github.com/jackc/pgx/v5"
)

// BoxRepository reads the box catalog
type BoxRepository struct {
	q   Queryable
	obs QueryObserver
}

// NewBoxRepository creates a new box repository
func NewBoxRepository(db *database.DB) *BoxRepository {
	return &BoxRepository{q: db.Pool, obs: noopObserver{}}
}

func newBoxRepository(q Queryable, obs QueryObserver) *BoxRepository {
	return &BoxRepository{q: q, obs: observerOrNoop(obs)}
}

// GetByID returns the box with its items in catalog order, or nil
func (r *BoxRepository) GetByID(ctx context.Context, boxID int64) (*entities.Box, error) {
	defer r.obs.MeasureDatabaseQuery("box", "GetByID")()

	var box entities.Box
	err := r.q.QueryRow(ctx,
		`SELECT id, slug, name, price, is_active FROM boxes WHERE id = $1`,
		boxID,
	).Scan(&box.ID, &box.Slug, &box.Name, &box.Price, &box.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(fmt.Sprintf("get box %d", boxID), err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, slug, name, value, weight, odd
		FROM box_items
		WHERE box_id = $1
		ORDER BY position, id
	`, boxID)
	if err != nil {
		return nil, wrapError(fmt.Sprintf("get items for box %d", boxID), err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entities.Item
		if err := rows.Scan(&item.ID, &item.Slug, &item.Name, &item.Value, &item.Weight, &item.Odd); err != nil {
			return nil, fmt.Errorf("failed to scan box item: %w", err)
		}
		box.Items = append(box.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate box items", err)
	}

	return &box, nil
}

// Create inserts a box and its items. Used by seeding and tests.
func (r *BoxRepository) Create(ctx context.Context, box *entities.Box) error {
	defer r.obs.MeasureDatabaseQuery("box", "Create")()

	err := r.q.QueryRow(ctx,
		`INSERT INTO boxes (slug, name, price, is_active) VALUES ($1, $2, $3, $4) RETURNING id`,
		box.Slug, box.Name, box.Price, box.IsActive,
	).Scan(&box.ID)
	if err != nil {
		return wrapError("create box "+box.Slug, err)
	}

	for i := range box.Items {
		item := &box.Items[i]
		err := r.q.QueryRow(ctx, `
			INSERT INTO box_items (box_id, slug, name, value, weight, odd, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, box.ID, item.Slug, item.Name, item.Value, item.Weight, item.Odd, i).Scan(&item.ID)
		if err != nil {
			return wrapError("create box item "+item.Slug, err)
		}
	}
	return nil
}
