package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"lootledger/domain/entities"
)

// InMemoryTransactionRecordRepository is an append-only fake for ledger tests
type InMemoryTransactionRecordRepository struct {
	mu      sync.Mutex
	records []*entities.TransactionRecord
	nextID  int64
}

// NewInMemoryTransactionRecordRepository creates an empty store
func NewInMemoryTransactionRecordRepository() *InMemoryTransactionRecordRepository {
	return &InMemoryTransactionRecordRepository{}
}

func (r *InMemoryTransactionRecordRepository) GetLatest(ctx context.Context, userID int64) (*entities.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.UserID == userID && !rec.IsDeleted {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *InMemoryTransactionRecordRepository) Create(ctx context.Context, record *entities.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	record.CreatedAt = time.Now()
	copied := *record
	r.records = append(r.records, &copied)
	return nil
}

func (r *InMemoryTransactionRecordRepository) GetByReferenceID(ctx context.Context, referenceID string) (*entities.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ReferenceID == referenceID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *InMemoryTransactionRecordRepository) List(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) ([]*entities.TransactionRecord, error) {
	matches := r.matching(userID, filter)
	page = page.Normalize()
	start := page.Offset()
	if start >= len(matches) {
		return []*entities.TransactionRecord{}, nil
	}
	end := start + page.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], nil
}

func (r *InMemoryTransactionRecordRepository) Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error) {
	return int64(len(r.matching(userID, filter))), nil
}

func (r *InMemoryTransactionRecordRepository) SoftDelete(ctx context.Context, referenceID string, actorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ReferenceID == referenceID {
			rec.IsDeleted = true
			rec.DeletedBy = &actorID
		}
	}
	return nil
}

// All returns every stored record in commit order
func (r *InMemoryTransactionRecordRepository) All() []*entities.TransactionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.TransactionRecord, len(r.records))
	for i, rec := range r.records {
		copied := *rec
		out[i] = &copied
	}
	return out
}

func (r *InMemoryTransactionRecordRepository) matching(userID int64, filter entities.HistoryFilter) []*entities.TransactionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entities.TransactionRecord
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if rec.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.Direction != nil && rec.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && rec.Category != *filter.Category {
			continue
		}
		if filter.From != nil && rec.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.CreatedAt.After(*filter.To) {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
