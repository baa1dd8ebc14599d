package repository

import (
	"context"
	"errors"
	"fmt"

	"lootledger/database"
	"lootledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements the UnitOfWork interface on a single pgx transaction
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	obs                    QueryObserver
	transactionalPublisher interfaces.TransactionalEventPublisher
	userRepo               interfaces.UserRepository
	recordRepo             interfaces.TransactionRecordRepository
	boxRepo                interfaces.BoxRepository
	nonceRepo              interfaces.NonceRepository
	outcomeRepo            interfaces.WagerOutcomeRepository
	abortRepo              interfaces.WagerAbortRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, obs QueryObserver) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		db:  db,
		obs: observerOrNoop(obs),
	}
}

// UnitOfWorkFactory creates pgx-backed units of work
type UnitOfWorkFactory struct {
	db  *database.DB
	obs QueryObserver
}

// CreateWithPublisher creates a new UnitOfWork whose events go to transactionalPublisher
func (f *UnitOfWorkFactory) CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		obs:                    f.obs,
		transactionalPublisher: transactionalPublisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, database.LedgerTxOptions)
	if err != nil {
		return wrapError("begin transaction", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories bound to the transaction
	u.userRepo = newUserRepository(tx, u.obs)
	u.recordRepo = newTransactionRecordRepository(tx, u.obs)
	u.boxRepo = newBoxRepository(tx, u.obs)
	u.nonceRepo = newBoxNonceRepository(tx, u.obs)
	u.outcomeRepo = newWagerOutcomeRepository(tx, u.obs)
	u.abortRepo = newWagerAbortRepository(tx, u.obs)

	return nil
}

// Commit commits the transaction and then flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		if u.transactionalPublisher != nil {
			u.transactionalPublisher.Discard()
		}
		return wrapError("commit transaction", err)
	}

	// Events are best effort once the data is durable
	if u.transactionalPublisher != nil {
		if err := u.transactionalPublisher.Flush(u.ctx); err != nil {
			log.WithError(err).Warn("Some events of a committed unit of work were not delivered")
		}
	}

	return nil
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// TransactionRecordRepository returns the transaction record repository for this unit of work
func (u *unitOfWork) TransactionRecordRepository() interfaces.TransactionRecordRepository {
	if u.recordRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.recordRepo
}

// BoxRepository returns the box repository for this unit of work
func (u *unitOfWork) BoxRepository() interfaces.BoxRepository {
	if u.boxRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.boxRepo
}

// NonceRepository returns the nonce repository for this unit of work
func (u *unitOfWork) NonceRepository() interfaces.NonceRepository {
	if u.nonceRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.nonceRepo
}

// WagerOutcomeRepository returns the wager outcome repository for this unit of work
func (u *unitOfWork) WagerOutcomeRepository() interfaces.WagerOutcomeRepository {
	if u.outcomeRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.outcomeRepo
}

// WagerAbortRepository returns the wager abort repository for this unit of work
func (u *unitOfWork) WagerAbortRepository() interfaces.WagerAbortRepository {
	if u.abortRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.abortRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.transactionalPublisher == nil {
		panic("transactional publisher not configured")
	}
	return u.transactionalPublisher
}
