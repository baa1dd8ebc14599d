package infrastructure

import (
	"lootledger/database"
	"lootledger/domain/interfaces"
	"lootledger/repository"
)

// UnitOfWorkFactory implements interfaces.UnitOfWorkFactory. Every unit of work it
// creates gets its own transactional publisher in front of eventPublisher.
type UnitOfWorkFactory struct {
	repoFactory interface {
		CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory. obs may be nil.
func NewUnitOfWorkFactory(db *database.DB, eventPublisher interfaces.EventPublisher, obs repository.QueryObserver) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repository.NewUnitOfWorkFactory(db, obs),
		eventPublisher: eventPublisher,
	}
}

// Create creates a new UnitOfWork with a fresh transactional event publisher
func (f *UnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.repoFactory.CreateWithPublisher(NewTransactionalPublisher(f.eventPublisher))
}
