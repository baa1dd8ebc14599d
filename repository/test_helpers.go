package repository

import (
	"lootledger/database"
	"lootledger/domain/interfaces"
)

// CreateTestUnitOfWork creates a unit of work for testing with the provided transactional publisher
func CreateTestUnitOfWork(db *database.DB, transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork {
	return NewUnitOfWorkFactory(db, nil).CreateWithPublisher(transactionalPublisher)
}

// TestUnitOfWorkFactory hands every unit of work the same transactional publisher
type TestUnitOfWorkFactory struct {
	factory   *UnitOfWorkFactory
	publisher interfaces.TransactionalEventPublisher
}

// NewTestUnitOfWorkFactory creates a UnitOfWorkFactory for service-level integration tests
func NewTestUnitOfWorkFactory(db *database.DB, publisher interfaces.TransactionalEventPublisher) *TestUnitOfWorkFactory {
	return &TestUnitOfWorkFactory{
		factory:   NewUnitOfWorkFactory(db, nil),
		publisher: publisher,
	}
}

func (f *TestUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.factory.CreateWithPublisher(f.publisher)
}
