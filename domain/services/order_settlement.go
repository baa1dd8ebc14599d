package services

import (
	"context"
	"fmt"
	"strings"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
	"lootledger/domain/utils"

	log "github.com/sirupsen/logrus"
)

// ProcessOrderPayment debits the buyer's available balance and credits the vendor's
// pending balance in one unit of work. Only the buyer or an admin may settle an order.
func (s *ledgerService) ProcessOrderPayment(ctx context.Context, req interfaces.OrderPaymentRequest) (*interfaces.TransferResult, error) {
	if req.OrderID == "" {
		return nil, entities.NewValidationError("orderId", "is required")
	}
	if req.BuyerID == req.VendorID {
		return nil, &entities.SameAccountTransferError{UserID: req.BuyerID}
	}
	if err := s.balance.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.CreatedBy <= 0 {
		return nil, entities.NewValidationError("createdBy", "is required")
	}

	release, err := s.locker.Lock(ctx, req.BuyerID, req.VendorID)
	if err != nil {
		return nil, err
	}
	defer release()

	orderID := req.OrderID
	createdBy := req.CreatedBy
	base := map[string]any{
		entities.MetaOrderReference: orderID,
		entities.MetaInitiatedBy:    createdBy,
	}
	if req.PaymentMethod != "" {
		base[entities.MetaPaymentMethod] = req.PaymentMethod
	}

	var result *interfaces.TransferResult
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "order_payment", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if createdBy != req.BuyerID {
			if err := requireAdmin(ctx, uow, createdBy); err != nil {
				return err
			}
		}

		users, err := lockActivePair(ctx, uow, req.BuyerID, req.VendorID)
		if err != nil {
			return err
		}
		if users[req.VendorID].Role != entities.RoleVendor {
			return entities.NewValidationError("vendorId", "is not a vendor account")
		}

		r, err := s.recordLinkedPair(ctx, uow,
			interfaces.TransactionRequest{
				UserID:    req.BuyerID,
				Amount:    req.Amount,
				Direction: entities.DirectionDebit,
				Bucket:    entities.BucketAvailable,
				Category:  entities.CategoryOrderPayment,
				OrderID:   &orderID,
				CreatedBy: &createdBy,
				Metadata:  utils.MergeMetadata(base, map[string]any{entities.MetaCounterpartyID: req.VendorID}),
			},
			interfaces.TransactionRequest{
				UserID:    req.VendorID,
				Amount:    req.Amount,
				Direction: entities.DirectionCredit,
				Bucket:    entities.BucketPending,
				Category:  entities.CategoryOrderPayment,
				OrderID:   &orderID,
				CreatedBy: &createdBy,
				Metadata:  utils.MergeMetadata(base, map[string]any{entities.MetaCounterpartyID: req.BuyerID}),
			},
		)
		if err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"orderID":  orderID,
		"buyerID":  req.BuyerID,
		"vendorID": req.VendorID,
		"amount":   req.Amount,
	}).Info("Order payment settled")

	return result, nil
}

// ReleaseVendorPayment moves an order's funds from the vendor's pending to available
func (s *ledgerService) ReleaseVendorPayment(ctx context.Context, req interfaces.VendorReleaseRequest) (*entities.TransactionRecord, error) {
	if req.OrderID == "" {
		return nil, entities.NewValidationError("orderId", "is required")
	}
	move := interfaces.MoveRequest{
		UserID:     req.VendorID,
		Amount:     req.Amount,
		FromBucket: entities.BucketPending,
		ToBucket:   entities.BucketAvailable,
		CreatedBy:  &req.ActorID,
		Metadata: map[string]any{
			entities.MetaOrderReference: req.OrderID,
			entities.MetaInitiatedBy:    req.ActorID,
		},
	}
	if err := s.validateMove(move); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}
	defer release()

	orderID := req.OrderID
	var record *entities.TransactionRecord
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "vendor_release", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := requireAdmin(ctx, uow, req.ActorID); err != nil {
			return err
		}
		vendor, err := lockActiveUser(ctx, uow, req.VendorID)
		if err != nil {
			return err
		}
		if vendor.Role != entities.RoleVendor {
			return entities.NewValidationError("vendorId", "is not a vendor account")
		}

		r, err := s.moveInUnitOfWork(ctx, uow, move, &orderID)
		if err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"orderID":     orderID,
		"vendorID":    req.VendorID,
		"actorID":     req.ActorID,
		"amount":      req.Amount,
		"referenceID": record.ReferenceID,
	}).Info("Vendor payment released")

	return record, nil
}

// ListUsersWithBalances returns one page of active users, each with its current balance
func (s *ledgerService) ListUsersWithBalances(ctx context.Context, search string, page entities.PageRequest) (*entities.UserBalancePage, error) {
	page = page.Normalize()
	search = strings.TrimSpace(search)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err := uow.UserRepository().ListActiveWithBalances(ctx, search, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	total, err := uow.UserRepository().CountActive(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	return &entities.UserBalancePage{
		Users:      users,
		Pagination: entities.NewPagination(page, total),
	}, nil
}
