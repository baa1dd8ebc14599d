package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// VerificationRecorder counts audit lookups. The metrics provider implements it.
type VerificationRecorder interface {
	RecordVerification(result string)
}

// Handler serves the ledger HTTP surface
type Handler struct {
	ledger   interfaces.LedgerService
	wagers   interfaces.WagerService
	audit    interfaces.AuditService
	resell   interfaces.ResellService
	verifies VerificationRecorder
}

// NewHandler creates a Handler. recorder may be nil.
func NewHandler(ledger interfaces.LedgerService, wagers interfaces.WagerService, audit interfaces.AuditService, resell interfaces.ResellService, recorder VerificationRecorder) *Handler {
	return &Handler{
		ledger:   ledger,
		wagers:   wagers,
		audit:    audit,
		resell:   resell,
		verifies: recorder,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]string{"status": "ok"})
}

// PlaceWager debits the box price and returns the revealed outcome
func (h *Handler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	var req PlaceWagerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	receipt, err := h.wagers.PlaceWager(r.Context(), GetUserID(r.Context()), req.BoxID, req.ClientSeed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, receipt)
}

// DemoSpin runs an unpersisted, unverifiable spin
func (h *Handler) DemoSpin(w http.ResponseWriter, r *http.Request) {
	boxID, ok := pathID(w, r, "boxID")
	if !ok {
		return
	}
	var req DemoSpinRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	outcome, err := h.wagers.DemoSpin(r.Context(), boxID, req.ClientSeed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, outcome)
}

// Verify proves a stored outcome from its revealed inputs
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	proof, err := h.audit.VerifySpin(r.Context(), req.ClientSeed, req.Secret, req.Nonce)
	h.recordVerification(err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, proof)
}

func (h *Handler) recordVerification(err error) {
	if h.verifies == nil {
		return
	}
	var failed *entities.VerificationFailedError
	switch {
	case err == nil:
		h.verifies.RecordVerification("verified")
	case errors.As(err, &failed):
		h.verifies.RecordVerification("not_found")
	default:
		h.verifies.RecordVerification("error")
	}
}

// GetBalance returns the caller's balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.GetBalance(r.Context(), GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, balance)
}

// ListTransactions returns the caller's history
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, GetUserID(r.Context()), false)
}

// MoveBalance moves funds between the caller's own buckets
func (h *Handler) MoveBalance(w http.ResponseWriter, r *http.Request) {
	var req MoveBalanceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := GetUserID(r.Context())
	record, err := h.ledger.MoveBalance(r.Context(), interfaces.MoveRequest{
		UserID:     userID,
		Amount:     req.Amount,
		FromBucket: entities.Bucket(req.FromBucket),
		ToBucket:   entities.Bucket(req.ToBucket),
		CreatedBy:  &userID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, record)
}

// SelfDebit spends from the caller's own account. There is no self-service credit.
func (h *Handler) SelfDebit(w http.ResponseWriter, r *http.Request) {
	var req SelfDebitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := GetUserID(r.Context())
	category := entities.CategoryWithdrawal
	if req.Category != "" {
		category = entities.Category(req.Category)
	}
	bucket := entities.BucketAvailable
	if req.Bucket != "" {
		bucket = entities.Bucket(req.Bucket)
	}

	metadata := map[string]any{entities.MetaInitiatedBy: userID}
	if req.Reason != "" {
		metadata[entities.MetaReason] = req.Reason
	}
	txReq := interfaces.TransactionRequest{
		UserID:    userID,
		Amount:    req.Amount,
		Direction: entities.DirectionDebit,
		Bucket:    bucket,
		Category:  category,
		CreatedBy: &userID,
		Metadata:  metadata,
	}
	if req.OrderID != "" {
		orderID := req.OrderID
		txReq.OrderID = &orderID
		metadata[entities.MetaOrderReference] = orderID
	}

	record, err := h.ledger.RecordTransaction(r.Context(), txReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, record)
}

// ListMySpins returns the caller's stored outcomes
func (h *Handler) ListMySpins(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	spins, err := h.wagers.ListUserSpins(r.Context(), GetUserID(r.Context()), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WithMeta(w, spins.Spins, spins.Pagination)
}

// ResellSpin exchanges the caller's winning item for credit
func (h *Handler) ResellSpin(w http.ResponseWriter, r *http.Request) {
	outcomeID, ok := pathID(w, r, "spinID")
	if !ok {
		return
	}
	receipt, err := h.resell.ResellOutcome(r.Context(), GetUserID(r.Context()), outcomeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, receipt)
}

// AdminTopUp credits a user's account as a deposit
func (h *Handler) AdminTopUp(w http.ResponseWriter, r *http.Request) {
	var req AdminTopUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.adminAdjust(w, r, interfaces.AdminAdjustment{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Direction: entities.DirectionCredit,
		Bucket:    entities.Bucket(req.Bucket),
		Category:  entities.CategoryDeposit,
		Reason:    req.Reason,
	})
}

// AdminDebit debits a user's account
func (h *Handler) AdminDebit(w http.ResponseWriter, r *http.Request) {
	var req AdminDebitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.adminAdjust(w, r, interfaces.AdminAdjustment{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Direction: entities.DirectionDebit,
		Bucket:    entities.Bucket(req.Bucket),
		Category:  entities.Category(req.Category),
		Reason:    req.Reason,
	})
}

func (h *Handler) adminAdjust(w http.ResponseWriter, r *http.Request, adj interfaces.AdminAdjustment) {
	adj.ActorID = GetUserID(r.Context())
	record, err := h.ledger.RecordAdminAdjustment(r.Context(), adj)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, record)
}

// AdminTransfer moves funds between two users
func (h *Handler) AdminTransfer(w http.ResponseWriter, r *http.Request) {
	var req AdminTransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actorID := GetUserID(r.Context())
	result, err := h.ledger.Transfer(r.Context(), interfaces.TransferRequest{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		FromBucket: entities.Bucket(req.FromBucket),
		ToBucket:   entities.Bucket(req.ToBucket),
		Manual:     true,
		CreatedBy:  &actorID,
		Metadata: map[string]any{
			entities.MetaInitiatedBy: actorID,
			entities.MetaReason:      req.Reason,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, result)
}

// UserTransfer sends funds from the caller to another account
func (h *Handler) UserTransfer(w http.ResponseWriter, r *http.Request) {
	var req UserTransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := GetUserID(r.Context())
	metadata := map[string]any{entities.MetaInitiatedBy: userID}
	if req.Reason != "" {
		metadata[entities.MetaReason] = req.Reason
	}
	result, err := h.ledger.Transfer(r.Context(), interfaces.TransferRequest{
		FromUserID: userID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		FromBucket: entities.Bucket(req.FromBucket),
		ToBucket:   entities.Bucket(req.ToBucket),
		CreatedBy:  &userID,
		Metadata:   metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, result)
}

// PayOrder settles one of the caller's orders with a vendor
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	var req OrderPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := GetUserID(r.Context())
	h.settleOrder(w, r, interfaces.OrderPaymentRequest{
		BuyerID:       userID,
		VendorID:      req.VendorID,
		Amount:        req.Amount,
		OrderID:       orderID,
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     userID,
	})
}

// AdminPayOrder settles an order on the buyer's behalf
func (h *Handler) AdminPayOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	var req AdminOrderPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.settleOrder(w, r, interfaces.OrderPaymentRequest{
		BuyerID:       req.BuyerID,
		VendorID:      req.VendorID,
		Amount:        req.Amount,
		OrderID:       orderID,
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     GetUserID(r.Context()),
	})
}

func (h *Handler) settleOrder(w http.ResponseWriter, r *http.Request, req interfaces.OrderPaymentRequest) {
	result, err := h.ledger.ProcessOrderPayment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, result)
}

// AdminReleaseVendorPayment makes a settled order's funds available to the vendor
func (h *Handler) AdminReleaseVendorPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	var req VendorReleaseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.ledger.ReleaseVendorPayment(r.Context(), interfaces.VendorReleaseRequest{
		VendorID: req.VendorID,
		Amount:   req.Amount,
		OrderID:  orderID,
		ActorID:  GetUserID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, record)
}

// AdminListUsers returns active users with their balances, optionally filtered by name
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	result, err := h.ledger.ListUsersWithBalances(r.Context(), r.URL.Query().Get("search"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WithMeta(w, result.Users, result.Pagination)
}

// AdminUserTransactions returns any user's history, deleted records included on request
func (h *Handler) AdminUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	h.writeHistory(w, r, userID, r.URL.Query().Get("includeDeleted") == "true")
}

// AdminUserBalance returns any user's balance
func (h *Handler) AdminUserBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, balance)
}

// AdminDeleteTransaction soft-deletes a record by reference id
func (h *Handler) AdminDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	referenceID := chi.URLParam(r, "referenceID")
	if err := h.ledger.SoftDelete(r.Context(), referenceID, GetUserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent(w)
}

// AdminListSpins lists outcomes across users
func (h *Handler) AdminListSpins(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var filter entities.SpinFilter
	fields := map[string]string{}
	if v := q.Get("userId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.UserID = &id
		} else {
			fields["userId"] = "must be a positive integer"
		}
	}
	if v := q.Get("boxId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.BoxID = &id
		} else {
			fields["boxId"] = "must be a positive integer"
		}
	}
	filter.From = parseTime(q.Get("from"), "from", fields)
	filter.To = parseTime(q.Get("to"), "to", fields)
	if len(fields) > 0 {
		validationFailed(w, fields)
		return
	}

	spins, err := h.wagers.ListSpins(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WithMeta(w, spins.Spins, spins.Pagination)
}

func (h *Handler) writeHistory(w http.ResponseWriter, r *http.Request, userID int64, includeDeleted bool) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := entities.HistoryFilter{IncludeDeleted: includeDeleted}
	fields := map[string]string{}
	if v := q.Get("status"); v != "" {
		status := entities.Status(v)
		if status.IsValid() {
			filter.Status = &status
		} else {
			fields["status"] = "is invalid"
		}
	}
	if v := q.Get("direction"); v != "" {
		direction := entities.Direction(v)
		if direction.IsValid() {
			filter.Direction = &direction
		} else {
			fields["direction"] = "must be credit or debit"
		}
	}
	if v := q.Get("category"); v != "" {
		category := entities.Category(v)
		if category.IsValid() {
			filter.Category = &category
		} else {
			fields["category"] = "is invalid"
		}
	}
	filter.From = parseTime(q.Get("from"), "from", fields)
	filter.To = parseTime(q.Get("to"), "to", fields)
	if len(fields) > 0 {
		validationFailed(w, fields)
		return
	}

	history, err := h.ledger.History(r.Context(), userID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WithMeta(w, history.Records, history.Pagination)
}

func parsePage(w http.ResponseWriter, r *http.Request) (entities.PageRequest, bool) {
	q := r.URL.Query()
	var page entities.PageRequest
	fields := map[string]string{}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["page"] = "must be a positive integer"
		}
		page.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["limit"] = "must be a positive integer"
		}
		page.Limit = n
	}
	if len(fields) > 0 {
		validationFailed(w, fields)
		return entities.PageRequest{}, false
	}
	return page.Normalize(), true
}

func parseTime(value, field string, fields map[string]string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		fields[field] = "must be an RFC3339 timestamp"
		return nil
	}
	return &t
}

func pathOrderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" || len(orderID) > 64 {
		badRequest(w, "Invalid orderID")
		return "", false
	}
	return orderID, true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		log.WithField("param", param).Debug("Rejected malformed path id")
		badRequest(w, "Invalid "+param)
		return 0, false
	}
	return id, true
}
