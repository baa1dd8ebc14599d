package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
	"lootledger/domain/testhelpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	handler  http.Handler
	ledger   *testhelpers.MockLedgerService
	wagers   *testhelpers.MockWagerService
	audit    *testhelpers.MockAuditService
	resell   *testhelpers.MockResellService
	verifies *countingVerifications
}

type countingVerifications struct {
	results []string
}

func (c *countingVerifications) RecordVerification(result string) {
	c.results = append(c.results, result)
}

func newTestServer(t *testing.T, demoEnabled bool) *testServer {
	t.Helper()
	s := &testServer{
		ledger:   new(testhelpers.MockLedgerService),
		wagers:   new(testhelpers.MockWagerService),
		audit:    new(testhelpers.MockAuditService),
		resell:   new(testhelpers.MockResellService),
		verifies: &countingVerifications{},
	}
	h := NewHandler(s.ledger, s.wagers, s.audit, s.resell, s.verifies)
	s.handler = NewRouter(h, RouterConfig{JWTSecret: testSecret, DemoSpinEnabled: demoEnabled})
	t.Cleanup(func() {
		s.ledger.AssertExpectations(t)
		s.wagers.AssertExpectations(t)
		s.audit.AssertExpectations(t)
		s.resell.AssertExpectations(t)
	})
	return s
}

func signToken(t *testing.T, userID int64, role entities.Role, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestAuth(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, resp := s.do(t, http.MethodGet, "/api/v1/me/balance", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeUnauthorized, resp.Error.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		s := newTestServer(t, true)
		token := signToken(t, 7, entities.RoleUser, -time.Minute)
		rec, resp := s.do(t, http.MethodGet, "/api/v1/me/balance", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Token has expired", resp.Error.Message)
	})

	t.Run("wrong secret", func(t *testing.T) {
		s := newTestServer(t, true)
		claims := Claims{Role: "user", RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
		require.NoError(t, err)
		rec, _ := s.do(t, http.MethodGet, "/api/v1/me/balance", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		s := newTestServer(t, true)
		claims := Claims{Role: "user", RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		rec, _ := s.do(t, http.MethodGet, "/api/v1/me/balance", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("admin routes reject users", func(t *testing.T) {
		s := newTestServer(t, true)
		token := signToken(t, 7, entities.RoleUser, time.Hour)
		rec, resp := s.do(t, http.MethodPost, "/api/v1/admin/topups", token, AdminTopUpRequest{UserID: 2, Amount: 10, Reason: "x"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeForbidden, resp.Error.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		s := newTestServer(t, true)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})
}

func TestPlaceWager(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t, true)
		receipt := &entities.WagerReceipt{
			Outcome:             &entities.WagerOutcome{ID: 11, BoxID: 3, UserID: 7, Nonce: 1, ClientSeed: "seed"},
			NewAvailableBalance: 50,
		}
		s.wagers.On("PlaceWager", mock.Anything, int64(7), int64(3), "seed").Return(receipt, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/v1/wagers", signToken(t, 7, entities.RoleUser, time.Hour), PlaceWagerRequest{BoxID: 3, ClientSeed: "seed"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(50), data["newAvailableBalance"])
	})

	t.Run("insufficient balance carries amounts", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("PlaceWager", mock.Anything, int64(7), int64(3), "seed").
			Return(nil, &entities.InsufficientBalanceError{Bucket: entities.BucketAvailable, Required: 100, Available: 40})

		rec, resp := s.do(t, http.MethodPost, "/api/v1/wagers", signToken(t, 7, entities.RoleUser, time.Hour), PlaceWagerRequest{BoxID: 3, ClientSeed: "seed"})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInsufficientBalance, resp.Error.Code)
		assert.Equal(t, float64(100), resp.Error.Details["required"])
		assert.Equal(t, float64(40), resp.Error.Details["available"])
	})

	t.Run("box not found", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("PlaceWager", mock.Anything, int64(7), int64(99), "seed").Return(nil, &entities.BoxNotFoundError{BoxID: 99})

		rec, _ := s.do(t, http.MethodPost, "/api/v1/wagers", signToken(t, 7, entities.RoleUser, time.Hour), PlaceWagerRequest{BoxID: 99, ClientSeed: "seed"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing client seed", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, resp := s.do(t, http.MethodPost, "/api/v1/wagers", signToken(t, 7, entities.RoleUser, time.Hour), map[string]any{"boxId": 3})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, CodeValidation, resp.Error.Code)
		assert.Contains(t, resp.Error.Details, "clientSeed")
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("PlaceWager", mock.Anything, int64(7), int64(3), "seed").
			Return(nil, errors.New("pq: password authentication failed for user secret"))

		rec, resp := s.do(t, http.MethodPost, "/api/v1/wagers", signToken(t, 7, entities.RoleUser, time.Hour), PlaceWagerRequest{BoxID: 3, ClientSeed: "seed"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", resp.Error.Message)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("exhausted conflict retries", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("PlaceWager", mock.Anything, int64(7), int64(3), "seed").
			Return(nil, &entities.StorageConflictError{Op: "place_wager", Err: errors.New("deadlock")})

		rec, _ := s.do(t, http.MethodPost, "/api/v1/wagers", signToken(t, 7, entities.RoleUser, time.Hour), PlaceWagerRequest{BoxID: 3, ClientSeed: "seed"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestDemoSpin(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("DemoSpin", mock.Anything, int64(3), "seed").Return(&entities.DemoOutcome{BoxID: 3, ClientSeed: "seed"}, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/v1/boxes/3/demo", "", DemoSpinRequest{ClientSeed: "seed"})
		assert.Equal(t, http.StatusOK, rec.Code)
		data := resp.Data.(map[string]any)
		assert.Equal(t, false, data["verifiable"])
		assert.Equal(t, "seed", data["clientSeed"])
		assert.EqualValues(t, 3, data["boxId"])
	})

	t.Run("demo outcome always serializes verifiable false", func(t *testing.T) {
		raw, err := json.Marshal(entities.DemoOutcome{BoxID: 3})
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"verifiable":false`)
	})

	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, false)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/boxes/3/demo", "", DemoSpinRequest{ClientSeed: "seed"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad box id", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/boxes/abc/demo", "", DemoSpinRequest{ClientSeed: "seed"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerify(t *testing.T) {
	t.Run("proof", func(t *testing.T) {
		s := newTestServer(t, true)
		proof := &entities.VerificationProof{OutcomeID: 11, Nonce: 1, Digest: "abc"}
		s.audit.On("VerifySpin", mock.Anything, "seed", "secret", int64(1)).Return(proof, nil)

		rec, resp := s.do(t, http.MethodPost, "/api/v1/verify", "", VerifyRequest{ClientSeed: "seed", Secret: "secret", Nonce: 1})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc", resp.Data.(map[string]any)["digest"])
		assert.Equal(t, []string{"verified"}, s.verifies.results)
	})

	t.Run("no match is a client error", func(t *testing.T) {
		s := newTestServer(t, true)
		s.audit.On("VerifySpin", mock.Anything, "seed", "secret", int64(2)).Return(nil, entities.ErrVerificationFailed)

		rec, resp := s.do(t, http.MethodPost, "/api/v1/verify", "", VerifyRequest{ClientSeed: "seed", Secret: "secret", Nonce: 2})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, CodeVerificationFailed, resp.Error.Code)
		assert.Equal(t, []string{"not_found"}, s.verifies.results)
	})

	t.Run("nonce must be positive", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/verify", "", VerifyRequest{ClientSeed: "seed", Secret: "secret"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Empty(t, s.verifies.results)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/verify", "", map[string]any{"clientSeed": "s", "secret": "x", "nonce": 1, "items": []int{1}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBalanceAndHistory(t *testing.T) {
	t.Run("balance", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("GetBalance", mock.Anything, int64(7)).Return(entities.BalanceView{Available: 60, Pending: 40, Total: 100}, nil)

		rec, resp := s.do(t, http.MethodGet, "/api/v1/me/balance", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(100), data["total"])
	})

	t.Run("history with filters", func(t *testing.T) {
		s := newTestServer(t, true)
		page := &entities.HistoryPage{
			Records:    []*entities.TransactionRecord{{ReferenceID: "TXN_1"}},
			Pagination: entities.NewPagination(entities.PageRequest{Page: 2, Limit: 5}, 6),
		}
		s.ledger.On("History", mock.Anything, int64(7),
			mock.MatchedBy(func(f entities.HistoryFilter) bool {
				return f.Direction != nil && *f.Direction == entities.DirectionDebit &&
					f.Category != nil && *f.Category == entities.CategorySpend &&
					f.From != nil && !f.IncludeDeleted
			}),
			entities.PageRequest{Page: 2, Limit: 5},
		).Return(page, nil)

		rec, resp := s.do(t, http.MethodGet,
			"/api/v1/me/transactions?direction=debit&category=spend&from=2025-01-01T00:00:00Z&page=2&limit=5",
			signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		meta := resp.Meta.(map[string]any)
		assert.Equal(t, float64(2), meta["currentPage"])
		assert.Equal(t, true, meta["hasPrev"])
		assert.Equal(t, false, meta["hasNext"])
	})

	t.Run("limit is clamped", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("History", mock.Anything, int64(7), entities.HistoryFilter{}, entities.PageRequest{Page: 1, Limit: entities.MaxPageLimit}).
			Return(&entities.HistoryPage{Records: []*entities.TransactionRecord{}}, nil)

		rec, _ := s.do(t, http.MethodGet, "/api/v1/me/transactions?limit=1000", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad filter values", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, resp := s.do(t, http.MethodGet, "/api/v1/me/transactions?direction=sideways&from=yesterday", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, resp.Error.Details, "direction")
		assert.Contains(t, resp.Error.Details, "from")
	})
}

func TestSelfService(t *testing.T) {
	t.Run("debit targets own account", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(req interfaces.TransactionRequest) bool {
			return req.UserID == 7 && req.Direction == entities.DirectionDebit &&
				req.Category == entities.CategoryWithdrawal && req.Bucket == entities.BucketAvailable &&
				req.CreatedBy != nil && *req.CreatedBy == 7
		})).Return(&entities.TransactionRecord{ReferenceID: "TXN_2"}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/debits", signToken(t, 7, entities.RoleUser, time.Hour), SelfDebitRequest{Amount: 25})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("credit categories are refused", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, resp := s.do(t, http.MethodPost, "/api/v1/me/debits", signToken(t, 7, entities.RoleUser, time.Hour), SelfDebitRequest{Amount: 25, Category: "deposit"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, resp.Error.Details, "category")
	})

	t.Run("move between own buckets", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("MoveBalance", mock.Anything, mock.MatchedBy(func(req interfaces.MoveRequest) bool {
			return req.UserID == 7 && req.FromBucket == entities.BucketPending && req.ToBucket == entities.BucketAvailable
		})).Return(&entities.TransactionRecord{ReferenceID: "TXN_3"}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/balance/move", signToken(t, 7, entities.RoleUser, time.Hour),
			MoveBalanceRequest{Amount: 10, FromBucket: "pending", ToBucket: "available"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("move to the same bucket", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/balance/move", signToken(t, 7, entities.RoleUser, time.Hour),
			MoveBalanceRequest{Amount: 10, FromBucket: "pending", ToBucket: "pending"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("resell", func(t *testing.T) {
		s := newTestServer(t, true)
		s.resell.On("ResellOutcome", mock.Anything, int64(7), int64(11)).
			Return(&entities.ResellReceipt{NewAvailableBalance: 80}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/spins/11/resell", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("resell twice", func(t *testing.T) {
		s := newTestServer(t, true)
		s.resell.On("ResellOutcome", mock.Anything, int64(7), int64(11)).Return(nil, entities.ErrAlreadyResold)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/spins/11/resell", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("resell someone else's spin", func(t *testing.T) {
		s := newTestServer(t, true)
		s.resell.On("ResellOutcome", mock.Anything, int64(7), int64(12)).Return(nil, entities.ErrNotOutcomeOwner)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/spins/12/resell", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("list spins", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("ListUserSpins", mock.Anything, int64(7), entities.PageRequest{Page: 1, Limit: entities.DefaultPageLimit}).
			Return(&entities.SpinPage{Spins: []*entities.WagerOutcome{{ID: 1}}}, nil)

		rec, resp := s.do(t, http.MethodGet, "/api/v1/me/spins", signToken(t, 7, entities.RoleUser, time.Hour), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, resp.Data, 1)
	})
}

func TestAdminEndpoints(t *testing.T) {
	adminToken := func(t *testing.T) string { return signToken(t, 1, entities.RoleAdmin, time.Hour) }

	t.Run("top up", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("RecordAdminAdjustment", mock.Anything, interfaces.AdminAdjustment{
			UserID:    2,
			Amount:    500,
			Direction: entities.DirectionCredit,
			Category:  entities.CategoryDeposit,
			ActorID:   1,
			Reason:    "promo",
		}).Return(&entities.TransactionRecord{ReferenceID: "TXN_4"}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/topups", adminToken(t), AdminTopUpRequest{UserID: 2, Amount: 500, Reason: "promo"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("top up rejects non-deposit categories", func(t *testing.T) {
		s := newTestServer(t, true)
		for _, category := range []string{"withdrawal", "refund", "adjustment", "spend"} {
			rec, resp := s.do(t, http.MethodPost, "/api/v1/admin/topups", adminToken(t), AdminTopUpRequest{UserID: 2, Amount: 500, Category: category, Reason: "promo"})
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, category)
			assert.Contains(t, resp.Error.Details, "category")
		}
		s.ledger.AssertNotCalled(t, "RecordAdminAdjustment", mock.Anything, mock.Anything)
	})

	t.Run("debit requires category", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, resp := s.do(t, http.MethodPost, "/api/v1/admin/debits", adminToken(t), AdminDebitRequest{UserID: 2, Amount: 5, Reason: "fix"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, resp.Error.Details, "category")
	})

	t.Run("inactive account", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("RecordAdminAdjustment", mock.Anything, mock.Anything).Return(nil, &entities.AccountInactiveError{UserID: 2})

		rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/debits", adminToken(t), AdminDebitRequest{UserID: 2, Amount: 5, Category: "adjustment", Reason: "fix"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("transfer", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("Transfer", mock.Anything, mock.MatchedBy(func(req interfaces.TransferRequest) bool {
			return req.FromUserID == 2 && req.ToUserID == 3 && req.Amount == 75 &&
				req.Manual && req.CreatedBy != nil && *req.CreatedBy == 1
		})).Return(&interfaces.TransferResult{
			Debit:  &entities.TransactionRecord{ReferenceID: "TXN_5"},
			Credit: &entities.TransactionRecord{ReferenceID: "TXN_6"},
		}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/transfers", adminToken(t), AdminTransferRequest{FromUserID: 2, ToUserID: 3, Amount: 75, Reason: "merge"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("release vendor payment", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("ReleaseVendorPayment", mock.Anything, interfaces.VendorReleaseRequest{
			VendorID: 8, Amount: 120, OrderID: "ORD-1", ActorID: 1,
		}).Return(&entities.TransactionRecord{ReferenceID: "TXN_9"}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/orders/ORD-1/release", adminToken(t), VendorReleaseRequest{VendorID: 8, Amount: 120})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("settle order for a buyer", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("ProcessOrderPayment", mock.Anything, interfaces.OrderPaymentRequest{
			BuyerID: 4, VendorID: 8, Amount: 50, OrderID: "ORD-2", CreatedBy: 1,
		}).Return(&interfaces.TransferResult{}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/orders/ORD-2/payment", adminToken(t), AdminOrderPaymentRequest{BuyerID: 4, VendorID: 8, Amount: 50})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("list users with balances", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("ListUsersWithBalances", mock.Anything, "ann", entities.PageRequest{Page: 2, Limit: 5}).
			Return(&entities.UserBalancePage{
				Users: []*entities.UserWithBalance{{
					UserAccount: entities.UserAccount{ID: 3, FirstName: "Ann"},
					Balance:     entities.Balance{Available: 40, Pending: 2}.View(),
				}},
				Pagination: entities.NewPagination(entities.PageRequest{Page: 2, Limit: 5}, 6),
			}, nil)

		rec, resp := s.do(t, http.MethodGet, "/api/v1/admin/users?search=ann&page=2&limit=5", adminToken(t), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		users := resp.Data.([]any)
		require.Len(t, users, 1)
		balance := users[0].(map[string]any)["balance"].(map[string]any)
		assert.EqualValues(t, 42, balance["total"])
	})

	t.Run("user listing is admin only", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, _ := s.do(t, http.MethodGet, "/api/v1/admin/users", signToken(t, 7, entities.RoleVendor, time.Hour), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("transfer to self", func(t *testing.T) {
		s := newTestServer(t, true)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/transfers", adminToken(t), AdminTransferRequest{FromUserID: 2, ToUserID: 2, Amount: 75, Reason: "x"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("soft delete", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("SoftDelete", mock.Anything, "TXN_7", int64(1)).Return(nil)

		rec, _ := s.do(t, http.MethodDelete, "/api/v1/admin/transactions/TXN_7", adminToken(t), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("soft delete missing record", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("SoftDelete", mock.Anything, "TXN_8", int64(1)).Return(&entities.TransactionNotFoundError{ReferenceID: "TXN_8"})

		rec, _ := s.do(t, http.MethodDelete, "/api/v1/admin/transactions/TXN_8", adminToken(t), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("user history includes deleted on request", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("History", mock.Anything, int64(2), entities.HistoryFilter{IncludeDeleted: true}, mock.Anything).
			Return(&entities.HistoryPage{Records: []*entities.TransactionRecord{}}, nil)

		rec, _ := s.do(t, http.MethodGet, "/api/v1/admin/users/2/transactions?includeDeleted=true", adminToken(t), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list spins with filters", func(t *testing.T) {
		s := newTestServer(t, true)
		s.wagers.On("ListSpins", mock.Anything, mock.MatchedBy(func(f entities.SpinFilter) bool {
			return f.UserID != nil && *f.UserID == 2 && f.BoxID != nil && *f.BoxID == 3
		}), mock.Anything).Return(&entities.SpinPage{Spins: []*entities.WagerOutcome{}}, nil)

		rec, _ := s.do(t, http.MethodGet, "/api/v1/admin/spins?userId=2&boxId=3", adminToken(t), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRecoverMiddleware(t *testing.T) {
	h := RequestID(Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestUserTransfers(t *testing.T) {
	t.Run("caller is always the sender", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("Transfer", mock.Anything, mock.MatchedBy(func(req interfaces.TransferRequest) bool {
			return req.FromUserID == 7 && req.ToUserID == 9 && req.Amount == 30 &&
				!req.Manual && req.CreatedBy != nil && *req.CreatedBy == 7
		})).Return(&interfaces.TransferResult{
			Debit:  &entities.TransactionRecord{ReferenceID: "TXN_1"},
			Credit: &entities.TransactionRecord{ReferenceID: "TXN_2"},
		}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/transfers", signToken(t, 7, entities.RoleVendor, time.Hour), UserTransferRequest{ToUserID: 9, Amount: 30})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("transfer to self is rejected", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("Transfer", mock.Anything, mock.Anything).Return(nil, &entities.SameAccountTransferError{UserID: 7})

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/transfers", signToken(t, 7, entities.RoleUser, time.Hour), UserTransferRequest{ToUserID: 7, Amount: 30})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPayOrder(t *testing.T) {
	t.Run("caller pays as the buyer", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("ProcessOrderPayment", mock.Anything, interfaces.OrderPaymentRequest{
			BuyerID: 7, VendorID: 8, Amount: 50, OrderID: "ORD-1", PaymentMethod: "wallet", CreatedBy: 7,
		}).Return(&interfaces.TransferResult{
			Debit:  &entities.TransactionRecord{ReferenceID: "TXN_1"},
			Credit: &entities.TransactionRecord{ReferenceID: "TXN_2"},
		}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/orders/ORD-1/payment", signToken(t, 7, entities.RoleUser, time.Hour),
			OrderPaymentRequest{VendorID: 8, Amount: 50, PaymentMethod: "wallet"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("non-vendor payee is rejected", func(t *testing.T) {
		s := newTestServer(t, true)
		s.ledger.On("ProcessOrderPayment", mock.Anything, mock.Anything).Return(nil, entities.NewValidationError("vendorId", "is not a vendor account"))

		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/orders/ORD-1/payment", signToken(t, 7, entities.RoleUser, time.Hour),
			OrderPaymentRequest{VendorID: 8, Amount: 50})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("order id longer than a reference is rejected", func(t *testing.T) {
		s := newTestServer(t, true)
		long := strings.Repeat("x", 65)
		rec, _ := s.do(t, http.MethodPost, "/api/v1/me/orders/"+long+"/payment", signToken(t, 7, entities.RoleUser, time.Hour),
			OrderPaymentRequest{VendorID: 8, Amount: 50})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		s.ledger.AssertNotCalled(t, "ProcessOrderPayment", mock.Anything, mock.Anything)
	})
}
