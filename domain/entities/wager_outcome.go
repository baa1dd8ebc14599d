package entities

import "time"

// OddsRange is the half-open interval [Start, End) an item occupies
type OddsRange struct {
	ItemID int64   `json:"itemId"`
	Slug   string  `json:"slug"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

// Contains reports whether v falls inside the range
func (r OddsRange) Contains(v float64) bool {
	return v >= r.Start && v < r.End
}

// OutcomeComputation is the deterministic result of hashing secret, client seed and nonce
type OutcomeComputation struct {
	Digest      string      `json:"digest"`
	Normalized  float64     `json:"normalized"`
	OddsRanges  []OddsRange `json:"oddsRanges"`
	WinningItem Item        `json:"winningItem"`
}

// WagerOutcome is the persisted record of a fair spin. It is only ever created by the
// commit-reveal path and is always verifiable.
type WagerOutcome struct {
	ID                         int64       `db:"id" json:"id"`
	BoxID                      int64       `db:"box_id" json:"boxId"`
	UserID                     int64       `db:"user_id" json:"userId"`
	Nonce                      int64       `db:"nonce" json:"nonce"`
	ServerSecret               string      `db:"server_secret" json:"serverSecret"`
	Commitment                 string      `db:"commitment" json:"commitment"`
	ClientSeed                 string      `db:"client_seed" json:"clientSeed"`
	WinningItem                Item        `db:"winning_item" json:"winningItem"`
	ItemsSnapshot              []Item      `db:"items_snapshot" json:"itemsSnapshot"`
	OddsRanges                 []OddsRange `db:"odds_ranges" json:"oddsRanges"`
	Normalized                 float64     `db:"normalized" json:"normalized"`
	Digest                     string      `db:"digest" json:"digest"`
	Price                      int64       `db:"price" json:"price"`
	TransactionReference       string      `db:"transaction_reference" json:"transactionReference"`
	ProcessedForResell         bool        `db:"processed_for_resell" json:"processedForResell"`
	ResellTransactionReference *string     `db:"resell_transaction_reference" json:"resellTransactionReference,omitempty"`
	CreatedAt                  time.Time   `db:"created_at" json:"createdAt"`
}

// Verifiable is always true for a persisted fair outcome
func (o *WagerOutcome) Verifiable() bool {
	return true
}

// CanResell reports whether the winning item may still be exchanged for credit
func (o *WagerOutcome) CanResell() bool {
	return !o.ProcessedForResell
}

// DemoOutcome is the result of a trial spin. Its winner is picked uniformly at random,
// not from the digest, so it can never be verified and Verifiable is always false.
// It is never persisted.
type DemoOutcome struct {
	BoxID       int64     `json:"boxId"`
	Commitment  string    `json:"commitment"`
	ClientSeed  string    `json:"clientSeed"`
	Digest      string    `json:"digest"`
	WinningItem Item      `json:"winningItem"`
	Verifiable  bool      `json:"verifiable"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WagerReceipt is what a committed wager returns to the caller
type WagerReceipt struct {
	Outcome             *WagerOutcome `json:"outcome"`
	NewAvailableBalance int64         `json:"newAvailableBalance"`
}

// VerificationProof is returned by a successful audit
type VerificationProof struct {
	OutcomeID   int64   `json:"outcomeId"`
	BoxID       int64   `json:"boxId"`
	Nonce       int64   `json:"nonce"`
	Commitment  string  `json:"commitment"`
	Digest      string  `json:"digest"`
	Normalized  float64 `json:"normalized"`
	WinningItem Item    `json:"winningItem"`
}

// ResellReceipt is returned after a winning item is exchanged for credit
type ResellReceipt struct {
	Outcome             *WagerOutcome      `json:"outcome"`
	Transaction         *TransactionRecord `json:"transaction"`
	NewAvailableBalance int64              `json:"newAvailableBalance"`
}
