package entities

import "time"

// WagerStage is a step of the wager state machine
type WagerStage string

const (
	StageValidating      WagerStage = "validating"
	StagePricingChecked  WagerStage = "pricing_checked"
	StageOutcomeComputed WagerStage = "outcome_computed"
	StageDebited         WagerStage = "debited"
	StageRecorded        WagerStage = "recorded"
	StageCommitted       WagerStage = "committed"
	StageAborted         WagerStage = "aborted"
)

// WagerAbort is the audit entry left behind when a wager fails after its
// commitment was produced. The secret itself is never stored here.
type WagerAbort struct {
	ID         int64      `db:"id" json:"id"`
	BoxID      int64      `db:"box_id" json:"boxId"`
	UserID     int64      `db:"user_id" json:"userId"`
	Nonce      *int64     `db:"nonce" json:"nonce,omitempty"`
	Commitment string     `db:"commitment" json:"commitment"`
	ClientSeed string     `db:"client_seed" json:"clientSeed"`
	Stage      WagerStage `db:"stage" json:"stage"`
	Reason     string     `db:"reason" json:"reason"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}
