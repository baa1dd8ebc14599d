package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"time"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
)

const (
	// secretBytes is the entropy of a commit secret (256 bits)
	secretBytes = 32

	// maxNormalizer divides the leading 32 bits of the digest
	maxNormalizer = float64(0xFFFFFFFF)

	// oddsTolerance absorbs float drift when odds are meant to sum to 1
	oddsTolerance = 1e-9
)

type fairnessEngine struct {
	random io.Reader
	now    func() time.Time
}

// NewFairnessEngine creates a fairness engine backed by crypto/rand
func NewFairnessEngine() interfaces.FairnessEngine {
	return NewFairnessEngineWithReader(rand.Reader)
}

// NewFairnessEngineWithReader creates a fairness engine that draws entropy from r
func NewFairnessEngineWithReader(r io.Reader) interfaces.FairnessEngine {
	return &fairnessEngine{random: r, now: time.Now}
}

// GenerateCommitSecret returns 32 random bytes, hex encoded
func (e *fairnessEngine) GenerateCommitSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(e.random, buf); err != nil {
		return "", fmt.Errorf("failed to read entropy for commit secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Commit returns the SHA-256 hex digest of the secret
func (e *fairnessEngine) Commit(secret string) string {
	return sha256Hex(secret)
}

// ComputeOutcome hashes "secret-clientSeed-nonce" and selects the item whose
// cumulative odds range contains the normalized digest prefix
func (e *fairnessEngine) ComputeOutcome(secret, clientSeed string, nonce int64, items []entities.Item) (*entities.OutcomeComputation, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	digest := OutcomeDigest(secret, clientSeed, nonce)
	normalized, err := NormalizeDigest(digest)
	if err != nil {
		return nil, &entities.OutcomeComputationError{Reason: err.Error()}
	}

	ranges := BuildOddsRanges(items)
	winner, err := SelectWinner(ranges, items, normalized)
	if err != nil {
		return nil, err
	}

	return &entities.OutcomeComputation{
		Digest:      digest,
		Normalized:  normalized,
		OddsRanges:  ranges,
		WinningItem: winner,
	}, nil
}

// Verify recomputes the outcome and checks both the digest and the winner
func (e *fairnessEngine) Verify(secret, clientSeed string, nonce int64, items []entities.Item, claimedWinner entities.Item, claimedHash string) bool {
	computed, err := e.ComputeOutcome(secret, clientSeed, nonce, items)
	if err != nil {
		return false
	}
	return computed.Digest == claimedHash &&
		computed.WinningItem.ID == claimedWinner.ID &&
		computed.WinningItem.Slug == claimedWinner.Slug
}

// DemoOutcome picks a winner by uniform random index. The digest is produced for
// display only; the winner is not derived from it.
func (e *fairnessEngine) DemoOutcome(clientSeed string, items []entities.Item) (*entities.DemoOutcome, error) {
	if len(items) == 0 {
		return nil, entities.NewValidationError("items", "box has no items")
	}

	secret, err := e.GenerateCommitSecret()
	if err != nil {
		return nil, err
	}

	idx, err := rand.Int(e.random, big.NewInt(int64(len(items))))
	if err != nil {
		return nil, fmt.Errorf("failed to draw demo index: %w", err)
	}

	return &entities.DemoOutcome{
		Commitment:  e.Commit(secret),
		ClientSeed:  clientSeed,
		Digest:      OutcomeDigest(secret, clientSeed, 0),
		WinningItem: items[idx.Int64()],
		Verifiable:  false,
		CreatedAt:   e.now().UTC(),
	}, nil
}

// OutcomeDigest returns sha256("secret-clientSeed-nonce") as lowercase hex
func OutcomeDigest(secret, clientSeed string, nonce int64) string {
	return sha256Hex(secret + "-" + clientSeed + "-" + strconv.FormatInt(nonce, 10))
}

// NormalizeDigest maps the leading 8 hex characters of a digest onto [0, 1]
func NormalizeDigest(digest string) (float64, error) {
	if len(digest) < 8 {
		return 0, fmt.Errorf("digest too short: %d characters", len(digest))
	}
	prefix, err := strconv.ParseUint(digest[:8], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("digest prefix is not hex: %w", err)
	}
	return float64(prefix) / maxNormalizer, nil
}

// BuildOddsRanges walks items in order assigning each [running, running+odd)
func BuildOddsRanges(items []entities.Item) []entities.OddsRange {
	ranges := make([]entities.OddsRange, len(items))
	running := 0.0
	for i, item := range items {
		ranges[i] = entities.OddsRange{
			ItemID: item.ID,
			Slug:   item.Slug,
			Start:  running,
			End:    running + item.Odd,
		}
		running += item.Odd
	}
	return ranges
}

// SelectWinner returns the item whose range contains normalized.
//
// When the odds cover the unit interval (within float tolerance) the final
// non-empty range also owns the 1.0 endpoint, which a digest prefix of ffffffff
// produces. Anything else outside every range is a computation failure.
func SelectWinner(ranges []entities.OddsRange, items []entities.Item, normalized float64) (entities.Item, error) {
	for i, r := range ranges {
		if r.Contains(normalized) {
			return items[i], nil
		}
	}

	total := 0.0
	if len(ranges) > 0 {
		total = ranges[len(ranges)-1].End
	}

	if total >= 1-oddsTolerance && normalized >= total && normalized <= 1 {
		for i := len(ranges) - 1; i >= 0; i-- {
			if ranges[i].End > ranges[i].Start {
				return items[i], nil
			}
		}
	}

	return entities.Item{}, &entities.OutcomeComputationError{
		Normalized: normalized,
		OddsTotal:  total,
	}
}

func validateItems(items []entities.Item) error {
	if len(items) == 0 {
		return &entities.OutcomeComputationError{Reason: "item list is empty"}
	}
	for _, item := range items {
		if item.Odd < 0 || math.IsNaN(item.Odd) || math.IsInf(item.Odd, 0) {
			return &entities.OutcomeComputationError{
				Reason: fmt.Sprintf("item %d has invalid odd %v", item.ID, item.Odd),
			}
		}
	}
	return nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
