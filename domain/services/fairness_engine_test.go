package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"lootledger/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func threeItems() []entities.Item {
	return []entities.Item{
		{ID: 1, Slug: "common", Name: "Common", Value: 10, Odd: 0.5},
		{ID: 2, Slug: "rare", Name: "Rare", Value: 50, Odd: 0.3},
		{ID: 3, Slug: "epic", Name: "Epic", Value: 200, Odd: 0.2},
	}
}

func TestFairnessEngine_GenerateCommitSecret(t *testing.T) {
	t.Run("produces 256 bits of hex", func(t *testing.T) {
		engine := NewFairnessEngine()

		secret, err := engine.GenerateCommitSecret()
		require.NoError(t, err)
		assert.Len(t, secret, 64)

		_, err = hex.DecodeString(secret)
		assert.NoError(t, err)

		other, err := engine.GenerateCommitSecret()
		require.NoError(t, err)
		assert.NotEqual(t, secret, other)
	})

	t.Run("uses the injected reader", func(t *testing.T) {
		engine := NewFairnessEngineWithReader(bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)))

		secret, err := engine.GenerateCommitSecret()
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(bytes.Repeat([]byte{0xab}, 32)), secret)
	})

	t.Run("entropy failure is returned", func(t *testing.T) {
		engine := NewFairnessEngineWithReader(failingReader{})

		_, err := engine.GenerateCommitSecret()
		assert.Error(t, err)
	})
}

func TestFairnessEngine_Commit(t *testing.T) {
	engine := NewFairnessEngine()

	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", engine.Commit("abc"))
	assert.NotEqual(t, engine.Commit("abc"), engine.Commit("abd"))
}

func TestOutcomeDigest_Format(t *testing.T) {
	sum := sha256.Sum256([]byte("S-C-1"))
	assert.Equal(t, hex.EncodeToString(sum[:]), OutcomeDigest("S", "C", 1))

	sum = sha256.Sum256([]byte("secret-seed-1234567890"))
	assert.Equal(t, hex.EncodeToString(sum[:]), OutcomeDigest("secret", "seed", 1234567890))
}

func TestNormalizeDigest(t *testing.T) {
	tests := []struct {
		name     string
		digest   string
		expected float64
	}{
		{"zero", "00000000aaaa", 0},
		{"max", "ffffffff0000", 1},
		{"half", "80000000", float64(0x80000000) / float64(0xFFFFFFFF)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDigest(tt.digest)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-15)
		})
	}

	_, err := NormalizeDigest("abc")
	assert.Error(t, err)

	_, err = NormalizeDigest("zzzzzzzz")
	assert.Error(t, err)
}

func TestBuildOddsRanges_NoGapsOrOverlaps(t *testing.T) {
	items := threeItems()
	ranges := BuildOddsRanges(items)

	require.Len(t, ranges, 3)
	assert.Equal(t, 0.0, ranges[0].Start)
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1].End, ranges[i].Start)
	}
	assert.InDelta(t, 1.0, ranges[2].End, 1e-12)

	for step := 0; step < 10000; step++ {
		v := float64(step) / 10000
		matches := 0
		for _, r := range ranges {
			if r.Contains(v) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "value %v matched %d ranges", v, matches)
	}
}

func TestSelectWinner(t *testing.T) {
	items := threeItems()
	ranges := BuildOddsRanges(items)

	t.Run("0.6 selects the second item", func(t *testing.T) {
		winner, err := SelectWinner(ranges, items, 0.6)
		require.NoError(t, err)
		assert.Equal(t, int64(2), winner.ID)
	})

	t.Run("range starts are inclusive", func(t *testing.T) {
		winner, err := SelectWinner(ranges, items, 0.5)
		require.NoError(t, err)
		assert.Equal(t, int64(2), winner.ID)

		winner, err = SelectWinner(ranges, items, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), winner.ID)
	})

	t.Run("the 1.0 endpoint goes to the last item when odds cover the interval", func(t *testing.T) {
		winner, err := SelectWinner(ranges, items, 1.0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), winner.ID)
	})

	t.Run("zero-odd items are never selected", func(t *testing.T) {
		withZero := []entities.Item{
			{ID: 1, Slug: "a", Odd: 0.5},
			{ID: 2, Slug: "never", Odd: 0},
			{ID: 3, Slug: "b", Odd: 0.5},
		}
		r := BuildOddsRanges(withZero)

		winner, err := SelectWinner(r, withZero, 0.5)
		require.NoError(t, err)
		assert.Equal(t, int64(3), winner.ID)

		winner, err = SelectWinner(r, withZero, 1.0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), winner.ID)
	})

	t.Run("value past short odds fails", func(t *testing.T) {
		short := []entities.Item{{ID: 1, Slug: "a", Odd: 0.4}, {ID: 2, Slug: "b", Odd: 0.4}}

		_, err := SelectWinner(BuildOddsRanges(short), short, 0.9)

		var compErr *entities.OutcomeComputationError
		require.ErrorAs(t, err, &compErr)
		assert.InDelta(t, 0.9, compErr.Normalized, 1e-12)
		assert.InDelta(t, 0.8, compErr.OddsTotal, 1e-12)
	})
}

func TestFairnessEngine_ComputeOutcome(t *testing.T) {
	engine := NewFairnessEngine()
	items := threeItems()

	t.Run("is deterministic and self-consistent", func(t *testing.T) {
		first, err := engine.ComputeOutcome("S", "C", 1, items)
		require.NoError(t, err)

		second, err := engine.ComputeOutcome("S", "C", 1, items)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, OutcomeDigest("S", "C", 1), first.Digest)

		expected, err := NormalizeDigest(first.Digest)
		require.NoError(t, err)
		assert.Equal(t, expected, first.Normalized)

		winner, err := SelectWinner(first.OddsRanges, items, first.Normalized)
		require.NoError(t, err)
		assert.Equal(t, winner, first.WinningItem)
	})

	t.Run("empty items fail", func(t *testing.T) {
		_, err := engine.ComputeOutcome("S", "C", 1, nil)

		var compErr *entities.OutcomeComputationError
		assert.ErrorAs(t, err, &compErr)
	})

	t.Run("negative odds fail", func(t *testing.T) {
		bad := []entities.Item{{ID: 1, Slug: "a", Odd: 1.2}, {ID: 2, Slug: "b", Odd: -0.2}}

		_, err := engine.ComputeOutcome("S", "C", 1, bad)

		var compErr *entities.OutcomeComputationError
		assert.ErrorAs(t, err, &compErr)
	})

	t.Run("all-zero odds fail for every nonce", func(t *testing.T) {
		zero := []entities.Item{{ID: 1, Slug: "a", Odd: 0}}
		for nonce := int64(1); nonce <= 20; nonce++ {
			_, err := engine.ComputeOutcome("S", "C", nonce, zero)
			var compErr *entities.OutcomeComputationError
			assert.ErrorAs(t, err, &compErr)
		}
	})
}

func TestFairnessEngine_Verify(t *testing.T) {
	engine := NewFairnessEngine()
	items := threeItems()

	for nonce := int64(1); nonce <= 50; nonce++ {
		secret, err := engine.GenerateCommitSecret()
		require.NoError(t, err)

		outcome, err := engine.ComputeOutcome(secret, "client-seed", nonce, items)
		require.NoError(t, err)

		assert.True(t, engine.Verify(secret, "client-seed", nonce, items, outcome.WinningItem, outcome.Digest))

		// Any single altered input breaks the digest
		assert.False(t, engine.Verify(secret+"0", "client-seed", nonce, items, outcome.WinningItem, outcome.Digest))
		assert.False(t, engine.Verify(secret, "client-seeD", nonce, items, outcome.WinningItem, outcome.Digest))
		assert.False(t, engine.Verify(secret, "client-seed", nonce+1, items, outcome.WinningItem, outcome.Digest))

		tampered := []byte(outcome.Digest)
		if tampered[10] == 'a' {
			tampered[10] = 'b'
		} else {
			tampered[10] = 'a'
		}
		assert.False(t, engine.Verify(secret, "client-seed", nonce, items, outcome.WinningItem, string(tampered)))

		other := items[(outcome.WinningItem.ID)%3]
		assert.False(t, engine.Verify(secret, "client-seed", nonce, items, other, outcome.Digest))
	}
}

func TestFairnessEngine_DemoOutcome(t *testing.T) {
	engine := NewFairnessEngine()
	items := threeItems()

	seen := map[int64]bool{}
	for i := 0; i < 300; i++ {
		demo, err := engine.DemoOutcome("trial", items)
		require.NoError(t, err)

		assert.False(t, demo.Verifiable)
		assert.Len(t, demo.Commitment, 64)
		assert.Len(t, demo.Digest, 64)
		assert.Contains(t, items, demo.WinningItem)
		seen[demo.WinningItem.ID] = true
	}
	assert.Len(t, seen, 3, "uniform pick should reach every item")

	_, err := engine.DemoOutcome("trial", nil)
	var validation *entities.ValidationError
	assert.ErrorAs(t, err, &validation)
}
