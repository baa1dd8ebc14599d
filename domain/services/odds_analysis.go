package services

import (
	"fmt"
	"math"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
)

// ItemFrequency compares how often an item won against its configured odd
type ItemFrequency struct {
	Item     entities.Item
	Wins     int
	Expected float64
	Observed float64
}

// OddsReport is the result of replaying a box through the fairness engine
type OddsReport struct {
	Spins      int
	Items      []ItemFrequency
	ChiSquared float64
	// Critical is the 95% chi-squared threshold for len(Items)-1 degrees of freedom
	Critical float64
	// ExpectedValue is the configured mean item value per spin
	ExpectedValue float64
	// ObservedValue is the mean item value actually won
	ObservedValue float64
}

// WithinTolerance reports whether the observed distribution is consistent with the odds
func (r *OddsReport) WithinTolerance() bool {
	return r.ChiSquared <= r.Critical
}

// ReturnToPlayer is the configured expected value as a fraction of price
func (r *OddsReport) ReturnToPlayer(price int64) float64 {
	if price <= 0 {
		return 0
	}
	return r.ExpectedValue / float64(price)
}

// AnalyzeOdds replays spins outcomes with one secret and consecutive nonces, the
// same way a live box consumes them, and tallies each item's wins.
func AnalyzeOdds(engine interfaces.FairnessEngine, items []entities.Item, clientSeed string, spins int) (*OddsReport, error) {
	if len(items) == 0 {
		return nil, entities.NewValidationError("items", "box has no items")
	}
	if spins <= 0 {
		return nil, entities.NewValidationError("spins", "must be a positive integer")
	}

	secret, err := engine.GenerateCommitSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	wins := make(map[int64]int, len(items))
	var wonValue int64
	for nonce := int64(1); nonce <= int64(spins); nonce++ {
		outcome, err := engine.ComputeOutcome(secret, clientSeed, nonce, items)
		if err != nil {
			return nil, err
		}
		wins[outcome.WinningItem.ID]++
		wonValue += outcome.WinningItem.Value
	}

	report := &OddsReport{
		Spins:         spins,
		Items:         make([]ItemFrequency, 0, len(items)),
		Critical:      chiSquaredCritical95(len(items) - 1),
		ObservedValue: float64(wonValue) / float64(spins),
	}
	for _, item := range items {
		expected := item.Odd * float64(spins)
		freq := ItemFrequency{
			Item:     item,
			Wins:     wins[item.ID],
			Expected: expected,
			Observed: float64(wins[item.ID]) / float64(spins),
		}
		report.Items = append(report.Items, freq)
		report.ExpectedValue += item.Odd * float64(item.Value)
		if expected > 0 {
			report.ChiSquared += math.Pow(float64(freq.Wins)-expected, 2) / expected
		}
	}
	return report, nil
}

// chiSquaredCritical95 returns the 0.95 quantile for df degrees of freedom using the
// Wilson-Hilferty approximation.
func chiSquaredCritical95(df int) float64 {
	if df < 1 {
		return 0
	}
	const z = 1.6448536269514722
	k := float64(df)
	v := 1 - 2/(9*k) + z*math.Sqrt(2/(9*k))
	return k * v * v * v
}
