package cmd

import (
	"bytes"
	"testing"
	"time"

	"lootledger/config"
	"lootledger/domain/entities"
	"lootledger/domain/services"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRenderHistory(t *testing.T) {
	pending := entities.BucketPending
	records := []*entities.TransactionRecord{
		{
			ReferenceID:  "TXN_1700000000000_ABCDEF123456",
			Amount:       1250,
			Direction:    entities.DirectionDebit,
			Bucket:       entities.BucketAvailable,
			Category:     entities.CategorySpend,
			BalanceAfter: entities.Balance{Available: 8750},
			CreatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ReferenceID:  "TXN_1700000000001_ABCDEF654321",
			Amount:       500,
			Direction:    entities.DirectionDebit,
			Bucket:       entities.BucketAvailable,
			ToBucket:     &pending,
			Category:     entities.CategoryMove,
			BalanceAfter: entities.Balance{Available: 8250, Pending: 500},
			CreatedAt:    time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
		},
	}

	var out bytes.Buffer
	renderHistory(&out, records)

	table := out.String()
	assert.Contains(t, table, "REFERENCE")
	assert.Contains(t, table, "TXN_1700000000000_ABCDEF123456")
	assert.Contains(t, table, "-12.50")
	assert.Contains(t, table, "87.50")
	assert.Contains(t, table, "available>pending")
	assert.Contains(t, table, "2025-03-01 12:05:00")
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	cfg := config.NewTestConfig()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"
	ConfigureLogging(cfg)
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	cfg.LogLevel = "chatty"
	cfg.LogFormat = "text"
	ConfigureLogging(cfg)
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}

func TestRenderOddsReport(t *testing.T) {
	report := &services.OddsReport{
		Spins: 1000,
		Items: []services.ItemFrequency{
			{Item: entities.Item{Slug: "common", Value: 50, Odd: 0.5}, Wins: 510, Observed: 0.51},
			{Item: entities.Item{Slug: "epic", Value: 500, Odd: 0.5}, Wins: 490, Observed: 0.49},
		},
		ChiSquared:    0.4,
		Critical:      3.84,
		ExpectedValue: 275,
		ObservedValue: 270,
	}

	var out bytes.Buffer
	renderOddsReport(&out, report, 500)

	text := out.String()
	assert.Contains(t, text, "common")
	assert.Contains(t, text, "+0.0100")
	assert.Contains(t, text, "consistent with configured odds")
	assert.NotContains(t, text, "NOT consistent")
	assert.Contains(t, text, "return to player 55.00%")
}
