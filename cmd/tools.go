package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"lootledger/config"
	"lootledger/domain/entities"
	"lootledger/domain/utils"
	"lootledger/infrastructure"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
)

// History prints the latest limit ledger records of a user as a table
func History(ctx context.Context, userID int64, limit int, out io.Writer) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	a, err := bootstrap(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	page, err := a.ledger.History(ctx, userID, entities.HistoryFilter{}, entities.PageRequest{Page: 1, Limit: limit})
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	balance, err := a.ledger.GetBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	renderHistory(out, page.Records)
	fmt.Fprintf(out, "Balance: available %s, pending %s, total %s (%d records in total)\n",
		utils.FormatMinorUnits(balance.Available),
		utils.FormatMinorUnits(balance.Pending),
		utils.FormatMinorUnits(balance.Total),
		page.Pagination.TotalCount)
	return nil
}

func renderHistory(out io.Writer, records []*entities.TransactionRecord) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Reference", "Time", "Category", "Bucket", "Amount", "Available", "Pending"})
	for _, r := range records {
		amount := r.Amount
		if r.IsDebit() {
			amount = -amount
		}
		bucket := string(r.Bucket)
		if r.ToBucket != nil {
			bucket = fmt.Sprintf("%s>%s", r.Bucket, *r.ToBucket)
		}
		table.Append([]string{
			r.ReferenceID,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(r.Category),
			bucket,
			utils.FormatSignedMinorUnits(amount),
			utils.FormatMinorUnits(r.BalanceAfter.Available),
			utils.FormatMinorUnits(r.BalanceAfter.Pending),
		})
	}
	table.Render()
}

// Verify checks revealed spin inputs against the stored outcomes
func Verify(ctx context.Context, clientSeed, secret string, nonce int64, out io.Writer) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	a, err := bootstrap(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	proof, err := a.audit.VerifySpin(ctx, clientSeed, secret, nonce)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Outcome", strconv.FormatInt(proof.OutcomeID, 10)})
	table.Append([]string{"Box", strconv.FormatInt(proof.BoxID, 10)})
	table.Append([]string{"Nonce", strconv.FormatInt(proof.Nonce, 10)})
	table.Append([]string{"Commitment", proof.Commitment})
	table.Append([]string{"Digest", proof.Digest})
	table.Append([]string{"Normalized", strconv.FormatFloat(proof.Normalized, 'f', 10, 64)})
	table.Append([]string{"Winning item", fmt.Sprintf("%s (%s)", proof.WinningItem.Name, utils.FormatMinorUnits(proof.WinningItem.Value))})
	table.Render()
	return nil
}

// Watch tails the ledger stream and logs every event until ctx is cancelled
func Watch(ctx context.Context, consumer string) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	if cfg.NATSServers == "" {
		return fmt.Errorf("NATS_SERVERS is not configured")
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer client.Close()

	watcher := infrastructure.NewLedgerEventConsumer(client, cfg.NATSStream, consumer)
	err := watcher.Start(ctx, func(ctx context.Context, envelope infrastructure.EventEnvelope) error {
		log.WithFields(log.Fields{
			"event_id":   envelope.EventID,
			"event_type": envelope.EventType,
			"timestamp":  envelope.Timestamp,
			"source":     envelope.SourceService,
			"payload":    string(envelope.Payload),
		}).Info("Ledger event")
		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"stream":   cfg.NATSStream,
		"consumer": consumer,
	}).Info("Watching ledger events")
	<-ctx.Done()
	return nil
}
