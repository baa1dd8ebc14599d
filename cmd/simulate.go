package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"lootledger/config"
	"lootledger/domain/entities"
	"lootledger/domain/services"
	"lootledger/domain/utils"

	"github.com/olekukonko/tablewriter"
)

// Simulate replays spins outcomes of a catalog box through the fairness engine and
// prints observed win rates next to the configured odds. Nothing is persisted.
func Simulate(ctx context.Context, boxID int64, spins int, out io.Writer) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	a, err := bootstrap(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	box, err := uow.BoxRepository().GetByID(ctx, boxID)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to load box: %w", err)
	}
	if box == nil {
		return &entities.BoxNotFoundError{BoxID: boxID}
	}

	report, err := services.AnalyzeOdds(a.engine, box.Snapshot(), "simulation", spins)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Box %s (%d), price %s, %d spins\n", box.Name, box.ID, utils.FormatMinorUnits(box.Price), report.Spins)
	renderOddsReport(out, report, box.Price)
	return nil
}

func renderOddsReport(out io.Writer, report *services.OddsReport, price int64) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Item", "Value", "Odd", "Wins", "Observed", "Deviation"})
	for _, freq := range report.Items {
		table.Append([]string{
			freq.Item.Slug,
			utils.FormatMinorUnits(freq.Item.Value),
			strconv.FormatFloat(freq.Item.Odd, 'f', 4, 64),
			strconv.Itoa(freq.Wins),
			strconv.FormatFloat(freq.Observed, 'f', 4, 64),
			fmt.Sprintf("%+.4f", freq.Observed-freq.Item.Odd),
		})
	}
	table.Render()

	verdict := "consistent with configured odds"
	if !report.WithinTolerance() {
		verdict = "NOT consistent with configured odds"
	}
	fmt.Fprintf(out, "Chi-squared %.2f (95%% threshold %.2f): %s\n", report.ChiSquared, report.Critical, verdict)
	fmt.Fprintf(out, "Expected value per spin %.2f, observed %.2f, return to player %.2f%%\n",
		report.ExpectedValue/100, report.ObservedValue/100, report.ReturnToPlayer(price)*100)
}
