package main

import (
	"context"
	"fmt"

	"github.com/omrelabs/omre/internal/repositories"
	"github.com/urfave/cli/v3"
)

// Top prints the current top-scored predictions from the store.
func (r *Runner) Top(ctx context.Context, cmd *cli.Command) error {
	limit := int(cmd.Int("limit"))
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	predictions := repositories.NewPredictionRepository(db)

	top, err := predictions.Top(limit)
	if err != nil {
		return fmt.Errorf("failed to load predictions: %w", err)
	}

	if useJSON {
		return r.writeJSON(top, pretty)
	}

	if len(top) == 0 {
		r.writePlain("No predictions yet. Run 'omre pipeline run all' first.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Top %d Predictions (%s tape)", len(top), top[0].MarketRegime))
	for i, p := range top {
		r.writePlain("%2d. %-14s %.4f  %s\n", i+1, p.Tradingsymbol, p.Score, p.Signal)
		r.writePlain("    close %.2f  stop %.2f  target %.2f\n", p.LastClose, p.StopLoss, p.Target)
	}
	r.writePlain("\nGenerated: %s\n", top[0].GeneratedAt.Format("02 Jan 2006 15:04 MST"))

	return nil
}
