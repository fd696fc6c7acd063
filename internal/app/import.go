package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/knakatani/kabufolio/internal/models"
)

type importLedgerFile struct {
	Positions []models.RawPosition `json:"positions"`
}

// ImportPositionsFromFile reads a ledger JSON file and imports its
// transactions into the position store. Entries whose ID already exists
// are skipped; entries without an ID get one assigned. Dates are
// canonicalized on the way in. Returns (imported count, skipped count,
// error).
func (a *App) ImportPositionsFromFile(ctx context.Context, filePath string) (int, int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read ledger file %s: %w", filePath, err)
	}

	var file importLedgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("failed to parse ledger file %s: %w", filePath, err)
	}

	existing, err := a.Positions.ListPositions(ctx)
	if err != nil {
		return 0, 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.ID] = true
	}

	imported, skipped := 0, 0
	for _, raw := range file.Positions {
		if raw.Ticker == "" || raw.Quantity <= 0 || raw.CostPerUnit <= 0 {
			a.Logger.Warn().Str("ticker", raw.Ticker).Msg("Skipping malformed ledger entry during import")
			skipped++
			continue
		}
		date, err := models.NormalizeDate(raw.TransactionDate)
		if err != nil {
			a.Logger.Warn().Str("ticker", raw.Ticker).Err(err).Msg("Skipping ledger entry with bad date during import")
			skipped++
			continue
		}
		raw.TransactionDate = date

		if raw.ID == "" {
			raw.ID = uuid.New().String()
		}
		if known[raw.ID] {
			skipped++
			continue
		}

		if err := a.Positions.AddPosition(ctx, raw); err != nil {
			a.Logger.Warn().Str("id", raw.ID).Err(err).Msg("Failed to import ledger entry")
			skipped++
			continue
		}
		known[raw.ID] = true
		a.Logger.Info().Str("id", raw.ID).Str("ticker", raw.Ticker).Msg("Position imported")
		imported++
	}
	return imported, skipped, nil
}
