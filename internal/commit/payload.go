package commit

import (
	"github.com/shopspring/decimal"

	"adonel/pkg/models"
	"adonel/pkg/services"
)

// SelectImportable keeps the records that may be sent, in session order. A record that
// is not flagged invalid but still lacks a unit or date is left out.
func SelectImportable(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if models.Importable(r) {
			out = append(out, r)
		}
	}
	return out
}

// BuildSalesPayload strips sales records down to what the backend stores.
// A record without an explicit operational-day flag counts as an operational day.
func BuildSalesPayload(records []models.Record) []services.SalesEntry {
	entries := make([]services.SalesEntry, 0, len(records))
	for _, r := range records {
		sales := models.SalesBreakdown{
			TotalRevenue: decimal.Zero,
			Cash:         decimal.Zero,
			Pix:          decimal.Zero,
			Card:         decimal.Zero,
			Receivable:   decimal.Zero,
			Check:        decimal.Zero,
		}
		if r.Sales != nil {
			sales = *r.Sales
		}
		operational := true
		if r.IsOperationalDay != nil {
			operational = *r.IsOperationalDay
		}

		entries = append(entries, services.SalesEntry{
			UnitID:           *r.UnitID,
			Date:             *r.Date,
			TotalRevenue:     sales.TotalRevenue,
			TotalOrders:      sales.TotalOrders,
			TotalItems:       sales.TotalItems,
			Cash:             sales.Cash,
			Pix:              sales.Pix,
			Card:             sales.Card,
			Receivable:       sales.Receivable,
			Check:            sales.Check,
			IsOperationalDay: operational,
		})
	}
	return entries
}

// BuildReceivablesPayload flattens each record's lines into one entry per client,
// carrying the record's unit and date.
func BuildReceivablesPayload(records []models.Record) []services.ReceivableEntry {
	var entries []services.ReceivableEntry
	for _, r := range records {
		for _, item := range r.Items {
			entries = append(entries, services.ReceivableEntry{
				UnitID:           *r.UnitID,
				ReferenceDate:    *r.Date,
				ClientCode:       item.ClientCode,
				AmountReceivable: item.AmountReceivable,
			})
		}
	}
	return entries
}

// BuildBatch selects the importable records and shapes them for kind.
// It returns ErrNothingToImport when nothing survives the filter.
func BuildBatch(kind models.Kind, records []models.Record, opts Options) (services.Batch, error) {
	selected := SelectImportable(records)
	if len(selected) == 0 {
		return services.Batch{}, ErrNothingToImport
	}

	batch := services.Batch{Kind: kind, Options: opts.importOptions()}
	switch kind {
	case models.KindReceivables:
		batch.Receivables = BuildReceivablesPayload(selected)
	default:
		batch.Sales = BuildSalesPayload(selected)
	}
	return batch, nil
}
