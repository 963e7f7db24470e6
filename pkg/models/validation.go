package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the display classification of a record.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// DateLayout is the calendar format exchanged with the backend.
const DateLayout = "2006-01-02"

// ClassifyStatus returns Error for parse failures, Warning for importable-but-noisy
// records and OK otherwise. A record missing its unit or date is still OK or Warning here;
// use Importable to decide what gets committed.
func ClassifyStatus(r Record) Status {
	switch {
	case r.Invalid:
		return StatusError
	case len(r.Warnings) > 0:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Importable reports whether the record may be sent in a batch import.
func Importable(r Record) bool {
	if r.Invalid || r.UnitID == nil || r.Date == nil {
		return false
	}
	if r.Kind == KindReceivables && len(r.Items) == 0 {
		return false
	}
	return true
}

// MissingFields lists the required fields the user still has to fill in.
// Invalid records report nothing: they must be discarded, not fixed.
func MissingFields(r Record) []string {
	if r.Invalid {
		return nil
	}
	var missing []string
	if r.UnitID == nil {
		missing = append(missing, "unitId")
	}
	if r.Date == nil {
		missing = append(missing, "date")
	}
	if r.Kind == KindReceivables && len(r.Items) == 0 {
		missing = append(missing, "items")
	}
	return missing
}

// Summary holds the derived counts shown above a preview.
type Summary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`   // importable
	Invalid int `json:"invalid"` // parse failures
	Pending int `json:"pending"` // not invalid, but missing a required field
	Warned  int `json:"warned"`

	// Receivables only, over importable records.
	ReceivableCount int             `json:"receivableCount"`
	ReceivableTotal decimal.Decimal `json:"receivableTotal"`
}

// Summarize recomputes the counts from the current record state.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records), ReceivableTotal: decimal.Zero}
	for _, r := range records {
		if ClassifyStatus(r) == StatusWarning {
			s.Warned++
		}
		switch {
		case r.Invalid:
			s.Invalid++
		case Importable(r):
			s.Valid++
			if r.Kind == KindReceivables {
				s.ReceivableCount += len(r.Items)
				s.ReceivableTotal = s.ReceivableTotal.Add(r.ItemsTotal())
			}
		default:
			s.Pending++
		}
	}
	return s
}

// ValidDate reports whether s is a real calendar day in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// BreakdownDiff returns TotalRevenue minus the sum of the payment methods.
func BreakdownDiff(b SalesBreakdown) decimal.Decimal {
	sum := b.Cash.Add(b.Pix).Add(b.Card).Add(b.Receivable).Add(b.Check)
	return b.TotalRevenue.Sub(sum)
}
