package services

import (
	"context"

	"github.com/shopspring/decimal"

	"adonel/pkg/models"
)

// ImportService is the backend contract the import workflow depends on.
// Parsing, persistence and duplicate detection all happen on the other side.
type ImportService interface {
	// ParseFiles sends one selection of report files in a single request and returns
	// one record per file, in the order the backend produced them.
	ParseFiles(ctx context.Context, kind models.Kind, files []FileContent) (*ParseResult, error)

	// ImportBatch persists a batch of stripped records and reports aggregate counts.
	ImportBatch(ctx context.Context, batch Batch) (*ImportResult, error)
}

// UnitDirectory lists the units known to the backend.
type UnitDirectory interface {
	Units(ctx context.Context) ([]models.Unit, error)
}

// FileContent is a report file already read to text.
type FileContent struct {
	Name    string `json:"nome"`
	Content string `json:"conteudo"`
}

// ParseResult is the response of a multi-file parse call.
type ParseResult struct {
	Records   []models.Record
	Total     int
	Processed int
	Errors    int
}

// ImportOptions are forwarded to the backend with every batch.
type ImportOptions struct {
	ValidateDuplicates bool
	AllowPartial       bool
}

// SalesEntry is a sales record stripped of UI-only fields.
type SalesEntry struct {
	UnitID           int
	Date             string
	TotalRevenue     decimal.Decimal
	TotalOrders      int
	TotalItems       int
	Cash             decimal.Decimal
	Pix              decimal.Decimal
	Card             decimal.Decimal
	Receivable       decimal.Decimal
	Check            decimal.Decimal
	IsOperationalDay bool
}

// ReceivableEntry is one flattened receivable line; the backend imports lines, not files.
type ReceivableEntry struct {
	UnitID           int
	ReferenceDate    string
	ClientCode       string
	AmountReceivable decimal.Decimal
}

// Batch is one import request. Exactly one of Sales or Receivables is used, per Kind.
type Batch struct {
	Kind        models.Kind
	Sales       []SalesEntry
	Receivables []ReceivableEntry
	Options     ImportOptions
}

// Len returns the number of entries that will be transmitted.
func (b Batch) Len() int {
	if b.Kind == models.KindReceivables {
		return len(b.Receivables)
	}
	return len(b.Sales)
}

// ImportResult is the aggregate outcome reported by the backend.
type ImportResult struct {
	Imported int
	Rejected int
}
