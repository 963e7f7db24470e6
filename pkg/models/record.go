package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind selects which report family a record belongs to.
type Kind string

const (
	KindSales       Kind = "vendas"     // daily cash-register sales report
	KindReceivables Kind = "duplicatas" // receivables (contas a receber) report
)

// ParseKind accepts the Portuguese endpoint names and a few English aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vendas", "venda", "sales":
		return KindSales, nil
	case "duplicatas", "duplicata", "receivables":
		return KindReceivables, nil
	default:
		return "", fmt.Errorf("unknown record kind: %q (must be 'vendas' or 'duplicatas')", s)
	}
}

// Noun returns the singular Portuguese noun used in user-facing messages.
func (k Kind) Noun() string {
	if k == KindReceivables {
		return "duplicata"
	}
	return "venda"
}

// Unit is one retail location of the chain.
type Unit struct {
	ID   int    `json:"id" yaml:"id"`
	Code string `json:"codigo" yaml:"codigo"`
	Name string `json:"nome" yaml:"nome"`
}

// SalesBreakdown carries the monetary split of a sales record.
// TotalRevenue is expected to equal the sum of the payment methods but it is not enforced.
type SalesBreakdown struct {
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	Cash         decimal.Decimal `json:"cash"`
	Pix          decimal.Decimal `json:"pix"`
	Card         decimal.Decimal `json:"card"`
	Receivable   decimal.Decimal `json:"receivable"`
	Check        decimal.Decimal `json:"check"`
	TotalOrders  int             `json:"totalOrders"`
	TotalItems   int             `json:"totalItems"`
}

// ReceivableItem is one client-owed line of a receivables report.
type ReceivableItem struct {
	ClientCode       string          `json:"clientCode"`
	AmountReceivable decimal.Decimal `json:"amountReceivable"`
}

// Record is one parsed file or one manual entry in an import session.
type Record struct {
	Kind Kind `json:"kind"`

	// SourceName is the originating file name, nil for manual entries.
	SourceName *string `json:"sourceName"`

	// Unit assignment; unresolved until detected or chosen.
	UnitID   *int   `json:"unitId"`
	UnitName string `json:"unitName,omitempty"`
	UnitCode string `json:"unitCode,omitempty"`

	// Date in YYYY-MM-DD form, nil when detection failed.
	Date *string `json:"date"`

	// Sales is set for KindSales records.
	Sales *SalesBreakdown `json:"sales,omitempty"`

	// Items is set for KindReceivables records.
	Items []ReceivableItem `json:"items,omitempty"`

	// IsOperationalDay distinguishes a day without sales from a closed day.
	IsOperationalDay *bool `json:"isOperationalDay,omitempty"`

	Invalid      bool     `json:"invalid"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Source returns the file name or "Manual".
func (r *Record) Source() string {
	if r.SourceName == nil || *r.SourceName == "" {
		return "Manual"
	}
	return *r.SourceName
}

// ItemsTotal sums the receivable lines of the record.
func (r *Record) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.AmountReceivable)
	}
	return total
}

// Clone returns a deep copy so that callers never alias session state.
func (r Record) Clone() Record {
	out := r
	if r.SourceName != nil {
		out.SourceName = StringPtr(*r.SourceName)
	}
	if r.UnitID != nil {
		out.UnitID = IntPtr(*r.UnitID)
	}
	if r.Date != nil {
		out.Date = StringPtr(*r.Date)
	}
	if r.Sales != nil {
		sales := *r.Sales
		out.Sales = &sales
	}
	if r.Items != nil {
		out.Items = append([]ReceivableItem(nil), r.Items...)
	}
	if r.IsOperationalDay != nil {
		out.IsOperationalDay = BoolPtr(*r.IsOperationalDay)
	}
	if r.Warnings != nil {
		out.Warnings = append([]string(nil), r.Warnings...)
	}
	return out
}

// CloneAll deep-copies a record slice.
func CloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}

func StringPtr(s string) *string { return &s }
func IntPtr(i int) *int          { return &i }
func BoolPtr(b bool) *bool       { return &b }
