// Package preview shapes an import session into display rows: status, formatted amounts
// and what the user still has to fix. Renderers (terminal table, XLSX, Google Sheets,
// JSON) consume the same View.
package preview

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"adonel/pkg/models"
)

// Placeholder is shown for values that are not known yet.
const Placeholder = "—"

// Row is one record as displayed.
type Row struct {
	Index      int           `json:"index"`
	Status     models.Status `json:"status"`
	Importable bool          `json:"importable"`
	Source     string        `json:"source"`
	UnitID     *int          `json:"unitId"`
	Unit       string        `json:"unit"`
	Date       string        `json:"date"`
	Missing    []string      `json:"missing,omitempty"`
	Messages   []string      `json:"messages,omitempty"`

	// Sales columns
	TotalRevenue   string `json:"totalRevenue,omitempty"`
	Cash           string `json:"cash,omitempty"`
	Pix            string `json:"pix,omitempty"`
	Card           string `json:"card,omitempty"`
	Receivable     string `json:"receivable,omitempty"`
	Check          string `json:"check,omitempty"`
	TotalOrders    int    `json:"totalOrders,omitempty"`
	TotalItems     int    `json:"totalItems,omitempty"`
	OperationalDay bool   `json:"operationalDay"`

	// Divergence is total minus the payment breakdown, empty when they agree.
	Divergence string `json:"divergence,omitempty"`

	// Receivables columns
	Lines      int    `json:"lines,omitempty"`
	LinesTotal string `json:"linesTotal,omitempty"`
}

// View is the whole preview of a session.
type View struct {
	Kind    models.Kind    `json:"kind"`
	Rows    []Row          `json:"rows"`
	Summary models.Summary `json:"summary"`

	// ReceivableTotal is Summary.ReceivableTotal formatted.
	ReceivableTotal string `json:"receivableTotal,omitempty"`
}

// Build derives the view from the current records. It holds no state of its own.
func Build(kind models.Kind, records []models.Record) View {
	v := View{
		Kind:    kind,
		Rows:    make([]Row, 0, len(records)),
		Summary: models.Summarize(records),
	}
	if kind == models.KindReceivables {
		v.ReceivableTotal = FormatBRL(v.Summary.ReceivableTotal)
	}
	for i, r := range records {
		v.Rows = append(v.Rows, buildRow(i, r))
	}
	return v
}

func buildRow(index int, r models.Record) Row {
	row := Row{
		Index:      index,
		Status:     models.ClassifyStatus(r),
		Importable: models.Importable(r),
		Source:     r.Source(),
		UnitID:     r.UnitID,
		Unit:       unitLabel(r),
		Date:       Placeholder,
		Missing:    models.MissingFields(r),
	}
	if r.Date != nil {
		row.Date = FormatDate(*r.Date)
	}

	if r.Invalid {
		row.Messages = append(row.Messages, r.ErrorMessage)
		return row
	}
	row.Messages = append(row.Messages, r.Warnings...)

	switch r.Kind {
	case models.KindReceivables:
		row.Lines = len(r.Items)
		row.LinesTotal = FormatBRL(r.ItemsTotal())
	default:
		row.OperationalDay = r.IsOperationalDay == nil || *r.IsOperationalDay
		if r.Sales != nil {
			s := r.Sales
			row.TotalRevenue = FormatBRL(s.TotalRevenue)
			row.Cash = FormatBRL(s.Cash)
			row.Pix = FormatBRL(s.Pix)
			row.Card = FormatBRL(s.Card)
			row.Receivable = FormatBRL(s.Receivable)
			row.Check = FormatBRL(s.Check)
			row.TotalOrders = s.TotalOrders
			row.TotalItems = s.TotalItems
			if diff := models.BreakdownDiff(*s); !diff.IsZero() {
				row.Divergence = FormatBRL(diff)
			}
		}
	}
	return row
}

func unitLabel(r models.Record) string {
	switch {
	case r.UnitID == nil:
		return Placeholder
	case r.UnitName != "":
		return r.UnitName
	case r.UnitCode != "":
		return r.UnitCode
	default:
		return "#" + strconv.Itoa(*r.UnitID)
	}
}

// FormatBRL formats an amount as Brazilian reais: R$ 1.234,56.
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return sign + "R$ " + b.String() + "," + frac
}

// FormatDate turns YYYY-MM-DD into dd/mm/yyyy. Unparseable input is returned unchanged.
func FormatDate(s string) string {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}
