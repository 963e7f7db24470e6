package preview

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"adonel/pkg/models"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
)

// StatusLabel is the short Portuguese label of a status.
func StatusLabel(s models.Status) string {
	switch s {
	case models.StatusError:
		return "❌ erro"
	case models.StatusWarning:
		return "⚠️ aviso"
	default:
		return "✅ ok"
	}
}

// Headers returns the column titles for kind, shared by every tabular renderer.
func Headers(kind models.Kind) []string {
	if kind == models.KindReceivables {
		return []string{"#", "Status", "Arquivo", "Unidade", "Data", "Títulos", "Total a receber", "Observações"}
	}
	return []string{"#", "Status", "Arquivo", "Unidade", "Data", "Faturamento", "Dinheiro", "PIX", "Cartão",
		"Duplicata", "Cheque", "Pedidos", "Peças", "Dia operacional", "Observações"}
}

// Cells returns the row values in Headers order.
func Cells(kind models.Kind, r Row) []string {
	notes := Notes(r)
	if kind == models.KindReceivables {
		return []string{
			strconv.Itoa(r.Index), StatusLabel(r.Status), r.Source, r.Unit, r.Date,
			strconv.Itoa(r.Lines), orPlaceholder(r.LinesTotal), notes,
		}
	}
	operational := "sim"
	if !r.OperationalDay {
		operational = "não"
	}
	if r.Status == models.StatusError {
		operational = Placeholder
	}
	return []string{
		strconv.Itoa(r.Index), StatusLabel(r.Status), r.Source, r.Unit, r.Date,
		orPlaceholder(r.TotalRevenue), orPlaceholder(r.Cash), orPlaceholder(r.Pix), orPlaceholder(r.Card),
		orPlaceholder(r.Receivable), orPlaceholder(r.Check),
		strconv.Itoa(r.TotalOrders), strconv.Itoa(r.TotalItems), operational, notes,
	}
}

// Notes joins messages, missing fields and breakdown divergence into one cell.
func Notes(r Row) string {
	var parts []string
	parts = append(parts, r.Messages...)
	if len(r.Missing) > 0 {
		parts = append(parts, "falta: "+strings.Join(missingLabels(r.Missing), ", "))
	}
	if r.Divergence != "" {
		parts = append(parts, "diferença no detalhamento: "+r.Divergence)
	}
	return strings.Join(parts, "; ")
}

func missingLabels(fields []string) []string {
	labels := map[string]string{"unitId": "unidade", "date": "data", "items": "títulos"}
	out := make([]string, len(fields))
	for i, f := range fields {
		if l, ok := labels[f]; ok {
			out[i] = l
		} else {
			out[i] = f
		}
	}
	return out
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

// Render writes the preview as a table followed by the summary line.
func Render(w io.Writer, v View) error {
	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = Cells(v.Kind, r)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(Headers(v.Kind)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(v.Rows) {
				switch v.Rows[row].Status {
				case models.StatusError:
					return errorStyle.Padding(0, 1)
				case models.StatusWarning:
					return warningStyle.Padding(0, 1)
				default:
					return okStyle.Padding(0, 1)
				}
			}
			return cellStyle
		})

	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, SummaryLine(v))
	return err
}

// SummaryLine is the one-line count shown under the table.
func SummaryLine(v View) string {
	s := v.Summary
	line := fmt.Sprintf("%d registro(s): %d pronto(s) para importar, %d com erro, %d pendente(s), %d com aviso",
		s.Total, s.Valid, s.Invalid, s.Pending, s.Warned)
	if v.Kind == models.KindReceivables {
		line += fmt.Sprintf(" | %d título(s), total %s", s.ReceivableCount, v.ReceivableTotal)
	}
	return line
}
