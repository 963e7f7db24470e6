package preview

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"adonel/pkg/models"
)

// SheetName returns the worksheet title used for kind.
func SheetName(kind models.Kind) string {
	if kind == models.KindReceivables {
		return "Duplicatas"
	}
	return "Vendas"
}

// WriteXLSX writes the preview as a workbook with one sheet plus a summary row.
func WriteXLSX(w io.Writer, v View) error {
	const op = "WriteXLSX"

	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(v.Kind)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("%s: failed to name sheet: %w", op, err)
	}

	headers := Headers(v.Kind)
	if err := setRow(f, sheet, 1, headers); err != nil {
		return fmt.Errorf("%s: failed to write headers: %w", op, err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E8EAED"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("%s: failed to create header style: %w", op, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("%s: failed to style headers: %w", op, err)
	}

	for i, r := range v.Rows {
		if err := setRow(f, sheet, i+2, Cells(v.Kind, r)); err != nil {
			return fmt.Errorf("%s: failed to write row %d: %w", op, r.Index, err)
		}
	}

	summaryRow := len(v.Rows) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	if err := f.SetCellValue(sheet, cell, SummaryLine(v)); err != nil {
		return fmt.Errorf("%s: failed to write summary: %w", op, err)
	}

	if err := f.SetColWidth(sheet, "C", "C", 32); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.SetColWidth(sheet, lastCol, lastCol, 60); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("%s: failed to write workbook: %w", op, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
