package session

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"adonel/internal/resolver"
	"adonel/pkg/models"
)

// Field names an editable record field. Values match the JSON names of models.Record.
type Field string

const (
	FieldUnitID           Field = "unitId"
	FieldUnitName         Field = "unitName"
	FieldUnitCode         Field = "unitCode"
	FieldDate             Field = "date"
	FieldTotalRevenue     Field = "totalRevenue"
	FieldCash             Field = "cash"
	FieldPix              Field = "pix"
	FieldCard             Field = "card"
	FieldReceivable       Field = "receivable"
	FieldCheck            Field = "check"
	FieldTotalOrders      Field = "totalOrders"
	FieldTotalItems       Field = "totalItems"
	FieldIsOperationalDay Field = "isOperationalDay"
)

var fields = []Field{
	FieldUnitID, FieldUnitName, FieldUnitCode, FieldDate,
	FieldTotalRevenue, FieldCash, FieldPix, FieldCard, FieldReceivable, FieldCheck,
	FieldTotalOrders, FieldTotalItems, FieldIsOperationalDay,
}

// Fields lists every editable field.
func Fields() []Field {
	return append([]Field(nil), fields...)
}

// ParseField validates a field name coming from user input.
func ParseField(name string) (Field, error) {
	for _, f := range fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", &FieldError{Field: Field(name), Value: nil, Message: "no such field", Err: ErrUnknownField}
}

func (f Field) salesOnly() bool {
	switch f {
	case FieldTotalRevenue, FieldCash, FieldPix, FieldCard, FieldReceivable, FieldCheck,
		FieldTotalOrders, FieldTotalItems:
		return true
	}
	return false
}

// applyField sets one field on rec. A nil value clears optional fields and zeroes amounts.
func applyField(rec *models.Record, field Field, value any, catalogue *resolver.Catalogue) error {
	if rec.Invalid {
		return newFieldError(field, value, "invalid records can only be removed")
	}
	if field.salesOnly() && rec.Kind != models.KindSales {
		return newFieldError(field, value, "field only applies to sales records")
	}

	switch field {
	case FieldUnitID:
		id, present, err := toInt(value)
		if err != nil {
			return newFieldError(field, value, err.Error())
		}
		if !present {
			rec.UnitID = nil
			rec.UnitName, rec.UnitCode = "", ""
			rec.Warnings = dropDetectionWarning(rec.Warnings)
			return nil
		}
		if id <= 0 {
			return newFieldError(field, value, "unit id must be positive")
		}
		rec.UnitID = models.IntPtr(id)
		rec.UnitName, rec.UnitCode = "", ""
		rec.Warnings = dropDetectionWarning(rec.Warnings)
		if catalogue != nil {
			if unit, ok := catalogue.ByID(id); ok {
				rec.UnitName = unit.Name
				rec.UnitCode = unit.Code
			}
		}

	case FieldUnitName, FieldUnitCode:
		s, err := toString(value)
		if err != nil {
			return newFieldError(field, value, err.Error())
		}
		if field == FieldUnitName {
			rec.UnitName = s
		} else {
			rec.UnitCode = s
		}

	case FieldDate:
		if t, ok := value.(time.Time); ok {
			rec.Date = models.StringPtr(t.Format(models.DateLayout))
			return nil
		}
		s, err := toString(value)
		if err != nil {
			return newFieldError(field, value, err.Error())
		}
		s = strings.TrimSpace(s)
		if s == "" {
			rec.Date = nil
			return nil
		}
		if !models.ValidDate(s) {
			return newFieldError(field, value, "expected YYYY-MM-DD")
		}
		rec.Date = models.StringPtr(s)

	case FieldTotalRevenue, FieldCash, FieldPix, FieldCard, FieldReceivable, FieldCheck:
		amount, err := toAmount(value)
		if err != nil {
			return newFieldError(field, value, err.Error())
		}
		if rec.Sales == nil {
			rec.Sales = &models.SalesBreakdown{}
		}
		switch field {
		case FieldTotalRevenue:
			rec.Sales.TotalRevenue = amount
		case FieldCash:
			rec.Sales.Cash = amount
		case FieldPix:
			rec.Sales.Pix = amount
		case FieldCard:
			rec.Sales.Card = amount
		case FieldReceivable:
			rec.Sales.Receivable = amount
		case FieldCheck:
			rec.Sales.Check = amount
		}

	case FieldTotalOrders, FieldTotalItems:
		n, _, err := toInt(value)
		if err != nil {
			return newFieldError(field, value, err.Error())
		}
		if n < 0 {
			return newFieldError(field, value, "count must not be negative")
		}
		if rec.Sales == nil {
			rec.Sales = &models.SalesBreakdown{}
		}
		if field == FieldTotalOrders {
			rec.Sales.TotalOrders = n
		} else {
			rec.Sales.TotalItems = n
		}

	case FieldIsOperationalDay:
		b, present, err := toBool(value)
		if err != nil {
			return newFieldError(field, value, err.Error())
		}
		if !present {
			rec.IsOperationalDay = nil
			return nil
		}
		rec.IsOperationalDay = models.BoolPtr(b)

	default:
		return &FieldError{Field: field, Value: value, Message: "no such field", Err: ErrUnknownField}
	}
	return nil
}

const (
	detectionPrefix = "Unidade "
	detectionSuffix = " detectada pelo nome do arquivo"
)

func detectionWarning(unitName string) string {
	return detectionPrefix + unitName + detectionSuffix
}

// dropDetectionWarning removes the note left by file name detection once the user picks the unit.
func dropDetectionWarning(warnings []string) []string {
	var kept []string
	for _, w := range warnings {
		if strings.HasPrefix(w, detectionPrefix) && strings.HasSuffix(w, detectionSuffix) {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

// checkManual holds a user-authored record to the same rules UpdateField applies.
func checkManual(rec models.Record) error {
	if rec.UnitID != nil && *rec.UnitID <= 0 {
		return newFieldError(FieldUnitID, *rec.UnitID, "unit id must be positive")
	}
	if b := rec.Sales; b != nil {
		amounts := []struct {
			field Field
			value decimal.Decimal
		}{
			{FieldTotalRevenue, b.TotalRevenue},
			{FieldCash, b.Cash},
			{FieldPix, b.Pix},
			{FieldCard, b.Card},
			{FieldReceivable, b.Receivable},
			{FieldCheck, b.Check},
		}
		for _, a := range amounts {
			if _, err := toAmount(a.value); err != nil {
				return newFieldError(a.field, a.value, err.Error())
			}
		}
		if b.TotalOrders < 0 {
			return newFieldError(FieldTotalOrders, b.TotalOrders, "count must not be negative")
		}
		if b.TotalItems < 0 {
			return newFieldError(FieldTotalItems, b.TotalItems, "count must not be negative")
		}
	}
	for i, item := range rec.Items {
		field := Field(fmt.Sprintf("items[%d]", i))
		if strings.TrimSpace(item.ClientCode) == "" {
			return newFieldError(field, item.ClientCode, "client code is required")
		}
		if item.AmountReceivable.IsNegative() {
			return newFieldError(field, item.AmountReceivable, "amount must not be negative")
		}
	}
	return nil
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected text, got %T", value)
	}
}

// toDecimal accepts numbers and numeric strings; the bool reports presence.
func toDecimal(value any) (decimal.Decimal, bool, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false, nil
	case decimal.Decimal:
		return v, true, nil
	case int:
		return decimal.NewFromInt(int64(v)), true, nil
	case int64:
		return decimal.NewFromInt(v), true, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(v), true, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("not a number: %s", v)
		}
		return d, true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("not a number: %q", v)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("expected a number, got %T", value)
	}
}

func toAmount(value any) (decimal.Decimal, error) {
	d, _, err := toDecimal(value)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	return d, nil
}

func toInt(value any) (int, bool, error) {
	d, present, err := toDecimal(value)
	if err != nil || !present {
		return 0, present, err
	}
	if !d.IsInteger() {
		return 0, false, fmt.Errorf("expected a whole number, got %s", d)
	}
	if d.Abs().GreaterThan(maxInt) {
		return 0, false, fmt.Errorf("number out of range: %s", d)
	}
	return int(d.IntPart()), true, nil
}

var maxInt = decimal.NewFromInt(math.MaxInt32)

func toBool(value any) (bool, bool, error) {
	switch v := value.(type) {
	case nil:
		return false, false, nil
	case bool:
		return v, true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false, fmt.Errorf("expected true or false, got %q", v)
		}
		return b, true, nil
	default:
		return false, false, fmt.Errorf("expected true or false, got %T", value)
	}
}
