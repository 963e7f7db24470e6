package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"adonel/pkg/models"
	"adonel/pkg/services"
)

// Request and response bodies use the backend's Portuguese field names. Everything is
// mapped into models.Record here so that nothing loosely typed leaks past this package.

type parseRequest struct {
	Arquivos []services.FileContent `json:"arquivos"`
}

type parseEnvelope struct {
	Resultados  *[]json.RawMessage `json:"resultados"`
	Total       int                `json:"total"`
	Processados int                `json:"processados"`
	Erros       int                `json:"erros"`
}

type wireRecord struct {
	NomeArquivo      *string         `json:"nomeArquivo"`
	UnidadeID        json.RawMessage `json:"unidadeId"`
	UnidadeNome      *string         `json:"unidadeNome"`
	UnidadeCodigo    *string         `json:"unidadeCodigo"`
	Data             *string         `json:"data"`
	FaturamentoTotal json.RawMessage `json:"faturamentoTotal"`
	ValorDinheiro    json.RawMessage `json:"valorDinheiro"`
	ValorPix         json.RawMessage `json:"valorPix"`
	ValorCartao      json.RawMessage `json:"valorCartao"`
	ValorDuplicata   json.RawMessage `json:"valorDuplicata"`
	ValorCheque      json.RawMessage `json:"valorCheque"`
	TotalPedidos     json.RawMessage `json:"totalPedidos"`
	TotalPecas       json.RawMessage `json:"totalPecas"`
	DiaOperacional   *bool           `json:"diaOperacional"`
	Duplicatas       json.RawMessage `json:"duplicatas"`
	Invalido         bool            `json:"invalido"`
	Erro             *string         `json:"erro"`
	Avisos           []string        `json:"avisos"`
}

type wireItem struct {
	CodigoCliente json.RawMessage `json:"codigoCliente"`
	ValorAReceber json.RawMessage `json:"valorAReceber"`
}

type wireOptions struct {
	ValidarDuplicados bool `json:"validarDuplicados"`
	PermitirParcial   bool `json:"permitirParcial,omitempty"`
}

type wireSale struct {
	UnidadeID        int         `json:"unidadeId"`
	Data             string      `json:"data"`
	FaturamentoTotal json.Number `json:"faturamentoTotal"`
	TotalPedidos     int         `json:"totalPedidos"`
	TotalPecas       int         `json:"totalPecas"`
	ValorDinheiro    json.Number `json:"valorDinheiro"`
	ValorPix         json.Number `json:"valorPix"`
	ValorCartao      json.Number `json:"valorCartao"`
	ValorDuplicata   json.Number `json:"valorDuplicata"`
	ValorCheque      json.Number `json:"valorCheque"`
	DiaOperacional   bool        `json:"diaOperacional"`
}

type wireReceivable struct {
	UnidadeID      int         `json:"unidadeId"`
	DataReferencia string      `json:"dataReferencia"`
	CodigoCliente  string      `json:"codigoCliente"`
	ValorAReceber  json.Number `json:"valorAReceber"`
}

type salesImportRequest struct {
	Vendas []wireSale   `json:"vendas"`
	Opcoes wireOptions `json:"opcoes"`
}

type receivablesImportRequest struct {
	Duplicatas []wireReceivable `json:"duplicatas"`
	Opcoes     wireOptions      `json:"opcoes"`
}

type importResponse struct {
	Importadas *int `json:"importadas"`
	Rejeitadas *int `json:"rejeitadas"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func encodeBatch(batch services.Batch) any {
	opts := wireOptions{
		ValidarDuplicados: batch.Options.ValidateDuplicates,
		PermitirParcial:   batch.Options.AllowPartial,
	}

	if batch.Kind == models.KindReceivables {
		req := receivablesImportRequest{Duplicatas: make([]wireReceivable, 0, len(batch.Receivables)), Opcoes: opts}
		for _, e := range batch.Receivables {
			req.Duplicatas = append(req.Duplicatas, wireReceivable{
				UnidadeID:      e.UnitID,
				DataReferencia: e.ReferenceDate,
				CodigoCliente:  e.ClientCode,
				ValorAReceber:  number(e.AmountReceivable),
			})
		}
		return req
	}

	req := salesImportRequest{Vendas: make([]wireSale, 0, len(batch.Sales)), Opcoes: opts}
	for _, e := range batch.Sales {
		req.Vendas = append(req.Vendas, wireSale{
			UnidadeID:        e.UnitID,
			Data:             e.Date,
			FaturamentoTotal: number(e.TotalRevenue),
			TotalPedidos:     e.TotalOrders,
			TotalPecas:       e.TotalItems,
			ValorDinheiro:    number(e.Cash),
			ValorPix:         number(e.Pix),
			ValorCartao:      number(e.Card),
			ValorDuplicata:   number(e.Receivable),
			ValorCheque:      number(e.Check),
			DiaOperacional:   e.IsOperationalDay,
		})
	}
	return req
}

// decodeRecord maps one element of "resultados" into a strict record. Shapes that cannot
// be trusted produce an invalid record carrying the reason instead of zero values.
// fallbackName is the input file at the same position, used when the backend omits the name.
func decodeRecord(kind models.Kind, raw json.RawMessage, fallbackName string) models.Record {
	rec := models.Record{Kind: kind}
	if fallbackName != "" {
		rec.SourceName = models.StringPtr(fallbackName)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		rec.Invalid = true
		rec.ErrorMessage = "Resposta inesperada do servidor para este arquivo"
		return rec
	}

	var w wireRecord
	err := json.Unmarshal(trimmed, &w)
	if w.NomeArquivo != nil && *w.NomeArquivo != "" {
		rec.SourceName = models.StringPtr(*w.NomeArquivo)
	}
	if err != nil {
		rec.Invalid = true
		rec.ErrorMessage = fmt.Sprintf("Resposta inesperada do servidor: %v", err)
		return rec
	}

	rec.Warnings = append(rec.Warnings, w.Avisos...)

	if w.Invalido {
		rec.Invalid = true
		rec.ErrorMessage = "Arquivo inválido"
		if w.Erro != nil && *w.Erro != "" {
			rec.ErrorMessage = *w.Erro
		}
		return rec
	}
	if w.Erro != nil && *w.Erro != "" {
		rec.Warnings = append(rec.Warnings, *w.Erro)
	}

	var problems []string

	if id, ok, err := decodeCount(w.UnidadeID); err != nil {
		problems = append(problems, "unidadeId")
	} else if ok && id > 0 {
		rec.UnitID = models.IntPtr(id)
		if w.UnidadeNome != nil {
			rec.UnitName = *w.UnidadeNome
		}
		if w.UnidadeCodigo != nil {
			rec.UnitCode = *w.UnidadeCodigo
		}
	}

	if w.Data != nil && *w.Data != "" {
		if models.ValidDate(*w.Data) {
			rec.Date = models.StringPtr(*w.Data)
		} else {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("Data não reconhecida: %s", *w.Data))
		}
	}

	if w.DiaOperacional != nil {
		rec.IsOperationalDay = models.BoolPtr(*w.DiaOperacional)
	}

	switch kind {
	case models.KindReceivables:
		items, err := decodeItems(w.Duplicatas)
		if err != nil {
			problems = append(problems, "duplicatas")
		} else {
			rec.Items = items
		}
	default:
		sales := &models.SalesBreakdown{}
		amounts := []struct {
			name string
			raw  json.RawMessage
			dst  *decimal.Decimal
		}{
			{"faturamentoTotal", w.FaturamentoTotal, &sales.TotalRevenue},
			{"valorDinheiro", w.ValorDinheiro, &sales.Cash},
			{"valorPix", w.ValorPix, &sales.Pix},
			{"valorCartao", w.ValorCartao, &sales.Card},
			{"valorDuplicata", w.ValorDuplicata, &sales.Receivable},
			{"valorCheque", w.ValorCheque, &sales.Check},
		}
		for _, a := range amounts {
			v, err := decodeAmount(a.raw)
			if err != nil {
				problems = append(problems, a.name)
				continue
			}
			*a.dst = v
		}
		if n, _, err := decodeCount(w.TotalPedidos); err != nil {
			problems = append(problems, "totalPedidos")
		} else {
			sales.TotalOrders = n
		}
		if n, _, err := decodeCount(w.TotalPecas); err != nil {
			problems = append(problems, "totalPecas")
		} else {
			sales.TotalItems = n
		}
		rec.Sales = sales
	}

	if len(problems) > 0 {
		rec.Invalid = true
		rec.ErrorMessage = "Campos com formato inesperado: " + strings.Join(problems, ", ")
		rec.Sales = nil
		rec.Items = nil
	}

	return rec
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeNumber accepts JSON numbers and numeric strings.
func decodeNumber(raw json.RawMessage) (decimal.Decimal, bool, error) {
	if isNull(raw) {
		return decimal.Zero, false, nil
	}
	trimmed := bytes.TrimSpace(raw)

	text := string(trimmed)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return decimal.Zero, false, err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return decimal.Zero, false, nil
		}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// decodeAmount reads a non-negative monetary amount; absent means zero.
func decodeAmount(raw json.RawMessage) (decimal.Decimal, error) {
	d, _, err := decodeNumber(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", d)
	}
	return d, nil
}

// decodeCount reads a non-negative integer; the bool reports presence.
func decodeCount(raw json.RawMessage) (int, bool, error) {
	d, ok, err := decodeNumber(raw)
	if err != nil || !ok {
		return 0, ok, err
	}
	if !d.IsInteger() || d.IsNegative() || d.GreaterThan(maxCount) {
		return 0, false, fmt.Errorf("not a non-negative integer: %s", d)
	}
	return int(d.IntPart()), true, nil
}

// maxCount bounds ids and counts so IntPart never wraps.
var maxCount = decimal.NewFromInt(math.MaxInt32)

func decodeItems(raw json.RawMessage) ([]models.ReceivableItem, error) {
	if isNull(raw) {
		return nil, nil
	}
	var wire []wireItem
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	items := make([]models.ReceivableItem, 0, len(wire))
	for i, w := range wire {
		code, err := decodeClientCode(w.CodigoCliente)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		amount, err := decodeAmount(w.ValorAReceber)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, models.ReceivableItem{ClientCode: code, AmountReceivable: amount})
	}
	return items, nil
}

// decodeClientCode accepts strings and numbers; the report prints codes as digits.
func decodeClientCode(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", fmt.Errorf("missing client code")
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("empty client code")
		}
		return strings.TrimSpace(s), nil
	}
	if _, err := decimal.NewFromString(string(trimmed)); err != nil {
		return "", fmt.Errorf("client code is neither string nor number")
	}
	return string(trimmed), nil
}

// extractMessage pulls "error" or "message" out of an error body.
func extractMessage(body []byte) string {
	var payload struct {
		Error   any `json:"error"`
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, candidate := range []any{payload.Error, payload.Message} {
			if s, ok := candidate.(string); ok && s != "" {
				return s
			}
		}
	}
	return defaultMessage
}
