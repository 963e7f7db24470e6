package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adonel/internal/logger"
	"adonel/pkg/models"
	"adonel/pkg/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	return NewClient(server.URL+"/api", opts...)
}

func TestParseFiles_SendsOneRequestAndMapsRecords(t *testing.T) {
	var calls int
	var captured struct {
		Arquivos []services.FileContent `json:"arquivos"`
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/vendas/parse-txt-multiplos", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.Header.Get("ngrok-skip-browser-warning"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		io.WriteString(w, `{
			"resultados": [
				{"nomeArquivo": "a.txt", "invalido": true, "erro": "formato inválido"},
				{"nomeArquivo": "b.txt", "unidadeId": 1, "unidadeNome": "Matriz", "unidadeCodigo": "matriz",
				 "data": "2024-03-05", "faturamentoTotal": 100.5, "valorDinheiro": "40.5", "valorPix": 60,
				 "totalPedidos": 3, "totalPecas": 7, "diaOperacional": true, "avisos": ["unidade detectada pelo cabeçalho"]}
			],
			"total": 2, "processados": 1, "erros": 1
		}`)
	}, WithTokenSource(StaticToken("secret")))

	result, err := client.ParseFiles(context.Background(), models.KindSales, []services.FileContent{
		{Name: "a.txt", Content: "x"},
		{Name: "b.txt", Content: "y"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Len(t, captured.Arquivos, 2)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Records, 2)

	bad := result.Records[0]
	assert.True(t, bad.Invalid)
	assert.Equal(t, "formato inválido", bad.ErrorMessage)
	assert.Nil(t, bad.Sales)

	good := result.Records[1]
	assert.False(t, good.Invalid)
	require.NotNil(t, good.UnitID)
	assert.Equal(t, 1, *good.UnitID)
	assert.Equal(t, "Matriz", good.UnitName)
	require.NotNil(t, good.Date)
	assert.Equal(t, "2024-03-05", *good.Date)
	require.NotNil(t, good.Sales)
	assert.True(t, good.Sales.TotalRevenue.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, good.Sales.Cash.Equal(decimal.RequireFromString("40.5")))
	assert.True(t, good.Sales.Pix.Equal(decimal.NewFromInt(60)))
	assert.True(t, good.Sales.Card.IsZero())
	assert.Equal(t, 3, good.Sales.TotalOrders)
	assert.Equal(t, 7, good.Sales.TotalItems)
	assert.Equal(t, []string{"unidade detectada pelo cabeçalho"}, good.Warnings)
}

func TestParseFiles_FlagsUnexpectedShapes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"resultados": [
			{"nomeArquivo": "a.txt", "unidadeId": 2, "data": "2024-03-05", "faturamentoTotal": {"valor": 1}},
			{"unidadeId": 2, "data": "05/03/2024", "faturamentoTotal": 10},
			"oops",
			{"nomeArquivo": "d.txt", "valorPix": -5}
		], "total": 4, "processados": 4, "erros": 0}`)
	})

	result, err := client.ParseFiles(context.Background(), models.KindSales, []services.FileContent{
		{Name: "a.txt"}, {Name: "b.txt"}, {Name: "c.txt"}, {Name: "d.txt"},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 4)

	assert.True(t, result.Records[0].Invalid)
	assert.Contains(t, result.Records[0].ErrorMessage, "faturamentoTotal")

	// A malformed date is dropped with a warning: the user can still fix it.
	second := result.Records[1]
	assert.False(t, second.Invalid)
	assert.Nil(t, second.Date)
	assert.Equal(t, "b.txt", second.Source())
	assert.NotEmpty(t, second.Warnings)

	assert.True(t, result.Records[2].Invalid)
	assert.Equal(t, "c.txt", result.Records[2].Source())

	assert.True(t, result.Records[3].Invalid)
	assert.Contains(t, result.Records[3].ErrorMessage, "valorPix")
}

func TestDecodeRecord_RejectsOversizedIntegers(t *testing.T) {
	rec := decodeRecord(models.KindSales, json.RawMessage(
		`{"nomeArquivo": "a.txt", "unidadeId": 18446744073709551617, "totalPedidos": 18446744073709551615}`,
	), "")

	assert.True(t, rec.Invalid)
	assert.Nil(t, rec.UnitID)
	assert.Contains(t, rec.ErrorMessage, "Campos com formato inesperado: unidadeId")
	assert.Contains(t, rec.ErrorMessage, "totalPedidos")

	rec = decodeRecord(models.KindSales, json.RawMessage(`{"unidadeId": 2147483647, "totalPedidos": 3}`), "b.txt")
	assert.False(t, rec.Invalid)
	require.NotNil(t, rec.UnitID)
	assert.Equal(t, 2147483647, *rec.UnitID)
}

func TestParseFiles_Receivables(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/duplicatas/parse-txt-multiplos", r.URL.Path)
		io.WriteString(w, `{"resultados": [
			{"nomeArquivo": "cr.txt", "unidadeId": 3, "data": "2024-03-05",
			 "duplicatas": [{"codigoCliente": "0042", "valorAReceber": 150.25}, {"codigoCliente": 77, "valorAReceber": "20"}]}
		], "total": 1, "processados": 1, "erros": 0}`)
	})

	result, err := client.ParseFiles(context.Background(), models.KindReceivables, []services.FileContent{{Name: "cr.txt"}})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	rec := result.Records[0]
	assert.Equal(t, models.KindReceivables, rec.Kind)
	require.Len(t, rec.Items, 2)
	assert.Equal(t, "0042", rec.Items[0].ClientCode)
	assert.Equal(t, "77", rec.Items[1].ClientCode)
	assert.True(t, rec.ItemsTotal().Equal(decimal.RequireFromString("170.25")))
	assert.True(t, models.Importable(rec))
}

func TestParseFiles_MissingResultados(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total": 1}`)
	})

	_, err := client.ParseFiles(context.Background(), models.KindSales, []services.FileContent{{Name: "a.txt"}})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestUnauthorized_InvokesHandler(t *testing.T) {
	signedOut := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": "Token expirado"}`)
	}, WithUnauthorizedHandler(func(context.Context) { signedOut++ }))

	_, err := client.ParseFiles(context.Background(), models.KindSales, []services.FileContent{{Name: "a.txt"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, signedOut)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Token expirado", apiErr.UserMessage())
}

func TestAPIError_Messages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error": "Data já importada"}`, "Data já importada"},
		{"message field", `{"message": "Falha interna"}`, "Falha interna"},
		{"no reason", `<html>bad gateway</html>`, defaultMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				io.WriteString(w, tt.body)
			})

			_, err := client.ImportBatch(context.Background(), services.Batch{Kind: models.KindSales})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadGateway, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.NotErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1/api", WithLogger(logger.Nop()))

	_, err := client.Units(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, defaultMessage, apiErr.UserMessage())
}

func TestImportBatch_SalesWireFormat(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/vendas/importar-lote", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"importadas": 1, "rejeitadas": 0}`)
	})

	result, err := client.ImportBatch(context.Background(), services.Batch{
		Kind: models.KindSales,
		Sales: []services.SalesEntry{{
			UnitID:           2,
			Date:             "2024-03-05",
			TotalRevenue:     decimal.RequireFromString("100.50"),
			Cash:             decimal.RequireFromString("100.50"),
			TotalOrders:      4,
			IsOperationalDay: true,
		}},
		Options: services.ImportOptions{ValidateDuplicates: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	vendas := body["vendas"].([]any)
	require.Len(t, vendas, 1)
	venda := vendas[0].(map[string]any)
	assert.Equal(t, float64(2), venda["unidadeId"])
	assert.Equal(t, "2024-03-05", venda["data"])
	// amounts travel as JSON numbers, not strings
	assert.Equal(t, 100.5, venda["faturamentoTotal"])
	assert.Equal(t, float64(0), venda["valorPix"])
	assert.Equal(t, true, venda["diaOperacional"])
	assert.NotContains(t, venda, "nomeArquivo")
	assert.NotContains(t, venda, "avisos")

	opcoes := body["opcoes"].(map[string]any)
	assert.Equal(t, true, opcoes["validarDuplicados"])
}

func TestImportBatch_ReceivablesWireFormat(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/duplicatas/importar-lote", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"importadas": 1, "rejeitadas": 1}`)
	})

	result, err := client.ImportBatch(context.Background(), services.Batch{
		Kind: models.KindReceivables,
		Receivables: []services.ReceivableEntry{
			{UnitID: 3, ReferenceDate: "2024-03-05", ClientCode: "0042", AmountReceivable: decimal.RequireFromString("150.25")},
			{UnitID: 3, ReferenceDate: "2024-03-05", ClientCode: "77", AmountReceivable: decimal.NewFromInt(20)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)

	lines := body["duplicatas"].([]any)
	require.Len(t, lines, 2)
	first := lines[0].(map[string]any)
	assert.Equal(t, "2024-03-05", first["dataReferencia"])
	assert.Equal(t, "0042", first["codigoCliente"])
	assert.Equal(t, 150.25, first["valorAReceber"])
}

func TestImportBatch_MissingCounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": true}`)
	})

	_, err := client.ImportBatch(context.Background(), services.Batch{Kind: models.KindSales})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestUnits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/unidades", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id": 1, "codigo": "matriz", "nome": "Matriz"}]`)
	}, WithTokenSource(StaticToken("")))

	units, err := client.Units(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Unit{{ID: 1, Code: "matriz", Name: "Matriz"}}, units)
}
