package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adonel/pkg/models"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		records []models.Record
		want    Notification
	}{
		{
			name:    "all valid",
			records: []models.Record{{}, {}},
			want:    Notification{LevelSuccess, "✅ 2 arquivo(s) processado(s)"},
		},
		{
			name:    "some invalid",
			records: []models.Record{{}, {Invalid: true}},
			want:    Notification{LevelSuccess, "✅ 1 arquivo(s) processado(s) (1 com erro)"},
		},
		{
			name:    "none valid",
			records: []models.Record{{Invalid: true}},
			want:    Notification{LevelError, "❌ Nenhum arquivo válido encontrado"},
		},
		{
			name: "empty",
			want: Notification{LevelError, "❌ Nenhum arquivo válido encontrado"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResult(tt.records))
		})
	}
}

func TestImportMessages(t *testing.T) {
	assert.Equal(t, "✅ 3 venda(s) importada(s) com sucesso!", ImportSucceeded(models.KindSales, 3).Message)
	assert.Equal(t, "⚠️ 2 duplicata(s) importada(s), 1 rejeitada(s)", ImportPartial(models.KindReceivables, 2, 1).Message)
	assert.Equal(t, LevelWarning, ImportPartial(models.KindSales, 2, 1).Level)
	assert.Equal(t, "Erro ao importar: Token expirado", ImportFailed("Token expirado").Message)
	assert.Equal(t, "✅ Venda adicionada à lista de importação", ManualAdded(models.KindSales).Message)
	assert.Equal(t, "✅ Duplicata adicionada à lista de importação", ManualAdded(models.KindReceivables).Message)
}

func TestRecorderAndMulti(t *testing.T) {
	var rec Recorder
	var buf bytes.Buffer
	n := Multi{&rec, nil, NewWriter(&buf), Discard}

	_, ok := rec.Last()
	assert.False(t, ok)

	n.Notify(context.Background(), ImportSucceeded(models.KindSales, 1))
	n.Notify(context.Background(), ImportFailed("x"))

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, LevelError, last.Level)
	assert.Len(t, rec.All(), 2)
	assert.Equal(t, "✅ 1 venda(s) importada(s) com sucesso!\nErro ao importar: x\n", buf.String())

	assert.Len(t, rec.Drain(), 2)
	assert.Empty(t, rec.All())
}
