package commit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adonel/internal/logger"
	"adonel/internal/notify"
	"adonel/internal/resolver"
	"adonel/internal/session"
	"adonel/pkg/models"
	"adonel/pkg/services"
)

type fakeBackend struct {
	mu      sync.Mutex
	parsed  []models.Record
	result  services.ImportResult
	err     error
	batches []services.Batch
}

func (f *fakeBackend) ParseFiles(_ context.Context, _ models.Kind, _ []services.FileContent) (*services.ParseResult, error) {
	return &services.ParseResult{Records: models.CloneAll(f.parsed)}, nil
}

func (f *fakeBackend) ImportBatch(_ context.Context, batch services.Batch) (*services.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	if f.err != nil {
		return nil, f.err
	}
	result := f.result
	return &result, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// manualTimer captures the scheduled reset so tests decide when it fires.
type manualTimer struct {
	delay time.Duration
	fire  func()
}

func (m *manualTimer) afterFunc(d time.Duration, f func()) {
	m.delay = d
	m.fire = f
}

func newSession(t *testing.T, kind models.Kind, backend *fakeBackend, records ...models.Record) *session.Store {
	t.Helper()
	store := session.New(kind, backend, session.WithLogger(logger.Nop()), session.WithResolver(resolver.Noop{}))
	if len(records) > 0 {
		backend.parsed = records
		files := make([]session.File, len(records))
		for i := range records {
			files[i] = session.FileFromBytes(records[i].Source(), nil)
		}
		_, err := store.ParseFiles(context.Background(), files)
		require.NoError(t, err)
	}
	return store
}

func sale(unit int, date string, total int64) models.Record {
	rec := models.Record{
		Kind:       models.KindSales,
		SourceName: models.StringPtr("vendas.txt"),
		Sales:      &models.SalesBreakdown{TotalRevenue: decimal.NewFromInt(total), Cash: decimal.NewFromInt(total)},
		Warnings:   []string{"aviso"},
	}
	if unit > 0 {
		rec.UnitID = models.IntPtr(unit)
	}
	if date != "" {
		rec.Date = models.StringPtr(date)
	}
	return rec
}

func TestCommit_SendsOnlyImportableRecords(t *testing.T) {
	backend := &fakeBackend{result: services.ImportResult{Imported: 1}}
	store := newSession(t, models.KindSales, backend,
		models.Record{Kind: models.KindSales, SourceName: models.StringPtr("a.txt"), Invalid: true, ErrorMessage: "formato inválido"},
		sale(1, "2024-03-05", 100),
		sale(0, "2024-03-05", 50),
		sale(2, "", 70),
	)

	summary := store.Summary()
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 2, summary.Pending)

	var rec notify.Recorder
	timer := &manualTimer{}
	c := NewController(backend, &rec, WithLogger(logger.Nop()), WithAfterFunc(timer.afterFunc))

	outcome, err := c.Commit(context.Background(), store, Options{})
	require.NoError(t, err)

	require.Equal(t, 1, backend.calls())
	batch := backend.batches[0]
	require.Len(t, batch.Sales, 1)
	assert.Equal(t, 1, batch.Sales[0].UnitID)
	assert.True(t, batch.Sales[0].TotalRevenue.Equal(decimal.NewFromInt(100)))
	assert.True(t, batch.Options.ValidateDuplicates)
	assert.Equal(t, 1, outcome.Sent)
}

func TestCommit_PartialSuccess(t *testing.T) {
	backend := &fakeBackend{result: services.ImportResult{Imported: 2, Rejected: 1}}
	store := newSession(t, models.KindSales, backend,
		sale(1, "2024-03-05", 100), sale(2, "2024-03-05", 200), sale(3, "2024-03-05", 300))

	var rec notify.Recorder
	timer := &manualTimer{}
	c := NewController(backend, &rec, WithLogger(logger.Nop()), WithAfterFunc(timer.afterFunc))

	outcome, err := c.Commit(context.Background(), store, Options{})
	require.NoError(t, err)

	assert.True(t, outcome.Partial)
	assert.Equal(t, 2, outcome.Imported)
	assert.Equal(t, 1, outcome.Rejected)
	assert.Equal(t, notify.LevelWarning, outcome.Notification.Level)
	assert.Equal(t, "⚠️ 2 venda(s) importada(s), 1 rejeitada(s)", outcome.Notification.Message)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, outcome.Notification, last)

	// the session stays visible until the delay elapses
	assert.Equal(t, DefaultClearDelay, timer.delay)
	assert.Equal(t, 3, store.Len())
	require.NotNil(t, timer.fire)
	timer.fire()
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, session.Progress{}, store.Progress())
}

func TestCommit_FullSuccess(t *testing.T) {
	backend := &fakeBackend{result: services.ImportResult{Imported: 3}}
	store := newSession(t, models.KindSales, backend,
		sale(1, "2024-03-05", 100), sale(2, "2024-03-05", 200), sale(3, "2024-03-05", 300))

	var rec notify.Recorder
	c := NewController(backend, &rec, WithLogger(logger.Nop()), WithClearDelay(20*time.Millisecond))

	outcome, err := c.Commit(context.Background(), store, Options{})
	require.NoError(t, err)

	assert.False(t, outcome.Partial)
	assert.Equal(t, notify.LevelSuccess, outcome.Notification.Level)
	assert.Equal(t, "✅ 3 venda(s) importada(s) com sucesso!", outcome.Notification.Message)
	assert.True(t, outcome.ClearScheduled)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCommit_NothingToImport(t *testing.T) {
	backend := &fakeBackend{}
	store := newSession(t, models.KindSales, backend,
		models.Record{Kind: models.KindSales, SourceName: models.StringPtr("a.txt"), Invalid: true})

	var rec notify.Recorder
	c := NewController(backend, &rec, WithLogger(logger.Nop()))

	outcome, err := c.Commit(context.Background(), store, Options{})
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrNothingToImport)
	assert.Equal(t, 0, backend.calls(), "rejected locally")

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Nenhuma venda válida para importar", cerr.UserMessage())

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, last.Level)
	assert.Equal(t, "Erro ao importar: Nenhuma venda válida para importar", last.Message)
	assert.Equal(t, 1, store.Len())
}

type userFacingError struct{ msg string }

func (e userFacingError) Error() string       { return "backend: " + e.msg }
func (e userFacingError) UserMessage() string { return e.msg }

func TestCommit_FailureLeavesSessionUntouched(t *testing.T) {
	backend := &fakeBackend{err: userFacingError{msg: "Data já importada"}}
	store := newSession(t, models.KindSales, backend, sale(1, "2024-03-05", 100))
	before := store.Records()

	var rec notify.Recorder
	timer := &manualTimer{}
	c := NewController(backend, &rec, WithLogger(logger.Nop()), WithAfterFunc(timer.afterFunc))

	_, err := c.Commit(context.Background(), store, Options{})
	require.Error(t, err)

	assert.Equal(t, before, store.Records())
	assert.Nil(t, timer.fire, "no reset scheduled")
	assert.False(t, store.Busy())

	last, _ := rec.Last()
	assert.Equal(t, "Erro ao importar: Data já importada", last.Message)

	// retry after the backend recovers
	backend.err = nil
	backend.result = services.ImportResult{Imported: 1}
	_, err = c.Commit(context.Background(), store, Options{})
	assert.NoError(t, err)
}

func TestCommit_ManualRecordIsCommitted(t *testing.T) {
	backend := &fakeBackend{result: services.ImportResult{Imported: 1}}
	store := newSession(t, models.KindSales, backend)

	_, err := store.AddManualRecord(models.Record{
		UnitID: models.IntPtr(4),
		Date:   models.StringPtr("2024-03-05"),
		Sales:  &models.SalesBreakdown{TotalRevenue: decimal.NewFromInt(10), Pix: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)

	c := NewController(backend, nil, WithLogger(logger.Nop()), WithClearDelay(0))
	_, err = c.Commit(context.Background(), store, Options{SkipDuplicateCheck: true})
	require.NoError(t, err)

	require.Len(t, backend.batches[0].Sales, 1)
	entry := backend.batches[0].Sales[0]
	assert.Equal(t, 4, entry.UnitID)
	assert.True(t, entry.IsOperationalDay)
	assert.False(t, backend.batches[0].Options.ValidateDuplicates)
	assert.Equal(t, 0, store.Len(), "zero delay clears right away")
}

func TestCommit_EditDuringDelayKeepsSession(t *testing.T) {
	backend := &fakeBackend{result: services.ImportResult{Imported: 1}}
	store := newSession(t, models.KindSales, backend, sale(1, "2024-03-05", 100))

	timer := &manualTimer{}
	c := NewController(backend, nil, WithLogger(logger.Nop()), WithAfterFunc(timer.afterFunc))
	_, err := c.Commit(context.Background(), store, Options{})
	require.NoError(t, err)

	_, err = store.AddManualRecord(models.Record{})
	require.NoError(t, err)

	timer.fire()
	assert.Equal(t, 2, store.Len())
}

func TestCommit_Receivables(t *testing.T) {
	backend := &fakeBackend{result: services.ImportResult{Imported: 3}}
	withItems := func(unit int, items ...models.ReceivableItem) models.Record {
		return models.Record{
			Kind:       models.KindReceivables,
			SourceName: models.StringPtr("cr.txt"),
			UnitID:     models.IntPtr(unit),
			Date:       models.StringPtr("2024-03-05"),
			Items:      items,
		}
	}
	store := newSession(t, models.KindReceivables, backend,
		withItems(1,
			models.ReceivableItem{ClientCode: "10", AmountReceivable: decimal.NewFromInt(5)},
			models.ReceivableItem{ClientCode: "11", AmountReceivable: decimal.NewFromInt(6)}),
		withItems(2),
		withItems(3, models.ReceivableItem{ClientCode: "12", AmountReceivable: decimal.NewFromInt(7)}),
	)

	c := NewController(backend, nil, WithLogger(logger.Nop()), WithAfterFunc(func(time.Duration, func()) {}))
	outcome, err := c.Commit(context.Background(), store, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Sent)
	assert.Equal(t, "✅ 3 duplicata(s) importada(s) com sucesso!", outcome.Notification.Message)

	lines := backend.batches[0].Receivables
	require.Len(t, lines, 3)
	assert.Equal(t, services.ReceivableEntry{
		UnitID: 3, ReferenceDate: "2024-03-05", ClientCode: "12", AmountReceivable: decimal.NewFromInt(7),
	}, lines[2])
	assert.Empty(t, backend.batches[0].Sales)
}

func TestBuildSalesPayload_DefaultsOperationalDay(t *testing.T) {
	closed := sale(1, "2024-03-05", 0)
	closed.IsOperationalDay = models.BoolPtr(false)
	bare := models.Record{Kind: models.KindSales, UnitID: models.IntPtr(2), Date: models.StringPtr("2024-03-06")}

	entries := BuildSalesPayload([]models.Record{sale(1, "2024-03-05", 10), closed, bare})
	require.Len(t, entries, 3)
	assert.True(t, entries[0].IsOperationalDay)
	assert.False(t, entries[1].IsOperationalDay)
	assert.True(t, entries[2].IsOperationalDay)
	assert.True(t, entries[2].TotalRevenue.IsZero())
}

func TestSelectImportable(t *testing.T) {
	records := []models.Record{
		sale(1, "2024-03-05", 10),
		{Kind: models.KindSales, Invalid: true, UnitID: models.IntPtr(1), Date: models.StringPtr("2024-03-05")},
		sale(0, "2024-03-05", 10),
		{Kind: models.KindReceivables, UnitID: models.IntPtr(1), Date: models.StringPtr("2024-03-05")},
	}

	selected := SelectImportable(records)
	require.Len(t, selected, 1)
	assert.Equal(t, 1, *selected[0].UnitID)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Nenhuma duplicata válida para importar", UserMessage(models.KindReceivables, ErrNothingToImport))
	assert.Equal(t, "Aguarde a operação em andamento terminar", UserMessage(models.KindSales, session.ErrBusy))
	assert.Equal(t, "boom", UserMessage(models.KindSales, errors.New("boom")))
}
