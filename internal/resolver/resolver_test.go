package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adonel/pkg/models"
)

func TestFilenameResolver_Resolve(t *testing.T) {
	r := NewFilenameResolver(DefaultCatalogue())

	tests := []struct {
		name     string
		file     string
		wantID   int
		wantFind bool
	}{
		{"code", "vendas_itapipoca_2024-03-05.txt", 5, true},
		{"name with accent", "Relatório Quixadá 05-03.txt", 6, true},
		{"accent-free name", "QUIXADA-0503.TXT", 6, true},
		{"hyphenated code", "cel-jose.txt", 3, true},
		{"spaced name without accent", "DOM JOSE marco.txt", 4, true},
		{"catalogue order wins", "matriz_e_filial.txt", 1, true},
		{"no match", "relatorio.txt", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, ok := r.Resolve(tt.file)
			assert.Equal(t, tt.wantFind, ok)
			assert.Equal(t, tt.wantID, unit.ID)
		})
	}
}

func TestNoop_NeverResolves(t *testing.T) {
	_, ok := Noop{}.Resolve("matriz.txt")
	assert.False(t, ok)
}

func TestStripAccents(t *testing.T) {
	assert.Equal(t, "TIANGUA", StripAccents("TIANGUÁ"))
	assert.Equal(t, "Cel Jose", StripAccents("Cel José"))
	assert.Equal(t, "plain", StripAccents("plain"))
}

func TestCatalogue_ByID(t *testing.T) {
	c := DefaultCatalogue()

	unit, ok := c.ByID(7)
	require.True(t, ok)
	assert.Equal(t, "tiangua", unit.Code)

	_, ok = c.ByID(99)
	assert.False(t, ok)
}

func TestLoadCatalogue(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "unidades.yaml")
		content := "unidades:\n  - id: 10\n    codigo: sobral\n    nome: Sobral\n  - id: 11\n    codigo: crato\n    nome: Crato\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		c, err := LoadCatalogue(path)
		require.NoError(t, err)
		assert.Len(t, c.Units(), 2)

		unit, ok := NewFilenameResolver(c).Resolve("CRATO.txt")
		require.True(t, ok)
		assert.Equal(t, 11, unit.ID)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		content := "unidades:\n  - id: 1\n    nome: A\n  - id: 1\n    nome: B\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := LoadCatalogue(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalogue(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

type fakeDirectory struct {
	units []models.Unit
	err   error
}

func (f fakeDirectory) Units(context.Context) ([]models.Unit, error) { return f.units, f.err }

func TestFetchCatalogue(t *testing.T) {
	c, err := FetchCatalogue(context.Background(), fakeDirectory{units: []models.Unit{{ID: 1, Code: "matriz", Name: "Matriz"}}})
	require.NoError(t, err)
	assert.Len(t, c.Units(), 1)

	_, err = FetchCatalogue(context.Background(), fakeDirectory{err: errors.New("offline")})
	assert.Error(t, err)

	_, err = FetchCatalogue(context.Background(), fakeDirectory{})
	assert.Error(t, err)
}
