// Package resolver assigns a retail unit to report files whose unit the backend could
// not detect. Detection is best effort and pluggable: the session store only sees the
// Resolver interface, so the filename heuristic can be swapped or disabled.
package resolver

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"adonel/pkg/models"
	"adonel/pkg/services"
)

// Resolver guesses the unit a report belongs to from its source name.
type Resolver interface {
	Resolve(sourceName string) (models.Unit, bool)
}

// Noop never resolves anything.
type Noop struct{}

func (Noop) Resolve(string) (models.Unit, bool) { return models.Unit{}, false }

// Catalogue is the ordered list of known units.
type Catalogue struct {
	units []models.Unit
}

// NewCatalogue copies units into a catalogue; order decides which match wins.
func NewCatalogue(units []models.Unit) *Catalogue {
	return &Catalogue{units: append([]models.Unit(nil), units...)}
}

// DefaultCatalogue returns the seven Adonel units.
func DefaultCatalogue() *Catalogue {
	return NewCatalogue([]models.Unit{
		{ID: 1, Code: "matriz", Name: "Matriz"},
		{ID: 2, Code: "filial", Name: "Filial"},
		{ID: 3, Code: "cel-jose", Name: "Cel José"},
		{ID: 4, Code: "dom-jose", Name: "Dom José"},
		{ID: 5, Code: "itapipoca", Name: "Itapipoca"},
		{ID: 6, Code: "quixada", Name: "Quixadá"},
		{ID: 7, Code: "tiangua", Name: "Tianguá"},
	})
}

// Units returns a copy of the catalogue entries.
func (c *Catalogue) Units() []models.Unit {
	return append([]models.Unit(nil), c.units...)
}

// ByID looks a unit up by identifier.
func (c *Catalogue) ByID(id int) (models.Unit, bool) {
	for _, u := range c.units {
		if u.ID == id {
			return u, true
		}
	}
	return models.Unit{}, false
}

type catalogueFile struct {
	Units []models.Unit `yaml:"unidades"`
}

// LoadCatalogue reads a YAML unit catalogue:
//
//	unidades:
//	  - id: 1
//	    codigo: matriz
//	    nome: Matriz
func LoadCatalogue(path string) (*Catalogue, error) {
	const op = "LoadCatalogue"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, path, err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: failed to parse %s: %w", op, path, err)
	}
	if len(file.Units) == 0 {
		return nil, fmt.Errorf("%s: %s defines no units", op, path)
	}

	seen := make(map[int]bool, len(file.Units))
	for _, u := range file.Units {
		if u.ID <= 0 || u.Name == "" {
			return nil, fmt.Errorf("%s: unit entries need a positive id and a name (got %+v)", op, u)
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("%s: duplicate unit id %d", op, u.ID)
		}
		seen[u.ID] = true
	}

	return NewCatalogue(file.Units), nil
}

// FetchCatalogue asks the backend for its unit list.
func FetchCatalogue(ctx context.Context, dir services.UnitDirectory) (*Catalogue, error) {
	units, err := dir.Units(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchCatalogue: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("FetchCatalogue: backend returned no units")
	}
	return NewCatalogue(units), nil
}

// FilenameResolver matches the upper-cased file name against each unit's code, name and
// accent-free name. The first unit in catalogue order with a matching alias wins.
type FilenameResolver struct {
	catalogue *Catalogue
}

func NewFilenameResolver(catalogue *Catalogue) *FilenameResolver {
	return &FilenameResolver{catalogue: catalogue}
}

func (r *FilenameResolver) Resolve(sourceName string) (models.Unit, bool) {
	if sourceName == "" {
		return models.Unit{}, false
	}
	upper := strings.ToUpper(sourceName)

	for _, unit := range r.catalogue.units {
		aliases := []string{
			strings.ToUpper(unit.Code),
			strings.ToUpper(unit.Name),
			StripAccents(strings.ToUpper(unit.Name)),
		}
		for _, alias := range aliases {
			if alias != "" && strings.Contains(upper, alias) {
				return unit, true
			}
		}
	}
	return models.Unit{}, false
}

// StripAccents removes combining marks after canonical decomposition ("Quixadá" -> "Quixada").
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
