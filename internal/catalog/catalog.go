package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gpu_sniper/internal/locale"
	"gpu_sniper/internal/model"
)

// ErrCatalogChanged is the cancel cause used when the catalog entry a run was
// started from changes on disk.
var ErrCatalogChanged = errors.New("product ids changed")

//go:embed data/nvidia_product_ids.json
var embeddedIDs []byte

// ProductIDs is a catalog entry: either one id or a list of ids.
type ProductIDs struct {
	ids  []string
	list bool
}

func Single(id string) ProductIDs {
	return ProductIDs{ids: []string{id}}
}

func List(ids ...string) ProductIDs {
	return ProductIDs{ids: append([]string{}, ids...), list: true}
}

func (p *ProductIDs) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*p = Single(id)
		return nil
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf("product ids must be a string or a list of strings: %w", err)
	}
	*p = List(ids...)
	return nil
}

func (p ProductIDs) MarshalJSON() ([]byte, error) {
	if p.list {
		return json.Marshal(p.ids)
	}
	if len(p.ids) == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(p.ids[0])
}

// IDs returns the entry as a slice; a single id becomes a one-element slice.
func (p ProductIDs) IDs() []string {
	return append([]string(nil), p.ids...)
}

func (p ProductIDs) IsList() bool { return p.list }

// Equal compares shape and identity.
func (p ProductIDs) Equal(o ProductIDs) bool {
	return p.list == o.list && slices.Equal(p.ids, o.ids)
}

// Catalog maps locale -> gpu family -> product ids.
type Catalog map[string]map[string]ProductIDs

func Parse(b []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// Lookup tries the canonical locale first and the raw user locale second.
func (c Catalog) Lookup(canonical, raw string, family model.GPUFamily) (ProductIDs, error) {
	families, ok := c[canonical]
	if !ok {
		families, ok = c[raw]
	}
	if !ok {
		return ProductIDs{}, fmt.Errorf("%w: no products for locale %q", model.ErrConfigurationMismatch, canonical)
	}
	ids, ok := families[string(family)]
	if !ok {
		return ProductIDs{}, fmt.Errorf("%w: no products for gpu %s in locale %q", model.ErrConfigurationMismatch, family, canonical)
	}
	return ids, nil
}

type Source interface {
	Load() (Catalog, error)
}

// FileSource reads the dataset from disk on every Load.
type FileSource struct {
	Path string
}

func (s FileSource) Load() (Catalog, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

type EmbeddedSource struct{}

func (EmbeddedSource) Load() (Catalog, error) {
	return Parse(embeddedIDs)
}

// NewSource returns a FileSource for a non-empty path and the embedded dataset otherwise.
func NewSource(path string) Source {
	if path == "" {
		return EmbeddedSource{}
	}
	return FileSource{Path: path}
}

// Resolve loads the catalog and looks up the entry for a user locale and family.
func Resolve(src Source, userLocale string, family model.GPUFamily) (ProductIDs, error) {
	c, err := src.Load()
	if err != nil {
		return ProductIDs{}, err
	}
	return c.lookupUser(userLocale, family)
}

func (c Catalog) lookupUser(userLocale string, family model.GPUFamily) (ProductIDs, error) {
	raw := strings.ToLower(strings.TrimSpace(userLocale))
	return c.Lookup(locale.Resolve(raw), raw, family)
}
