package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

//go:embed data/catalog.json
var embeddedCatalog []byte

// Loader loads the catalog exactly once and serves the same immutable
// slice to every caller afterwards. Safe for concurrent use.
type Loader struct {
	path string

	once  sync.Once
	items []Item
	err   error
}

// NewLoader creates a loader. With an empty path the built-in catalog is
// served; otherwise the JSON file at path is read on first use.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load returns the catalog items, reading them on first call. Callers
// must treat the returned slice as read-only.
func (l *Loader) Load() ([]Item, error) {
	l.once.Do(func() {
		data := embeddedCatalog
		source := "embedded"
		if l.path != "" {
			data, l.err = os.ReadFile(l.path)
			if l.err != nil {
				l.err = fmt.Errorf("failed to read catalog %s: %w", l.path, l.err)
				return
			}
			source = l.path
		}

		l.items, l.err = parseItems(data)
		if l.err != nil {
			l.err = fmt.Errorf("failed to parse catalog %s: %w", source, l.err)
			return
		}
		slog.Info("Catalog loaded", "source", source, "items", len(l.items))
	})
	return l.items, l.err
}

func parseItems(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	for i, it := range items {
		if it.Vendor == "" || it.Title == "" || it.URL == "" {
			return nil, fmt.Errorf("item %d: vendor, title and url are required", i)
		}
		if it.PriceUSD <= 0 {
			return nil, fmt.Errorf("item %d (%s): price must be positive", i, it.Title)
		}
	}
	return items, nil
}
