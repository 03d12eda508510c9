package catalog

import (
	_ "embed"
	"sync"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in allergen catalog. The embedded resource is
// parsed once; a malformed embedded catalog is a build defect and panics.
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic("embedded default catalog is invalid: " + err.Error())
		}
		defaultCatalog = cat
	})
	return defaultCatalog
}
