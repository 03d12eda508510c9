package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry describes one canonical allergen and the alias terms that refer to it
// on ingredient labels (synonyms, brand names, additive codes).
type Entry struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"display_name" json:"display_name"`
	Aliases     []string `yaml:"aliases" json:"aliases"`
}

// Catalog is an immutable set of allergen entries keyed by canonical name.
// It is loaded once at startup and shared read-only across requests.
type Catalog struct {
	entries map[string]Entry
	names   []string
}

type catalogFile struct {
	Allergens []Entry `yaml:"allergens"`
}

// New builds a catalog from entries. Canonical names must be unique and
// every entry must carry at least one alias.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog has no allergens")
	}

	byName := make(map[string]Entry, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog entry with empty name")
		}
		if _, exists := byName[entry.Name]; exists {
			return nil, fmt.Errorf("duplicate allergen %q", entry.Name)
		}
		if len(entry.Aliases) == 0 {
			return nil, fmt.Errorf("allergen %q has no aliases", entry.Name)
		}
		for _, alias := range entry.Aliases {
			if alias == "" {
				return nil, fmt.Errorf("allergen %q has an empty alias", entry.Name)
			}
		}
		if entry.DisplayName == "" {
			entry.DisplayName = entry.Name
		}
		byName[entry.Name] = entry
		names = append(names, entry.Name)
	}
	sort.Strings(names)

	return &Catalog{entries: byName, names: names}, nil
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(file.Allergens)
}

// Names returns the canonical allergen names in sorted order.
func (c *Catalog) Names() []string {
	ret := make([]string, len(c.names))
	copy(ret, c.names)
	return ret
}

// Entries returns all entries ordered by canonical name.
func (c *Catalog) Entries() []Entry {
	ret := make([]Entry, 0, len(c.names))
	for _, name := range c.names {
		ret = append(ret, c.entries[name])
	}
	return ret
}

// Get returns the entry for a canonical name.
func (c *Catalog) Get(name string) (Entry, bool) {
	entry, ok := c.entries[name]
	return entry, ok
}

// Contains reports whether name is a canonical allergen in the catalog.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// DisplayName returns the human-readable name for a canonical allergen,
// falling back to the canonical name itself.
func (c *Catalog) DisplayName(name string) string {
	if entry, ok := c.entries[name]; ok {
		return entry.DisplayName
	}
	return name
}

// Len returns the number of allergens in the catalog.
func (c *Catalog) Len() int {
	return len(c.names)
}
