package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cat := Default()
	require.NotNil(t, cat)
	assert.Equal(t, 13, cat.Len())

	entry, ok := cat.Get("peanut")
	require.True(t, ok)
	assert.Equal(t, "Peanut", entry.DisplayName)
	assert.Contains(t, entry.Aliases, "arachis")

	assert.Equal(t, "Milk / Dairy", cat.DisplayName("milk"))
	assert.True(t, cat.Contains("sulfites"))
	assert.False(t, cat.Contains("chocolate"))
}

func TestNames_Sorted(t *testing.T) {
	cat := Default()
	names := cat.Names()
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New([]Entry{{Name: "", Aliases: []string{"x"}}})
	assert.ErrorContains(t, err, "empty name")

	_, err = New([]Entry{
		{Name: "milk", Aliases: []string{"milk"}},
		{Name: "milk", Aliases: []string{"lactose"}},
	})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New([]Entry{{Name: "milk", Aliases: nil}})
	assert.ErrorContains(t, err, "no aliases")

	_, err = New([]Entry{{Name: "milk", Aliases: []string{""}}})
	assert.ErrorContains(t, err, "empty alias")
}

func TestNew_DisplayNameFallback(t *testing.T) {
	cat, err := New([]Entry{{Name: "milk", Aliases: []string{"milk"}}})
	require.NoError(t, err)
	assert.Equal(t, "milk", cat.DisplayName("milk"))
	assert.Equal(t, "unknown", cat.DisplayName("unknown"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `allergens:
  - name: milk
    display_name: Milk
    aliases: [milk, lactose]
  - name: peanut
    aliases: [peanut]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"milk", "peanut"}, cat.Names())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allergens: {not: a list}"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
