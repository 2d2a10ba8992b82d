package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range All() {
		require.False(t, seen[k.Name], "duplicate key name %q", k.Name)
		seen[k.Name] = true
	}
	assert.False(t, seen[MouseMove], "mouseMove must stay reserved")
}

func TestLookup(t *testing.T) {
	k, ok := Lookup("A")
	require.True(t, ok)
	assert.Equal(t, uint16(0x1E), k.Code)
	assert.False(t, k.IsMouse())

	_, ok = Lookup("a")
	assert.False(t, ok, "exact lookup is case sensitive")

	k, ok = LookupFold(" caps lock ")
	require.True(t, ok)
	assert.Equal(t, "Caps Lock", k.Name)

	k, ok = Lookup(MouseSide2)
	require.True(t, ok)
	assert.True(t, k.IsMouse())
	assert.Equal(t, uint16(0x06), k.Code)
}

func TestLookupLegacyNames(t *testing.T) {
	k, ok := Lookup("Windows")
	require.True(t, ok)
	assert.Equal(t, "Sleep", k.Name)
	assert.Equal(t, uint16(0xDF), k.Code)

	for _, c := range All() {
		assert.NotEqual(t, "Windows", c.Name, "legacy names are never listed")
	}
	_, ok = LookupFold("windows")
	assert.False(t, ok, "legacy names are not accepted for hotkeys")
}

func TestExtendedKeys(t *testing.T) {
	tests := []struct {
		name     string
		extended bool
		scan     uint16
	}{
		{"A", false, 0x1E},
		{"↑", true, 0x48},
		{"Delete", true, 0x53},
		{"Ctrl(Right)", true, 0x1D},
		{"Alt(Right)", true, 0x38},
		{"Windows(Left)", true, 0x5B},
		{"=(Numpad)", false, 0x8D},
	}

	for _, tt := range tests {
		k, ok := Lookup(tt.name)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.extended, k.Extended(), tt.name)
		assert.Equal(t, tt.scan, k.ScanCode(), tt.name)
	}
}

func TestSideSpecificModifiers(t *testing.T) {
	for _, name := range []string{"Shift(Left)", "Shift(Right)", "Ctrl(Left)", "Ctrl(Right)", "Alt(Left)", "Alt(Right)"} {
		k, ok := Lookup(name)
		require.True(t, ok)
		assert.NotZero(t, k.SideVK, name)
	}

	k, _ := Lookup("Space")
	assert.Zero(t, k.SideVK)
}

func TestTrackedExcludesHotkeys(t *testing.T) {
	keys := Tracked("f7", "F8", "not-a-key")
	assert.Len(t, keys, len(All())-2)
	for _, k := range keys {
		assert.NotEqual(t, "F7", k.Name)
		assert.NotEqual(t, "F8", k.Name)
	}
	assert.True(t, keys[0].IsMouse(), "mouse buttons come first")
}
