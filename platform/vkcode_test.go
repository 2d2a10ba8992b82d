package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVKCode(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"F7", 0x76},
		{"f8", 0x77},
		{" Page Up ", 0x21},
		{"A", 0x41},
		{"9", 0x39},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := VKCode(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVKCodeUnknown(t *testing.T) {
	_, err := VKCode("hyper")
	assert.ErrorContains(t, err, "unknown key")
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "record", HotkeyRecord.String())
	assert.Equal(t, "play", HotkeyPlay.String())
}
