package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^BKG-[0-9A-F]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number, err := NewBookingNumber()
		require.NoError(t, err)
		assert.Regexp(t, pattern, number)
		assert.False(t, seen[number], "duplicate booking number %s", number)
		seen[number] = true
	}
}

func TestNewTicketNumber(t *testing.T) {
	number, err := NewTicketNumber()
	require.NoError(t, err)
	assert.Regexp(t, `^TKT-[0-9A-F]{8}$`, number)
}

func TestHexCodeLength(t *testing.T) {
	code, err := HexCode(4)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}
