package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polling/internal/identity"
)

func TestParseAddress(t *testing.T) {
	a, err := identity.ParseAddress("  0xAbCdEf0123456789abcdef0123456789ABCDEF01 ")
	require.NoError(t, err)
	assert.Equal(t, identity.Address("0xabcdef0123456789abcdef0123456789abcdef01"), a)
	assert.Equal(t, "0xabcd…ef01", a.Short())
	assert.False(t, a.IsZero())

	for _, bad := range []string{
		"",
		"abcdef0123456789abcdef0123456789abcdef01",
		"0x1234",
		"0xzzcdef0123456789abcdef0123456789abcdef01",
	} {
		_, err := identity.ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "", identity.NormalizeText(" \t\n"))
	assert.Equal(t, "Stakeholder 1", identity.NormalizeText("  Stakeholder 1 "))
	assert.Equal(t, "Caf\u00e9", identity.NormalizeText("Cafe\u0301"))
}
