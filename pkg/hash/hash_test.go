package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("p@ss")
	require.NoError(t, err)
	require.NotEmpty(t, h)
	assert.NotEqual(t, "p@ss", h)

	assert.True(t, CheckPassword(h, "p@ss"))
	assert.False(t, CheckPassword(h, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "p@ss"))
}
