package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	token, err := Encode(Cursor{ID: 42, Unix: 1700000000000})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), c.ID)
	assert.Equal(t, int64(1700000000000), c.Unix)
}

func TestDecodeEmptyTokenIsFirstPage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.Zero(t, c.ID)
	assert.Zero(t, c.Unix)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not base64 at all!!!")
	assert.Error(t, err)

	// valid base64, invalid JSON
	_, err = Decode("bm90LWpzb24")
	assert.Error(t, err)
}
