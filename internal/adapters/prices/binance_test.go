package prices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPrices_EmptySymbolList(t *testing.T) {
	c := NewClient()

	got, err := c.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewClient_Timeout(t *testing.T) {
	c := NewClient()
	assert.NotZero(t, c.api.HTTPClient.Timeout)
}
