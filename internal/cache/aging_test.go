package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/cache"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/store/memory"
)

// A nil client disables caching outright; GetOrCompute must still return
// a correct report by falling back to the store every time.
func TestAgingCacheDisabledFallsBackToCompute(t *testing.T) {
	c := cache.NewAgingCache(nil)
	store := memory.New()
	company := ledger.CompanyID("acme")
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	_, hit := c.Get(context.Background(), company, asOf)
	assert.False(t, hit)

	report, err := cache.GetOrCompute(context.Background(), c, store, company, asOf)
	require.NoError(t, err)
	assert.True(t, report.IsBalanced)
	assert.Empty(t, report.Groups)

	require.NoError(t, c.Set(context.Background(), company, asOf, report))
	_, hit = c.Get(context.Background(), company, asOf)
	assert.False(t, hit, "Set is a no-op with no client, so Get still misses")
}
