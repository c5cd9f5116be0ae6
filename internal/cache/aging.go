/*
Package cache provides the optional 24h cache for the company aging
report (spec §4.11: "safe to cache for 24 hours; a daily scheduled task
precomputes and caches it"). Backed by go-redis, the one pack dependency
with no other home in SPEC_FULL.md — wiring it here rather than dropping
it, per the instruction to prefer wiring over dropping a pack dependency.

DESIGN:
  AgingCache is nil-safe: a nil *redis.Client (no REDIS_URL configured)
  makes every Get a miss and every Set a no-op, so callers always fall
  back to recomputing from the store — caching is an optimization here,
  never a correctness dependency.
*/
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ledgercore/core/internal/ledger"
)

// AgingTTL is the cache lifetime spec §4.11 names explicitly.
const AgingTTL = 24 * time.Hour

type AgingCache struct {
	client *redis.Client
}

// NewAgingCache wraps client. Pass nil to disable caching entirely.
func NewAgingCache(client *redis.Client) *AgingCache {
	return &AgingCache{client: client}
}

func agingKey(company ledger.CompanyID, asOf time.Time) string {
	return fmt.Sprintf("aging:%s:%s", company, asOf.Format("2006-01-02"))
}

// Get returns the cached report for (company, asOf), reporting a miss
// (not an error) whenever nothing is cached or caching is disabled.
func (c *AgingCache) Get(ctx context.Context, company ledger.CompanyID, asOf time.Time) (ledger.CompanyAgingReport, bool) {
	if c.client == nil {
		return ledger.CompanyAgingReport{}, false
	}
	raw, err := c.client.Get(ctx, agingKey(company, asOf)).Bytes()
	if err != nil {
		return ledger.CompanyAgingReport{}, false
	}
	var report ledger.CompanyAgingReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return ledger.CompanyAgingReport{}, false
	}
	return report, true
}

// Set stores report under (company, asOf) for AgingTTL and returns any
// marshal or redis error. GetOrCompute discards that error without
// logging it, so a failure to cache never surfaces as a report failure —
// the report itself was already successfully computed.
func (c *AgingCache) Set(ctx context.Context, company ledger.CompanyID, asOf time.Time, report ledger.CompanyAgingReport) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal aging report: %w", err)
	}
	return c.client.Set(ctx, agingKey(company, asOf), raw, AgingTTL).Err()
}

// GetOrCompute returns the cached report if present, otherwise computes
// it via ledger.AgingReportForCompany and populates the cache before
// returning — the "precompute and cache" path a daily scheduled task
// would also call directly.
func GetOrCompute(ctx context.Context, c *AgingCache, s ledger.Store, company ledger.CompanyID, asOf time.Time) (ledger.CompanyAgingReport, error) {
	if report, ok := c.Get(ctx, company, asOf); ok {
		return report, nil
	}
	report, err := ledger.AgingReportForCompany(ctx, s, company, asOf)
	if err != nil {
		return ledger.CompanyAgingReport{}, err
	}
	_ = c.Set(ctx, company, asOf, report)
	return report, nil
}
