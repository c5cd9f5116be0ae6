// Package audit is the thin read-side wrapper around the append-only
// audit trail ledger.Store.AppendAuditLog writes into: posting,
// reversal, and approval already append entries directly from
// internal/ledger as a side effect of their own transactions (spec
// §4.5/§7 "post-commit failures must be logged"). This package covers
// the other half — querying that trail back out for a specific company
// or object, the shape a compliance export or an audit-trail endpoint
// in internal/httpapi needs.
package audit

import (
	"context"
	"fmt"

	"github.com/ledgercore/core/internal/ledger"
)

// DefaultLimit caps an unqualified company-wide query so a forgotten
// limit never pulls an unbounded audit trail into memory.
const DefaultLimit = 200

// Reader queries a company's audit trail.
type Reader struct {
	Store ledger.Store
}

func NewReader(store ledger.Store) *Reader {
	return &Reader{Store: store}
}

// ForCompany returns a company's most recent audit entries, newest first.
func (r *Reader) ForCompany(ctx context.Context, company ledger.CompanyID, limit int) ([]ledger.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := r.Store.ListAuditLogs(ctx, company, "", "", limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list for company %s: %w", company, err)
	}
	return entries, nil
}

// ForObject returns the audit trail for a single object — a voucher,
// approval, or reversal — newest first. Both objectType and objectID
// are required; use ForCompany for the unfiltered trail.
func (r *Reader) ForObject(ctx context.Context, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	if objectType == "" || objectID == "" {
		return nil, fmt.Errorf("audit: objectType and objectID are both required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := r.Store.ListAuditLogs(ctx, company, objectType, objectID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list for %s %s: %w", objectType, objectID, err)
	}
	return entries, nil
}
