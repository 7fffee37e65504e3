package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
)

var (
	// ErrTenantMismatch indicates the zone belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates the zone does not exist.
	ErrNotFound = errors.New("zone not found")
)

// ZoneTenantChecker validates zone tenant ownership. Tenant isolation is a
// hard invariant: every zone-scoped endpoint checks it before touching data.
type ZoneTenantChecker interface {
	EnsureZoneTenant(ctx context.Context, tenantID, zoneID string) error
}

// ZoneChecker checks zone ownership against the zones table.
type ZoneChecker struct {
	db *sql.DB
}

// NewZoneChecker constructs a ZoneChecker.
func NewZoneChecker(db *sql.DB) *ZoneChecker {
	if db == nil {
		return nil
	}
	return &ZoneChecker{db: db}
}

// EnsureZoneTenant verifies the zone belongs to the tenant.
func (c *ZoneChecker) EnsureZoneTenant(ctx context.Context, tenantID, zoneID string) error {
	if c == nil || c.db == nil {
		return nil
	}
	if tenantID == "" || zoneID == "" {
		return nil
	}
	var owner string
	err := c.db.QueryRowContext(ctx, `
SELECT tenant_id
FROM zones
WHERE id = $1
LIMIT 1`, zoneID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != tenantID {
		return ErrTenantMismatch
	}
	return nil
}

// EnsureZoneAccess applies the tenant check for an HTTP request and writes the
// error response itself. Returns false when the caller must stop.
func EnsureZoneAccess(ctx context.Context, checker ZoneTenantChecker, zoneID string, w http.ResponseWriter) bool {
	if checker == nil {
		return true
	}
	err := checker.EnsureZoneTenant(ctx, TenantIDFromContext(ctx), zoneID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound):
		http.Error(w, "zone not found", http.StatusNotFound)
		return false
	case errors.Is(err, ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	default:
		http.Error(w, "zone check error", http.StatusInternalServerError)
		return false
	}
}
