package rbac

// TenantGuard enforces the tenant-isolation boundary. Cross-tenant access
// is a two-factor gate: the resource must opt in and the caller must
// belong to the central authority tenant.
type TenantGuard struct {
	// CentralTenant is the ministry tenant allowed to cross boundaries.
	CentralTenant string
}

// Check returns nil when the context may touch targetTenantID.
func (g TenantGuard) Check(actx AccessContext, targetTenantID string, allowCrossTenant bool) error {
	if targetTenantID == "" || targetTenantID == actx.TenantID {
		return nil
	}
	if !allowCrossTenant {
		return ErrCrossTenantDenied
	}
	if actx.TenantID != g.CentralTenant {
		return ErrCrossTenantDenied
	}
	return nil
}
