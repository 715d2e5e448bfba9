package rbac

import (
	"log/slog"
)

// PermissionEvaluator decides whether an access context satisfies a
// permission descriptor. Granted outcomes on sensitive resources or roles
// are logged when auditing is enabled.
type PermissionEvaluator struct {
	logger         *slog.Logger
	auditResources map[string]struct{}
	auditRoles     map[string]struct{}
}

// PermissionEvaluatorConfig lists the resources and roles whose granted
// accesses are audited.
type PermissionEvaluatorConfig struct {
	AuditResources []string
	AuditRoles     []string
}

// NewPermissionEvaluator constructs an evaluator. The logger may be nil.
func NewPermissionEvaluator(logger *slog.Logger, cfg PermissionEvaluatorConfig) *PermissionEvaluator {
	resources := make(map[string]struct{}, len(cfg.AuditResources))
	for _, r := range cfg.AuditResources {
		resources[r] = struct{}{}
	}
	roles := make(map[string]struct{}, len(cfg.AuditRoles))
	for _, r := range cfg.AuditRoles {
		roles[r] = struct{}{}
	}
	return &PermissionEvaluator{logger: logger, auditResources: resources, auditRoles: roles}
}

// Evaluate returns nil when the descriptor is satisfied, otherwise a
// *PermissionError naming the full requirement.
func (e *PermissionEvaluator) Evaluate(actx AccessContext, descriptor Descriptor) error {
	if e.satisfied(actx, descriptor) {
		e.audit(actx, descriptor)
		return nil
	}
	return &PermissionError{Required: descriptor.String()}
}

func (e *PermissionEvaluator) satisfied(actx AccessContext, descriptor Descriptor) bool {
	switch d := descriptor.(type) {
	case Single:
		return actx.HasPermission(d.Resource, d.Action)
	case AnyOf:
		for _, member := range d.Descriptors {
			if e.satisfied(actx, member) {
				return true
			}
		}
		return false
	case AllOf:
		// Every member is evaluated even after a failure so each check is
		// auditable.
		granted := true
		for _, member := range d.Descriptors {
			if !e.satisfied(actx, member) {
				granted = false
			}
		}
		return granted
	default:
		return false
	}
}

func (e *PermissionEvaluator) audit(actx AccessContext, descriptor Descriptor) {
	if e.logger == nil {
		return
	}
	sensitive := false
	if _, ok := e.auditRoles[actx.Role]; ok {
		sensitive = true
	} else if single, ok := descriptor.(Single); ok {
		if _, ok := e.auditResources[single.Resource]; ok {
			sensitive = true
		}
	}
	if !sensitive {
		return
	}
	e.logger.Info("accès sensible accordé",
		slog.Int64("user_id", actx.UserID),
		slog.String("tenant_id", actx.TenantID),
		slog.String("role", actx.Role),
		slog.String("permission", descriptor.String()),
	)
}
