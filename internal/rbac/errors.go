package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired indicates the request carried no principal.
	ErrAuthenticationRequired = errors.New("rbac: authentification requise")
	// ErrPermissionDenied indicates the descriptor was not satisfied.
	ErrPermissionDenied = errors.New("rbac: permission refusée")
	// ErrCrossTenantDenied indicates a forbidden cross-tenant access.
	ErrCrossTenantDenied = errors.New("rbac: accès inter-établissement refusé")
	// ErrConditionNotMet indicates a declarative condition failed.
	ErrConditionNotMet = errors.New("rbac: condition non remplie")
	// ErrRoleNotManageable indicates a role-management attempt outside the
	// caller's span of control.
	ErrRoleNotManageable = errors.New("rbac: rôle hors du périmètre de gestion")
)

// PermissionError reports which requirement was missing. The reason lists
// every required alternative or conjunct, never anything about other
// tenants or resources.
type PermissionError struct {
	Required string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("rbac: permission refusée: %s requis", e.Required)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// ConditionError identifies the first condition that failed.
type ConditionError struct {
	Condition Condition
}

func (e *ConditionError) Error() string {
	if e.Condition.Message != "" {
		return "rbac: " + e.Condition.Message
	}
	return fmt.Sprintf("rbac: condition non remplie sur %s (%s)", e.Condition.Field, e.Condition.Operator)
}

func (e *ConditionError) Unwrap() error { return ErrConditionNotMet }

// RoleManagementError carries the offending role pair for a denied
// create/update/delete attempt.
type RoleManagementError struct {
	Actor  string
	Target string
}

func (e *RoleManagementError) Error() string {
	return fmt.Sprintf("rbac: le rôle %q ne peut pas gérer le rôle %q", e.Actor, e.Target)
}

func (e *RoleManagementError) Unwrap() error { return ErrRoleNotManageable }
