package rbac

import (
	"strings"
)

// AccessContext carries the authenticated principal's identity for one
// request. It is built when the request enters the authorization pipeline,
// never mutated afterwards and discarded at request end.
type AccessContext struct {
	UserID      int64
	TenantID    string
	Role        string
	Permissions map[string]struct{}
	SourceIP    string
}

// NewAccessContext builds an immutable context from a principal's grants.
func NewAccessContext(userID int64, tenantID, role string, permissions []string, sourceIP string) AccessContext {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return AccessContext{
		UserID:      userID,
		TenantID:    tenantID,
		Role:        role,
		Permissions: set,
		SourceIP:    sourceIP,
	}
}

// HasPermission reports whether the context grants "resource:action",
// either literally or through a wildcard grant.
func (c AccessContext) HasPermission(resource, action string) bool {
	if _, ok := c.Permissions["*"]; ok {
		return true
	}
	if _, ok := c.Permissions[resource+":"+action]; ok {
		return true
	}
	if _, ok := c.Permissions[resource+":*"]; ok {
		return true
	}
	if _, ok := c.Permissions["*:"+action]; ok {
		return true
	}
	return false
}

// Descriptor is the permission requirement attached to a protected
// operation at route-registration time. It is a sealed union: Single,
// AnyOf and AllOf are the only implementations.
type Descriptor interface {
	// String renders the requirement the way deny reasons report it.
	String() string
	sealed()
}

// Single requires one "resource:action" grant.
type Single struct {
	Resource string
	Action   string
}

func (s Single) String() string { return s.Resource + ":" + s.Action }
func (Single) sealed()          {}

// AnyOf is satisfied when at least one member descriptor is satisfied.
type AnyOf struct {
	Descriptors []Descriptor
}

func (a AnyOf) String() string { return joinDescriptors(a.Descriptors, " OR ") }
func (AnyOf) sealed()          {}

// AllOf is satisfied only when every member descriptor is satisfied.
type AllOf struct {
	Descriptors []Descriptor
}

func (a AllOf) String() string { return joinDescriptors(a.Descriptors, " AND ") }
func (AllOf) sealed()          {}

// Require builds a Single descriptor.
func Require(resource, action string) Single {
	return Single{Resource: resource, Action: action}
}

// Any builds an AnyOf descriptor.
func Any(descriptors ...Descriptor) AnyOf {
	return AnyOf{Descriptors: descriptors}
}

// All builds an AllOf descriptor.
func All(descriptors ...Descriptor) AllOf {
	return AllOf{Descriptors: descriptors}
}

func joinDescriptors(descriptors []Descriptor, sep string) string {
	parts := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, sep)
}

// Request is the pipeline's view of one inbound operation: the principal
// context plus the request sections conditions may inspect.
type Request struct {
	Context       AccessContext
	Authenticated bool
	Method        string
	Path          string
	UserAgent     string
	Body          map[string]any
	Query         map[string]any
	Params        map[string]any
}
