package rbac

// HierarchyConfig is the externally supplied role-level table.
type HierarchyConfig struct {
	// Levels maps role name to privilege level; higher wins.
	Levels map[string]int
	// TopRole has unconditional top privilege regardless of level.
	TopRole string
	// RestrictedManagers may only manage BasicRole, whatever their level.
	RestrictedManagers []string
	// BasicRole is the single role restricted managers may administer.
	BasicRole string
}

// Hierarchy answers ordering questions over the configured role table.
type Hierarchy struct {
	levels     map[string]int
	top        string
	restricted map[string]struct{}
	basic      string
}

// UserRef is the minimal view of a user the visibility filter needs.
type UserRef struct {
	ID   int64
	Role string
}

// NewHierarchy builds a resolver from the configured table.
func NewHierarchy(cfg HierarchyConfig) *Hierarchy {
	levels := make(map[string]int, len(cfg.Levels))
	for name, level := range cfg.Levels {
		levels[name] = level
	}
	restricted := make(map[string]struct{}, len(cfg.RestrictedManagers))
	for _, name := range cfg.RestrictedManagers {
		restricted[name] = struct{}{}
	}
	return &Hierarchy{
		levels:     levels,
		top:        cfg.TopRole,
		restricted: restricted,
		basic:      cfg.BasicRole,
	}
}

// Level returns the configured level of a role. Unknown roles are level 0.
func (h *Hierarchy) Level(role string) int {
	return h.levels[role]
}

// CanManage reports whether manager may administer target. The top role
// manages everything; restricted managers manage only the basic role;
// everyone else manages strictly lower levels.
func (h *Hierarchy) CanManage(manager, target string) bool {
	if manager == h.top {
		return true
	}
	if _, ok := h.restricted[manager]; ok {
		return target == h.basic
	}
	return h.Level(target) < h.Level(manager)
}

// ManageableRoles filters roles down to the ones manager may administer.
func (h *Hierarchy) ManageableRoles(manager string, roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if h.CanManage(manager, role) {
			out = append(out, role)
		}
	}
	return out
}

// VisibleUsers filters users down to the ones whose role manager may
// administer. The top role sees everyone.
func (h *Hierarchy) VisibleUsers(manager string, users []UserRef) []UserRef {
	out := make([]UserRef, 0, len(users))
	for _, u := range users {
		if h.CanManage(manager, u.Role) {
			out = append(out, u)
		}
	}
	return out
}

// ValidateRoleCreation rejects creating a role the actor could not manage.
func (h *Hierarchy) ValidateRoleCreation(actor, newRole string) error {
	return h.validate(actor, newRole)
}

// ValidateRoleUpdate rejects updating a role outside the actor's span.
func (h *Hierarchy) ValidateRoleUpdate(actor, target string) error {
	return h.validate(actor, target)
}

// ValidateRoleDeletion rejects deleting a role outside the actor's span.
func (h *Hierarchy) ValidateRoleDeletion(actor, target string) error {
	return h.validate(actor, target)
}

func (h *Hierarchy) validate(actor, target string) error {
	if h.CanManage(actor, target) {
		return nil
	}
	return &RoleManagementError{Actor: actor, Target: target}
}
