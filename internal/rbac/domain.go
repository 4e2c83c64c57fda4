package rbac

import "strings"

// Actor is the authenticated principal a transition is evaluated against.
// It carries the effective permission set resolved once at the gateway
// boundary; client-supplied capability flags are never trusted.
type Actor struct {
	ID          int64
	Admin       bool
	permissions map[string]struct{}
}

// NewActor builds an Actor from a resolved permission list.
func NewActor(id int64, admin bool, permissions []string) Actor {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return Actor{ID: id, Admin: admin, permissions: set}
}

// Can reports whether the actor holds the permission. Administrators bypass
// all checks.
func (a Actor) Can(permission string) bool {
	if a.Admin {
		return true
	}
	_, ok := a.permissions[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// CanAny reports whether the actor holds at least one of the permissions.
func (a Actor) CanAny(permissions ...string) bool {
	if a.Admin {
		return true
	}
	for _, p := range permissions {
		if a.Can(p) {
			return true
		}
	}
	return false
}

// Permissions returns the resolved permission names.
func (a Actor) Permissions() []string {
	out := make([]string, 0, len(a.permissions))
	for p := range a.permissions {
		out = append(out, p)
	}
	return out
}
