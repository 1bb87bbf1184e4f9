// Package access holds the role rules: which plans a user may see, which
// actions they may take and which screens they may open. Everything here is
// a pure function of its arguments.
package access

import (
	"slices"

	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/pkg/fleet"
)

// VisiblePlans returns the plans user may see. Inspectors only see plans
// assigned to or created by them; admins and viewers see everything.
func VisiblePlans(plans []fleet.OrsPlan, user fleet.User) []fleet.OrsPlan {
	if user.Role != fleet.RoleInspector {
		return plans
	}

	visible := make([]fleet.OrsPlan, 0, len(plans))
	for _, plan := range plans {
		if Involves(plan, user.ID) {
			visible = append(visible, plan)
		}
	}
	return visible
}

// Involves reports whether userID is the assignee or the creator of plan.
func Involves(plan fleet.OrsPlan, userID string) bool {
	if userID == "" {
		return false
	}
	return plan.AssignedTo.ID() == userID || plan.CreatedBy.ID() == userID
}

func CanModify(user fleet.User) bool {
	return user.Role == fleet.RoleAdmin || user.Role == fleet.RoleInspector
}

// CanEdit reports whether user may edit plan. Inspectors are limited to the
// plans they can see.
func CanEdit(user fleet.User, plan fleet.OrsPlan) bool {
	if !CanModify(user) {
		return false
	}
	return user.Role != fleet.RoleInspector || Involves(plan, user.ID)
}

func CanDelete(user fleet.User) bool {
	return user.Role == fleet.RoleAdmin
}

// CanManageUsers gates the user administration screens.
func CanManageUsers(user fleet.User) bool {
	return user.Role == fleet.RoleAdmin
}

// Authorize checks a session against the roles allowed on a screen or
// operation. With no roles given any authenticated session passes.
func Authorize(session fleet.Session, allowed ...fleet.Role) error {
	if !session.Authenticated() {
		return perrors.NewErrUnauthorized("login required")
	}
	if len(allowed) > 0 && !slices.Contains(allowed, session.User.Role) {
		return perrors.NewErrForbidden("access denied for role " + string(session.User.Role))
	}
	return nil
}
