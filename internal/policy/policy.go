// Package policy is the single place role comparisons happen. Every
// decision is a pure function of the actor's role and a precomputed
// subtree; none of them touch storage, which keeps authorization
// auditable and side-effect free.
package policy

import (
	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/hierarchy"
)

// CanAssign reports whether the actor may set a ticket's assignee to
// targetID. Agents never assign directly; their path is escalation.
func CanAssign(role domain.Role, subtree hierarchy.Subtree, targetID string) bool {
	switch role {
	case domain.RoleOwner:
		return true
	case domain.RoleManager:
		return subtree.Contains(targetID)
	default:
		return false
	}
}

// CanEscalate reports whether the actor may hand a ticket to their
// immediate manager. This is specifically the agent-to-manager path;
// managers and owners assign directly instead.
func CanEscalate(role domain.Role) bool {
	return role == domain.RoleAgent
}

// CanChangeRole reports whether the actor may mutate another user's role.
func CanChangeRole(role domain.Role) bool {
	return role == domain.RoleOwner
}

// CanManageUser reports whether the actor may edit the target user's
// profile.
func CanManageUser(actorID string, role domain.Role, subtree hierarchy.Subtree, targetID string) bool {
	if actorID == targetID {
		return true
	}
	if role == domain.RoleAgent {
		return false
	}
	return subtree.Contains(targetID)
}
