package hierarchy

import (
	"context"
	"errors"

	"github.com/wrrk/support/internal/domain"
)

// ErrCycle reports a created-by chain that revisits a user. The relation
// is supposed to be a forest; a revisit means the data is malformed and
// the walk stops instead of looping.
var ErrCycle = errors.New("hierarchy: created-by relation contains a cycle")

// ErrNoManager reports a user with no creator, e.g. a root Owner.
var ErrNoManager = errors.New("hierarchy: user has no manager")

// ErrUnknownRole reports an actor whose role is not a known value.
var ErrUnknownRole = errors.New("hierarchy: unknown actor role")

// maxDepth bounds the BFS even if the visited-set guard were somehow
// defeated by concurrent roster changes mid-walk.
const maxDepth = 64

// Subtree is the set of user IDs visible to an actor, actor included.
type Subtree map[string]struct{}

// Contains reports membership.
func (s Subtree) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members as a slice for query parameters.
func (s Subtree) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// Directory is the read-only slice of the user store the resolver needs.
type Directory interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.User, error)
	ListByCreators(ctx context.Context, orgID string, creatorIDs []string) ([]domain.User, error)
}

// Cache optionally memoizes computed subtrees. Implementations must drop
// entries for an organization when its roster grows.
type Cache interface {
	Get(ctx context.Context, orgID, userID string) (Subtree, bool)
	Set(ctx context.Context, orgID, userID string, subtree Subtree)
	Invalidate(ctx context.Context, orgID string)
}

// Resolver computes visibility subtrees over the created-by forest.
type Resolver struct {
	users Directory
	cache Cache
}

// NewResolver constructs a resolver. cache may be nil, in which case every
// request recomputes.
func NewResolver(users Directory, cache Cache) *Resolver {
	return &Resolver{users: users, cache: cache}
}

// SubtreeUserIDs returns the set of user IDs the actor may see or assign
// to. Owners see the whole organization, agents see only themselves, and
// managers see themselves plus everyone transitively created by them.
func (r *Resolver) SubtreeUserIDs(ctx context.Context, actor *domain.Actor) (Subtree, error) {
	switch actor.Role {
	case domain.RoleOwner:
		users, err := r.users.ListByOrganization(ctx, actor.OrganizationID)
		if err != nil {
			return nil, err
		}
		subtree := make(Subtree, len(users)+1)
		subtree[actor.ID] = struct{}{}
		for _, user := range users {
			subtree[user.ID] = struct{}{}
		}
		return subtree, nil
	case domain.RoleAgent:
		return Subtree{actor.ID: {}}, nil
	case domain.RoleManager:
		if r.cache != nil {
			if cached, ok := r.cache.Get(ctx, actor.OrganizationID, actor.ID); ok {
				return cached, nil
			}
		}
		subtree, err := r.walk(ctx, actor.OrganizationID, actor.ID)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.Set(ctx, actor.OrganizationID, actor.ID, subtree)
		}
		return subtree, nil
	default:
		return nil, ErrUnknownRole
	}
}

// walk collects the created-by closure breadth first, one batched
// children-of-frontier query per level.
func (r *Resolver) walk(ctx context.Context, orgID, rootID string) (Subtree, error) {
	subtree := Subtree{rootID: {}}
	frontier := []string{rootID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxDepth {
			return nil, ErrCycle
		}
		children, err := r.users.ListByCreators(ctx, orgID, frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, child := range children {
			if subtree.Contains(child.ID) {
				return nil, ErrCycle
			}
			subtree[child.ID] = struct{}{}
			frontier = append(frontier, child.ID)
		}
	}
	return subtree, nil
}

// ManagerOf returns the ID of the user who created the given user, the
// escalation target for agents. Root records (no creator) yield
// ErrNoManager; callers surface that as an explicit error, never a silent
// nil assignee.
func (r *Resolver) ManagerOf(ctx context.Context, userID string) (string, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.CreatedByID == nil {
		return "", ErrNoManager
	}
	return *user.CreatedByID, nil
}
