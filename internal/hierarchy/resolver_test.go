package hierarchy

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/wrrk/support/internal/domain"
)

var errUserNotFound = errors.New("user not found")

type fakeDirectory struct {
	users []*domain.User
}

func (d *fakeDirectory) add(id, orgID string, role domain.Role, createdBy *string) {
	d.users = append(d.users, &domain.User{
		ID:             id,
		OrganizationID: orgID,
		Role:           role,
		CreatedByID:    createdBy,
	})
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range d.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, errUserNotFound
}

func (d *fakeDirectory) ListByOrganization(_ context.Context, orgID string) ([]domain.User, error) {
	var result []domain.User
	for _, user := range d.users {
		if user.OrganizationID == orgID {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (d *fakeDirectory) ListByCreators(_ context.Context, orgID string, creatorIDs []string) ([]domain.User, error) {
	creators := make(map[string]struct{}, len(creatorIDs))
	for _, id := range creatorIDs {
		creators[id] = struct{}{}
	}
	var result []domain.User
	for _, user := range d.users {
		if user.OrganizationID != orgID || user.CreatedByID == nil {
			continue
		}
		if _, ok := creators[*user.CreatedByID]; ok {
			result = append(result, *user)
		}
	}
	return result, nil
}

func ptr(s string) *string { return &s }

// buildOrg seeds the canonical forest: owner O, managers M and M2 under
// O, agents A1 and A2 under M, agent A3 under M2.
func buildOrg(dir *fakeDirectory) {
	dir.add("O", "org-1", domain.RoleOwner, nil)
	dir.add("M", "org-1", domain.RoleManager, ptr("O"))
	dir.add("M2", "org-1", domain.RoleManager, ptr("O"))
	dir.add("A1", "org-1", domain.RoleAgent, ptr("M"))
	dir.add("A2", "org-1", domain.RoleAgent, ptr("M"))
	dir.add("A3", "org-1", domain.RoleAgent, ptr("M2"))
}

func sortedIDs(s Subtree) []string {
	ids := s.IDs()
	sort.Strings(ids)
	return ids
}

func TestOwnerSeesWholeOrganization(t *testing.T) {
	dir := &fakeDirectory{}
	buildOrg(dir)
	resolver := NewResolver(dir, nil)

	subtree, err := resolver.SubtreeUserIDs(context.Background(), &domain.Actor{ID: "O", Role: domain.RoleOwner, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("resolve owner subtree: %v", err)
	}
	want := []string{"A1", "A2", "A3", "M", "M2", "O"}
	got := sortedIDs(subtree)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestAgentSeesOnlySelf(t *testing.T) {
	dir := &fakeDirectory{}
	buildOrg(dir)
	resolver := NewResolver(dir, nil)

	subtree, err := resolver.SubtreeUserIDs(context.Background(), &domain.Actor{ID: "A1", Role: domain.RoleAgent, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("resolve agent subtree: %v", err)
	}
	if len(subtree) != 1 || !subtree.Contains("A1") {
		t.Fatalf("expected {A1}, got %v", sortedIDs(subtree))
	}
}

func TestManagerSeesTransitiveClosure(t *testing.T) {
	dir := &fakeDirectory{}
	buildOrg(dir)
	resolver := NewResolver(dir, nil)

	subtree, err := resolver.SubtreeUserIDs(context.Background(), &domain.Actor{ID: "M", Role: domain.RoleManager, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("resolve manager subtree: %v", err)
	}
	want := []string{"A1", "A2", "M"}
	got := sortedIDs(subtree)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if subtree.Contains("A3") {
		t.Fatal("manager must not see sibling manager's agent")
	}
}

func TestManagerClosureSpansNestedManagers(t *testing.T) {
	dir := &fakeDirectory{}
	dir.add("O", "org-1", domain.RoleOwner, nil)
	dir.add("M", "org-1", domain.RoleManager, ptr("O"))
	dir.add("M2", "org-1", domain.RoleManager, ptr("M"))
	dir.add("A", "org-1", domain.RoleAgent, ptr("M2"))
	resolver := NewResolver(dir, nil)

	subtree, err := resolver.SubtreeUserIDs(context.Background(), &domain.Actor{ID: "M", Role: domain.RoleManager, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("resolve nested closure: %v", err)
	}
	for _, id := range []string{"M", "M2", "A"} {
		if !subtree.Contains(id) {
			t.Fatalf("expected %s in closure, got %v", id, sortedIDs(subtree))
		}
	}
}

func TestCycleDetected(t *testing.T) {
	dir := &fakeDirectory{}
	dir.add("U1", "org-1", domain.RoleManager, ptr("U2"))
	dir.add("U2", "org-1", domain.RoleManager, ptr("U1"))
	resolver := NewResolver(dir, nil)

	_, err := resolver.SubtreeUserIDs(context.Background(), &domain.Actor{ID: "U1", Role: domain.RoleManager, OrganizationID: "org-1"})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{}, nil)
	_, err := resolver.SubtreeUserIDs(context.Background(), &domain.Actor{ID: "X", Role: "SUPERVISOR", OrganizationID: "org-1"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestManagerOf(t *testing.T) {
	dir := &fakeDirectory{}
	buildOrg(dir)
	resolver := NewResolver(dir, nil)

	managerID, err := resolver.ManagerOf(context.Background(), "A1")
	if err != nil {
		t.Fatalf("manager of A1: %v", err)
	}
	if managerID != "M" {
		t.Fatalf("expected manager M, got %q", managerID)
	}

	if _, err := resolver.ManagerOf(context.Background(), "O"); !errors.Is(err, ErrNoManager) {
		t.Fatalf("expected ErrNoManager for root owner, got %v", err)
	}
}

type staticCache struct {
	subtree Subtree
	hits    int
	sets    int
}

func (c *staticCache) Get(_ context.Context, _, _ string) (Subtree, bool) {
	if c.subtree != nil {
		c.hits++
		return c.subtree, true
	}
	return nil, false
}

func (c *staticCache) Set(_ context.Context, _, _ string, subtree Subtree) {
	c.sets++
	c.subtree = subtree
}

func (c *staticCache) Invalidate(context.Context, string) { c.subtree = nil }

func TestManagerSubtreeCached(t *testing.T) {
	dir := &fakeDirectory{}
	buildOrg(dir)
	cache := &staticCache{}
	resolver := NewResolver(dir, cache)
	actor := &domain.Actor{ID: "M", Role: domain.RoleManager, OrganizationID: "org-1"}

	if _, err := resolver.SubtreeUserIDs(context.Background(), actor); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache set, got %d", cache.sets)
	}
	if _, err := resolver.SubtreeUserIDs(context.Background(), actor); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}
}
