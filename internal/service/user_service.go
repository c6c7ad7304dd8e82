package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wrrk/support/internal/auth"
	"github.com/wrrk/support/internal/config"
	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/policy"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

// UserService manages signup, login, invitations, and directory
// mutations. The created-by forest grows in exactly two places: the
// bootstrap Owner (nil creator) and invitation acceptance (creator =
// inviter).
type UserService struct {
	users       repository.UserRepository
	orgs        repository.OrganizationRepository
	invitations repository.InvitationRepository
	audit       repository.AuditLogRepository
	resolver    *hierarchy.Resolver
	cache       hierarchy.Cache
	tokens      *auth.TokenManager
	dispatcher  events.Dispatcher
	cfg         config.AuthConfig
}

// UserDependencies bundles collaborators.
type UserDependencies struct {
	UserRepo       repository.UserRepository
	OrgRepo        repository.OrganizationRepository
	InvitationRepo repository.InvitationRepository
	AuditRepo      repository.AuditLogRepository
	Resolver       *hierarchy.Resolver
	Cache          hierarchy.Cache
	Tokens         *auth.TokenManager
	Dispatcher     events.Dispatcher
	Config         config.AuthConfig
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:       deps.UserRepo,
		orgs:        deps.OrgRepo,
		invitations: deps.InvitationRepo,
		audit:       deps.AuditRepo,
		resolver:    deps.Resolver,
		cache:       deps.Cache,
		tokens:      deps.Tokens,
		dispatcher:  deps.Dispatcher,
		cfg:         deps.Config,
	}
}

// Signup bootstraps a new organization with its first Owner.
func (s *UserService) Signup(ctx context.Context, orgName, name, email, password string) (*domain.User, string, error) {
	orgName = strings.TrimSpace(orgName)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if orgName == "" || name == "" || email == "" || password == "" {
		return nil, "", apperrors.NewValidationError("organization, name, email, password required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}

	org := &domain.Organization{Name: orgName}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, "", apperrors.MapError(err)
	}

	user := &domain.User{
		OrganizationID: org.ID,
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           domain.RoleOwner,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", apperrors.MapError(err)
	}

	token, _, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}
	return user, token, nil
}

// Login authenticates by email and password.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", apperrors.NewUnauthorized("invalid credentials")
	}

	token, _, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}
	return user, token, nil
}

// Invite creates a pending invitation. Owners and Managers may invite;
// the invited role is limited to MANAGER or AGENT.
func (s *UserService) Invite(ctx context.Context, actor *domain.Actor, email string, role domain.Role) (*domain.Invitation, error) {
	if actor.Role != domain.RoleOwner && actor.Role != domain.RoleManager {
		return nil, apperrors.NewForbidden("insufficient role to invite")
	}
	if role != domain.RoleManager && role != domain.RoleAgent {
		return nil, apperrors.NewValidationError("invited role must be MANAGER or AGENT", nil)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperrors.NewValidationError("email required", nil)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	ttl := time.Duration(s.cfg.InvitationTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	inv := &domain.Invitation{
		OrganizationID: actor.OrganizationID,
		InviterID:      actor.ID,
		Email:          email,
		Role:           role,
		Token:          uuid.NewString(),
		ExpiresAt:      time.Now().Add(ttl),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, apperrors.MapError(err)
	}
	return inv, nil
}

// AcceptInvitation turns a pending invitation into a directory record.
// The new user's CreatedByID is the inviter, extending the inviter's
// subtree, so any cached subtrees for the organization are dropped.
func (s *UserService) AcceptInvitation(ctx context.Context, token, name, password string) (*domain.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, "", apperrors.NewValidationError("name and password required", nil)
	}

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperrors.NewNotFound("invitation", nil)
		}
		return nil, "", apperrors.MapError(err)
	}
	if inv.AcceptedAt != nil {
		return nil, "", apperrors.NewConflict("invitation already accepted", nil)
	}
	if inv.Expired(time.Now()) {
		return nil, "", apperrors.NewConflict("invitation expired", nil)
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}

	inviterID := inv.InviterID
	user := &domain.User{
		OrganizationID: inv.OrganizationID,
		Name:           name,
		Email:          inv.Email,
		PasswordHash:   hash,
		Role:           inv.Role,
		CreatedByID:    &inviterID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", apperrors.MapError(err)
	}
	if err := s.invitations.MarkAccepted(ctx, inv.ID); err != nil {
		return nil, "", apperrors.MapError(err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, inv.OrganizationID)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventUserJoined,
		OrganizationID: user.OrganizationID,
		Actor:          events.Actor{UserID: &user.ID},
		Payload:        map[string]any{"role": user.Role, "invited_by": inviterID},
	})

	jwt, _, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}
	return user, jwt, nil
}

// ChangeRole mutates another user's role; only Owners may.
func (s *UserService) ChangeRole(ctx context.Context, actor *domain.Actor, targetID string, newRole domain.Role) (*domain.User, error) {
	if !policy.CanChangeRole(actor.Role) {
		return nil, apperrors.NewForbidden("only owners change roles")
	}
	if !newRole.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": newRole})
	}

	target, err := s.visibleUser(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}

	oldRole := target.Role
	target.Role = newRole
	if err := s.users.Update(ctx, target); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.audit != nil {
		_ = s.audit.Create(ctx, &domain.AuditLog{
			OrganizationID: target.OrganizationID,
			ActorID:        &actor.ID,
			ChangeType:     domain.ChangeTypeRole,
			OldValue:       map[string]any{"role": oldRole},
			NewValue:       map[string]any{"role": newRole},
		})
	}
	// A role change reshapes visibility for the whole organization.
	if s.cache != nil {
		s.cache.Invalidate(ctx, target.OrganizationID)
	}
	return target, nil
}

// UpdateProfile edits a user's name. Self-edits are always allowed;
// editing someone else requires them to be inside the actor's subtree,
// and anyone outside it reads as not found.
func (s *UserService) UpdateProfile(ctx context.Context, actor *domain.Actor, targetID, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}

	target, err := s.visibleUser(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}

	subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !policy.CanManageUser(actor.ID, actor.Role, subtree, targetID) {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": targetID})
	}

	target.Name = name
	if err := s.users.Update(ctx, target); err != nil {
		return nil, apperrors.MapError(err)
	}
	return target, nil
}

// ListVisibleUsers returns the directory slice the actor may see: their
// own subtree.
func (s *UserService) ListVisibleUsers(ctx context.Context, actor *domain.Actor) ([]domain.User, error) {
	subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	all, err := s.users.ListByOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	visible := make([]domain.User, 0, len(all))
	for _, user := range all {
		if subtree.Contains(user.ID) {
			visible = append(visible, user)
		}
	}
	return visible, nil
}

func (s *UserService) visibleUser(ctx context.Context, actor *domain.Actor, targetID string) (*domain.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": targetID})
		}
		return nil, apperrors.MapError(err)
	}
	if target.OrganizationID != actor.OrganizationID {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": targetID})
	}
	return target, nil
}

func (s *UserService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
