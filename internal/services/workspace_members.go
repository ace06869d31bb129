package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/internal/permissions"
	"github.com/MarcosLauremiro/miKan-api/pkg/crypto"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

// AddMemberInput names the person to add and the role they should hold.
type AddMemberInput struct {
	Email string
	Role  string
}

// AddMemberResult reports whether an existing account was added directly or
// an invitation was sent.
type AddMemberResult struct {
	Invited    bool                    `json:"invited"`
	Member     *models.WorkspaceMember `json:"member,omitempty"`
	Invitation *InvitationView         `json:"invitation,omitempty"`
}

// AddMember adds an existing account to the workspace or, when no account
// exists for the email, records an invitation.
func (s *WorkspaceService) AddMember(ctx context.Context, requesterID, workspaceID string, input AddMemberInput) (*AddMemberResult, error) {
	ctx = ensureContext(ctx)

	role := models.RoleMember
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := models.ParseWorkspaceRole(input.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		role = parsed
	}
	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	workspace, err := s.loadWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	requester, err := s.member(ctx, s.db, workspace.ID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := permissions.CheckAddMember(requester, role); err != nil {
		return nil, err
	}

	user, err := findUser(ctx, s.db, "email = ?", email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return s.invite(ctx, workspace, requester, email, role)
	case err != nil:
		return nil, err
	}

	existing, err := s.member(ctx, s.db, workspace.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if existing.IsMember() {
		return nil, ErrAlreadyMember
	}

	membership := &models.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      user.ID,
		Role:        role,
		InviteByID:  requesterID,
	}
	if err := s.db.WithContext(ctx).Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("workspace service: add member: %w", err)
	}
	membership.User = user

	publishEvent(s.bus, ctx, events.WorkspaceMemberAdded, events.MemberInvited{
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		Email:         user.Email,
		Role:          role.String(),
		InvitedByID:   requesterID,
		Type:          events.DeliveryAdded,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.member.add",
		Module:      "workspace",
		Entity:      "workspace_member",
		EntityID:    membership.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     requesterID,
		ActorRole:   requester.Role,
		After:       map[string]any{"user_id": user.ID, "email": user.Email, "role": role},
	})

	return &AddMemberResult{Member: membership}, nil
}

func (s *WorkspaceService) invite(ctx context.Context, workspace *models.Workspace, requester permissions.Member, email string, role models.WorkspaceRole) (*AddMemberResult, error) {
	now := s.now().UTC()

	token, err := crypto.GenerateToken(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("workspace service: generate invitation token: %w", err)
	}

	invitation := &models.Invitation{
		BaseModel:   models.BaseModel{CreatedAt: now},
		Email:       email,
		OpenEmail:   stringPtr(email),
		WorkspaceID: workspace.ID,
		Token:       token,
		Role:        role,
		InviteByID:  requester.UserID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.Invitation
		if err := tx.Where("workspace_id = ? AND email = ? AND accepted_at IS NULL", workspace.ID, email).
			Find(&pending).Error; err != nil {
			return fmt.Errorf("check pending invitations: %w", err)
		}
		var stale []string
		for _, inv := range pending {
			if !inv.Expired(now) {
				return ErrInvitationPending
			}
			stale = append(stale, inv.ID)
		}
		if len(stale) > 0 {
			if err := tx.Where("id IN ?", stale).Delete(&models.Invitation{}).Error; err != nil {
				return fmt.Errorf("drop expired invitations: %w", err)
			}
		}
		if err := tx.Create(invitation).Error; err != nil {
			// A concurrent invite for the same email won the open slot.
			if isUniqueConstraintError(err) {
				return ErrInvitationPending
			}
			return fmt.Errorf("create invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("workspace service", err)
	}

	publishEvent(s.bus, ctx, events.WorkspaceInvite, events.MemberInvited{
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		Email:         email,
		Role:          role.String(),
		InvitedByID:   requester.UserID,
		Type:          events.DeliveryInvite,
		Token:         token,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.invite",
		Module:      "workspace",
		Entity:      "invitation",
		EntityID:    invitation.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     requester.UserID,
		ActorRole:   requester.Role,
		After:       map[string]any{"email": email, "role": role},
	})

	invitation.Workspace = workspace
	view := newInvitationView(*invitation, false)
	return &AddMemberResult{Invited: true, Invitation: &view}, nil
}

// UpdateMemberRole moves memberID to role. The last-OWNER rule is evaluated
// inside the transaction that applies the change.
func (s *WorkspaceService) UpdateMemberRole(ctx context.Context, requesterID, workspaceID, memberID, role string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	newRole, ok := models.ParseWorkspaceRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}

	workspace, err := s.loadWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	requester, err := s.member(ctx, s.db, workspace.ID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Require(permissions.ActionMemberRole, requester); err != nil {
		return nil, err
	}

	var (
		target  models.WorkspaceMember
		oldRole models.WorkspaceRole
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadMember(tx, workspace.ID, memberID, &target); err != nil {
			return err
		}
		owners, err := ownerCount(tx, workspace.ID)
		if err != nil {
			return err
		}
		current := permissions.Member{UserID: target.UserID, Role: target.Role}
		if err := permissions.CheckRoleChange(requester, current, newRole, owners); err != nil {
			return err
		}

		oldRole = target.Role
		if err := tx.Model(&target).Update("role", newRole).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		target.Role = newRole
		if oldRole == models.RoleOwner && newRole != models.RoleOwner {
			return reassignCreator(tx, workspace, target.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("workspace service", err)
	}

	email, name := memberContact(target)
	publishEvent(s.bus, ctx, events.WorkspaceMemberRoleUpdated, events.MemberRoleUpdated{
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		MemberEmail:   email,
		MemberName:    name,
		OldRole:       oldRole.String(),
		NewRole:       newRole.String(),
		UpdatedByID:   requesterID,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.member.role",
		Module:      "workspace",
		Entity:      "workspace_member",
		EntityID:    target.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     requesterID,
		ActorRole:   requester.Role,
		Before:      map[string]any{"role": oldRole},
		After:       map[string]any{"role": newRole},
		Metadata:    map[string]any{"user_id": target.UserID},
	})

	return &target, nil
}

// RemoveMember deletes memberID from the workspace.
func (s *WorkspaceService) RemoveMember(ctx context.Context, requesterID, workspaceID, memberID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.loadWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return err
	}
	requester, err := s.member(ctx, s.db, workspace.ID, requesterID)
	if err != nil {
		return err
	}
	if err := permissions.Require(permissions.ActionMemberRemove, requester); err != nil {
		return err
	}

	var target models.WorkspaceMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadMember(tx, workspace.ID, memberID, &target); err != nil {
			return err
		}
		owners, err := ownerCount(tx, workspace.ID)
		if err != nil {
			return err
		}
		current := permissions.Member{UserID: target.UserID, Role: target.Role}
		if err := permissions.CheckRemoval(requester, current, owners); err != nil {
			return err
		}
		if err := tx.Delete(&models.WorkspaceMember{}, "id = ?", target.ID).Error; err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return reassignCreator(tx, workspace, target.UserID)
	})
	if err != nil {
		return wrapTxError("workspace service", err)
	}

	email, name := memberContact(target)
	publishEvent(s.bus, ctx, events.WorkspaceMemberRemoved, events.MemberRemoved{
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		MemberEmail:   email,
		MemberName:    name,
		RemovedByID:   requesterID,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.member.remove",
		Module:      "workspace",
		Entity:      "workspace_member",
		EntityID:    target.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     requesterID,
		ActorRole:   requester.Role,
		Before:      map[string]any{"user_id": target.UserID, "email": email, "role": target.Role},
	})
	return nil
}

// Leave removes the caller's own membership.
func (s *WorkspaceService) Leave(ctx context.Context, userID, workspaceID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.loadWorkspace(ctx, s.db, workspaceID)
	if err != nil {
		return err
	}

	var membership models.WorkspaceMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("User").
			Where("workspace_id = ? AND user_id = ?", workspace.ID, userID).
			First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		owners, err := ownerCount(tx, workspace.ID)
		if err != nil {
			return err
		}
		if err := permissions.CheckLeave(permissions.Member{UserID: userID, Role: membership.Role}, owners); err != nil {
			return err
		}
		if err := tx.Delete(&models.WorkspaceMember{}, "id = ?", membership.ID).Error; err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return reassignCreator(tx, workspace, userID)
	})
	if err != nil {
		return wrapTxError("workspace service", err)
	}

	email, name := memberContact(membership)
	publishEvent(s.bus, ctx, events.WorkspaceMemberLeft, events.MemberLeft{
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		MemberEmail:   email,
		MemberName:    name,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.member.leave",
		Module:      "workspace",
		Entity:      "workspace_member",
		EntityID:    membership.ID,
		WorkspaceID: stringPtr(workspace.ID),
		ActorID:     userID,
		ActorRole:   membership.Role,
		Before:      map[string]any{"role": membership.Role},
	})
	return nil
}

func loadMember(tx *gorm.DB, workspaceID, memberID string, out *models.WorkspaceMember) error {
	err := tx.Preload("User").
		Where("id = ? AND workspace_id = ?", strings.TrimSpace(memberID), workspaceID).
		First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	return nil
}

func memberContact(m models.WorkspaceMember) (email, name string) {
	if m.User == nil {
		return "", ""
	}
	return m.User.Email, m.User.Name
}

// wrapTxError passes domain errors through untouched and wraps the rest.
func wrapTxError(prefix string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
