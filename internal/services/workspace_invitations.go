package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

// InvitationView is the outward shape of an invitation with its computed expiry.
type InvitationView struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	WorkspaceID   string               `json:"workspace_id"`
	WorkspaceName string               `json:"workspace_name,omitempty"`
	Role          models.WorkspaceRole `json:"role"`
	InviteByID    string               `json:"invite_by_id"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
	Token         string               `json:"token,omitempty"`
}

func newInvitationView(inv models.Invitation, withToken bool) InvitationView {
	view := InvitationView{
		ID:          inv.ID,
		Email:       inv.Email,
		WorkspaceID: inv.WorkspaceID,
		Role:        inv.Role,
		InviteByID:  inv.InviteByID,
		CreatedAt:   inv.CreatedAt,
		ExpiresAt:   inv.ExpiresAt(),
	}
	if inv.Workspace != nil {
		view.WorkspaceName = inv.Workspace.Name
	}
	if withToken {
		view.Token = inv.Token
	}
	return view
}

// AcceptInvitation turns a pending invitation into a MEMBER membership for
// the caller. The invitation is claimed with a conditional update so two
// concurrent accepts cannot both succeed.
func (s *WorkspaceService) AcceptInvitation(ctx context.Context, userID, token string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	invitation, user, err := s.openInvitation(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if invitation.Expired(s.now()) {
		return nil, ErrInvitationExpired
	}
	if models.NormalizeEmail(invitation.Email) != models.NormalizeEmail(user.Email) {
		return nil, ErrInvitationEmailMismatch
	}
	existing, err := s.member(ctx, s.db, invitation.WorkspaceID, user.ID)
	if err != nil {
		return nil, err
	}
	if existing.IsMember() {
		return nil, ErrAlreadyMember
	}

	membership := &models.WorkspaceMember{
		WorkspaceID: invitation.WorkspaceID,
		UserID:      user.ID,
		Role:        models.RoleMember,
		InviteByID:  invitation.InviteByID,
	}
	acceptedAt := s.now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.Invitation{}).
			Where("id = ? AND accepted_at IS NULL", invitation.ID).
			Updates(map[string]any{
				"accepted_at":         acceptedAt,
				"accepted_by_user_id": user.ID,
				"open_email":          nil,
			})
		if claim.Error != nil {
			return fmt.Errorf("claim invitation: %w", claim.Error)
		}
		if claim.RowsAffected != 1 {
			return ErrInvitationNotFound
		}
		if err := tx.Create(membership).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("create membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("workspace service", err)
	}

	membership.User = user
	membership.Workspace = invitation.Workspace

	publishEvent(s.bus, ctx, events.WorkspaceInvitationAccepted, events.InvitationAnswered{
		WorkspaceID:   invitation.WorkspaceID,
		WorkspaceName: workspaceName(invitation),
		MemberEmail:   user.Email,
		MemberName:    user.Name,
		InvitedByID:   invitation.InviteByID,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.invitation.accept",
		Module:      "workspace",
		Entity:      "invitation",
		EntityID:    invitation.ID,
		WorkspaceID: stringPtr(invitation.WorkspaceID),
		ActorID:     user.ID,
		ActorEmail:  user.Email,
		ActorRole:   models.RoleMember,
		After:       map[string]any{"membership_id": membership.ID, "role": models.RoleMember},
	})

	return membership, nil
}

// DeclineInvitation deletes a pending invitation addressed to the caller.
func (s *WorkspaceService) DeclineInvitation(ctx context.Context, userID, token string) error {
	ctx = ensureContext(ctx)

	invitation, user, err := s.openInvitation(ctx, userID, token)
	if err != nil {
		return err
	}
	if models.NormalizeEmail(invitation.Email) != models.NormalizeEmail(user.Email) {
		return ErrInvitationEmailMismatch
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND accepted_at IS NULL", invitation.ID).
		Delete(&models.Invitation{})
	if result.Error != nil {
		return fmt.Errorf("workspace service: decline invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvitationNotFound
	}

	publishEvent(s.bus, ctx, events.WorkspaceInvitationDeclined, events.InvitationAnswered{
		WorkspaceID:   invitation.WorkspaceID,
		WorkspaceName: workspaceName(invitation),
		MemberEmail:   user.Email,
		MemberName:    user.Name,
		InvitedByID:   invitation.InviteByID,
	})
	recordAudit(s.audit, ctx, AuditEntry{
		Action:      "workspace.invitation.decline",
		Module:      "workspace",
		Entity:      "invitation",
		EntityID:    invitation.ID,
		WorkspaceID: stringPtr(invitation.WorkspaceID),
		ActorID:     user.ID,
		ActorEmail:  user.Email,
		Before:      map[string]any{"email": invitation.Email, "role": invitation.Role},
	})
	return nil
}

// PendingInvitations lists open invitations sent by the caller, newest first.
func (s *WorkspaceService) PendingInvitations(ctx context.Context, userID string) ([]InvitationView, error) {
	return s.openInvitations(ensureContext(ctx), false, "invite_by_id = ?", userID)
}

// ReceivedInvitations lists open invitations addressed to the caller's email.
func (s *WorkspaceService) ReceivedInvitations(ctx context.Context, userID string) ([]InvitationView, error) {
	ctx = ensureContext(ctx)
	user, err := findUser(ctx, s.db, "id = ?", userID)
	if err != nil {
		return nil, err
	}
	return s.openInvitations(ctx, true, "email = ?", models.NormalizeEmail(user.Email))
}

func (s *WorkspaceService) openInvitations(ctx context.Context, withToken bool, query string, args ...any) ([]InvitationView, error) {
	var invitations []models.Invitation
	if err := s.db.WithContext(ctx).
		Preload("Workspace").
		Where("accepted_at IS NULL").
		Where(query, args...).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list invitations: %w", err)
	}

	now := s.now()
	out := make([]InvitationView, 0, len(invitations))
	for _, inv := range invitations {
		if inv.Expired(now) {
			continue
		}
		out = append(out, newInvitationView(inv, withToken))
	}
	return out, nil
}

// openInvitation loads an unaccepted invitation by token together with the caller.
func (s *WorkspaceService) openInvitation(ctx context.Context, userID, token string) (*models.Invitation, *models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, apperrors.NewBadRequest("invitation token is required")
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Workspace").
		Where("token = ? AND accepted_at IS NULL", token).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("workspace service: load invitation: %w", err)
	}

	user, err := findUser(ctx, s.db, "id = ?", userID)
	if err != nil {
		return nil, nil, err
	}
	return &invitation, user, nil
}

func workspaceName(inv *models.Invitation) string {
	if inv.Workspace == nil {
		return ""
	}
	return inv.Workspace.Name
}
