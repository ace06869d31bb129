package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

var (
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = apperrors.New("user.not_found", "User not found", http.StatusNotFound)
	// ErrEmailTaken is returned on registration with an address already in use.
	ErrEmailTaken = apperrors.New("auth.email_taken", "Email already in use", http.StatusBadRequest)
	// ErrOAuthOnlyAccount is returned when a password login targets an account created through a social provider.
	ErrOAuthOnlyAccount = apperrors.New("auth.oauth_account",
		"This account was created with a social login. Sign in with Google or GitHub", http.StatusUnauthorized)

	// ErrWorkspaceNotFound indicates the workspace does not exist or is invisible to the caller.
	ErrWorkspaceNotFound = apperrors.New("workspace.not_found", "Workspace not found", http.StatusNotFound)
	// ErrWorkspaceOwnerOnly is returned when someone other than the creator deletes a workspace.
	ErrWorkspaceOwnerOnly = apperrors.New("workspace.owner_only", "Only the workspace owner can delete it", http.StatusForbidden)
	// ErrMemberNotFound indicates no membership matches the request.
	ErrMemberNotFound = apperrors.New("workspace.member_not_found", "Member not found in this workspace", http.StatusNotFound)
	// ErrAlreadyMember is returned when adding or accepting for an existing member.
	ErrAlreadyMember = apperrors.New("workspace.already_member", "User is already a member of this workspace", http.StatusConflict)
	// ErrInvalidRole is returned for role names outside OWNER/ADMIN/MEMBER.
	ErrInvalidRole = apperrors.New("workspace.invalid_role", "Invalid role. Use OWNER, ADMIN or MEMBER", http.StatusBadRequest)

	// ErrInvitationPending is returned when the email already has an open invitation.
	ErrInvitationPending = apperrors.New("invitation.pending", "An invitation is already pending for this email", http.StatusConflict)
	// ErrInvitationNotFound covers unknown and already accepted tokens.
	ErrInvitationNotFound = apperrors.New("invitation.not_found", "Invitation not found or already accepted", http.StatusNotFound)
	// ErrInvitationExpired is returned for tokens older than the invitation lifetime.
	ErrInvitationExpired = apperrors.New("invitation.expired", "This invitation has expired", http.StatusGone)
	// ErrInvitationEmailMismatch is returned when the invitation belongs to another address.
	ErrInvitationEmailMismatch = apperrors.New("invitation.email_mismatch", "This invitation was sent to another email", http.StatusForbidden)

	// ErrProjectNotFound indicates the project does not exist or is invisible to the caller.
	ErrProjectNotFound = apperrors.New("project.not_found", "Project not found", http.StatusNotFound)
	// ErrProjectOwnerOnly is returned for owner-only project mutations.
	ErrProjectOwnerOnly = apperrors.New("project.owner_only", "Only the project owner can perform this action", http.StatusForbidden)
	// ErrStatusNotFound indicates the project status does not exist.
	ErrStatusNotFound = apperrors.New("project.status_not_found", "Status not found", http.StatusNotFound)
	// ErrStatusInUse blocks deleting a status that tasks still reference.
	ErrStatusInUse = apperrors.New("project.status_in_use", "Tasks still use this status", http.StatusConflict)

	// ErrListNotFound indicates the list does not exist or is invisible to the caller.
	ErrListNotFound = apperrors.New("list.not_found", "List not found", http.StatusNotFound)
	// ErrListForbidden is returned when the caller may see but not manage a list.
	ErrListForbidden = apperrors.New("list.forbidden", "You do not have permission to manage this list", http.StatusForbidden)
	// ErrListHasTasks blocks deleting a list that still owns tasks.
	ErrListHasTasks = apperrors.New("list.has_tasks", "The list still has tasks. Move or delete them first", http.StatusConflict)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
