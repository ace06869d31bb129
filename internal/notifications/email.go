// Package notifications turns domain events into emails.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/mail"
	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

// Config carries the branding used by every email.
type Config struct {
	AppName string
	// AppURL is the frontend base URL links point to.
	AppURL string
}

// EmailNotifier subscribes to domain events and mails the affected people.
type EmailNotifier struct {
	db       *gorm.DB
	mailer   mail.Mailer
	renderer *Renderer
	cfg      Config
	log      *zap.Logger
}

// NewEmailNotifier constructs the listener set. db is used to resolve
// inviters and workspace members that events only carry by id.
func NewEmailNotifier(db *gorm.DB, mailer mail.Mailer, cfg Config) (*EmailNotifier, error) {
	if db == nil {
		return nil, errors.New("notifications: db is required")
	}
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		cfg.AppName = "miKan"
	}
	cfg.AppURL = strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	if cfg.AppURL == "" {
		cfg.AppURL = "http://localhost:3000"
	}
	return &EmailNotifier{
		db:       db,
		mailer:   mailer,
		renderer: renderer,
		cfg:      cfg,
		log:      logger.WithModule("notifications"),
	}, nil
}

// Register subscribes every listener on bus and returns a func removing them.
func (n *EmailNotifier) Register(bus events.Bus) func() {
	handlers := map[string]events.Handler{
		events.AuthRegistered:              n.onRegistered,
		events.WorkspaceInvite:             n.onInvite,
		events.WorkspaceMemberAdded:        n.onMemberAdded,
		events.WorkspaceMemberRoleUpdated:  n.onRoleUpdated,
		events.WorkspaceMemberRemoved:      n.onMemberRemoved,
		events.WorkspaceMemberLeft:         n.onMemberLeft,
		events.WorkspaceInvitationAccepted: n.onInvitationAccepted,
		events.WorkspaceInvitationDeclined: n.onInvitationDeclined,
		events.ProjectCreated:              n.onProjectCreated,
	}
	unsubscribe := make([]func(), 0, len(handlers))
	for name, h := range handlers {
		unsubscribe = append(unsubscribe, bus.Subscribe(name, h))
	}
	return func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}
}

func (n *EmailNotifier) onRegistered(ctx context.Context, evt events.Event) error {
	var p events.UserRegistered
	if err := evt.Decode(&p); err != nil {
		return err
	}
	return n.deliver(ctx, TemplateWelcome, p.Email, fmt.Sprintf("Welcome to %s!", n.cfg.AppName), map[string]any{
		"Name":     p.Name,
		"Provider": providerLabel(p.Provider),
	})
}

func (n *EmailNotifier) onInvite(ctx context.Context, evt events.Event) error {
	var p events.MemberInvited
	if err := evt.Decode(&p); err != nil {
		return err
	}
	if p.Token == "" {
		return errors.New("notifications: invitation event without token")
	}
	return n.deliver(ctx, TemplateInvite, p.Email,
		fmt.Sprintf("You were invited to the workspace %s", p.WorkspaceName),
		map[string]any{
			"WorkspaceName": p.WorkspaceName,
			"Role":          p.Role,
			"AcceptURL":     n.cfg.AppURL + "/workspace/accept-invite?token=" + url.QueryEscape(p.Token),
		})
}

func (n *EmailNotifier) onMemberAdded(ctx context.Context, evt events.Event) error {
	var p events.MemberInvited
	if err := evt.Decode(&p); err != nil {
		return err
	}
	return n.deliver(ctx, TemplateMemberAdded, p.Email,
		fmt.Sprintf("You were added to the workspace %s", p.WorkspaceName),
		map[string]any{
			"WorkspaceName": p.WorkspaceName,
			"Role":          p.Role,
			"WorkspaceURL":  n.workspaceURL(p.WorkspaceID),
		})
}

func (n *EmailNotifier) onRoleUpdated(ctx context.Context, evt events.Event) error {
	var p events.MemberRoleUpdated
	if err := evt.Decode(&p); err != nil {
		return err
	}
	return n.deliver(ctx, TemplateRoleUpdated, p.MemberEmail,
		fmt.Sprintf("Your role was updated in the workspace %s", p.WorkspaceName),
		map[string]any{
			"MemberName":    p.MemberName,
			"WorkspaceName": p.WorkspaceName,
			"OldRole":       p.OldRole,
			"NewRole":       p.NewRole,
			"WorkspaceURL":  n.workspaceURL(p.WorkspaceID),
		})
}

func (n *EmailNotifier) onMemberRemoved(ctx context.Context, evt events.Event) error {
	var p events.MemberRemoved
	if err := evt.Decode(&p); err != nil {
		return err
	}
	return n.deliver(ctx, TemplateMemberRemoved, p.MemberEmail,
		fmt.Sprintf("You were removed from the workspace %s", p.WorkspaceName),
		map[string]any{"MemberName": p.MemberName, "WorkspaceName": p.WorkspaceName})
}

func (n *EmailNotifier) onMemberLeft(ctx context.Context, evt events.Event) error {
	var p events.MemberLeft
	if err := evt.Decode(&p); err != nil {
		return err
	}
	return n.deliver(ctx, TemplateMemberLeft, p.MemberEmail,
		fmt.Sprintf("You left the workspace %s", p.WorkspaceName),
		map[string]any{"MemberName": p.MemberName, "WorkspaceName": p.WorkspaceName})
}

func (n *EmailNotifier) onInvitationAccepted(ctx context.Context, evt events.Event) error {
	return n.answered(ctx, evt, TemplateInvitationAccepted, "%s accepted your invitation")
}

func (n *EmailNotifier) onInvitationDeclined(ctx context.Context, evt events.Event) error {
	return n.answered(ctx, evt, TemplateInvitationDeclined, "%s declined your invitation")
}

// answered mails the inviter, who events only reference by id.
func (n *EmailNotifier) answered(ctx context.Context, evt events.Event, template, subject string) error {
	var p events.InvitationAnswered
	if err := evt.Decode(&p); err != nil {
		return err
	}
	var inviter models.User
	err := n.db.WithContext(ctx).First(&inviter, "id = ?", p.InvitedByID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		n.log.Info("inviter no longer exists, skipping email", zap.String("inviter_id", p.InvitedByID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("notifications: load inviter: %w", err)
	}

	name := p.MemberName
	if name == "" {
		name = p.MemberEmail
	}
	return n.deliver(ctx, template, inviter.Email, fmt.Sprintf(subject, name), map[string]any{
		"InviterName":   inviter.Name,
		"MemberName":    name,
		"MemberEmail":   p.MemberEmail,
		"WorkspaceName": p.WorkspaceName,
		"WorkspaceURL":  n.workspaceURL(p.WorkspaceID),
	})
}

// onProjectCreated notifies the other workspace members of a public project.
func (n *EmailNotifier) onProjectCreated(ctx context.Context, evt events.Event) error {
	var p events.ProjectCreatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}
	if p.Private || p.WorkspaceID == "" {
		return nil
	}

	var members []models.WorkspaceMember
	if err := n.db.WithContext(ctx).
		Preload("User").
		Where("workspace_id = ? AND user_id <> ?", p.WorkspaceID, p.UserID).
		Find(&members).Error; err != nil {
		return fmt.Errorf("notifications: load workspace members: %w", err)
	}

	subject := fmt.Sprintf("New project: %s", p.ProjectName)
	var failed int
	for _, m := range members {
		if m.User == nil {
			continue
		}
		err := n.deliver(ctx, TemplateProjectCreated, m.User.Email, subject, map[string]any{
			"RecipientName": m.User.Name,
			"CreatorName":   p.UserName,
			"ProjectName":   p.ProjectName,
			"WorkspaceName": p.WorkspaceName,
			"ProjectURL":    n.cfg.AppURL + "/projects/" + url.PathEscape(p.ProjectID),
			"WorkspaceURL":  n.workspaceURL(p.WorkspaceID),
		})
		if err != nil {
			failed++
			n.log.Warn("project notification failed", zap.String("email", m.User.Email), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("notifications: %d of %d project emails failed", failed, len(members))
	}
	return nil
}

// deliver renders and sends one email. A disabled SMTP transport is not an error.
func (n *EmailNotifier) deliver(ctx context.Context, template, to, subject string, data map[string]any) error {
	if strings.TrimSpace(to) == "" {
		metrics.EmailsSent.WithLabelValues(template, "skipped").Inc()
		return nil
	}
	data["AppName"] = n.cfg.AppName
	data["AppURL"] = n.cfg.AppURL

	body, err := n.renderer.Render(template, data)
	if err != nil {
		metrics.EmailsSent.WithLabelValues(template, "failed").Inc()
		return err
	}

	err = n.mailer.Send(ctx, mail.Message{To: []string{to}, Subject: subject, HTMLBody: body})
	switch {
	case errors.Is(err, mail.ErrSMTPDisabled):
		metrics.EmailsSent.WithLabelValues(template, "skipped").Inc()
		return nil
	case err != nil:
		metrics.EmailsSent.WithLabelValues(template, "failed").Inc()
		return fmt.Errorf("notifications: send %s to %s: %w", template, to, err)
	}
	metrics.EmailsSent.WithLabelValues(template, "sent").Inc()
	n.log.Debug("email sent", zap.String("template", template), zap.String("to", to))
	return nil
}

func (n *EmailNotifier) workspaceURL(id string) string {
	return n.cfg.AppURL + "/workspace/" + url.PathEscape(id)
}

func providerLabel(provider string) string {
	switch models.AuthProvider(strings.ToUpper(provider)) {
	case models.ProviderLocal:
		return "email and password"
	case models.ProviderGoogle:
		return "Google"
	case models.ProviderGitHub:
		return "GitHub"
	}
	return provider
}
