package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/database/testutil"
	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/pkg/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type notifierFixture struct {
	db     *gorm.DB
	bus    *events.MemoryBus
	mailer *recordingMailer
	n      *EmailNotifier
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{}
	n, err := NewEmailNotifier(db, mailer, Config{AppName: "miKan", AppURL: "https://app.example.com/"})
	require.NoError(t, err)

	bus := events.NewMemoryBus(events.WithHandlerTimeout(5 * time.Second))
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	n.Register(bus)
	return &notifierFixture{db: db, bus: bus, mailer: mailer, n: n}
}

func (fx *notifierFixture) publish(t *testing.T, name string, payload any) {
	t.Helper()
	require.NoError(t, fx.bus.Publish(context.Background(), name, payload))
	fx.bus.Wait()
}

func (fx *notifierFixture) user(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Provider: models.ProviderLocal}
	require.NoError(t, fx.db.Create(u).Error)
	return u
}

func (fx *notifierFixture) workspace(t *testing.T, owner *models.User, members ...*models.User) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{Name: "Acme", Color: "#000", OwnerID: owner.ID}
	require.NoError(t, fx.db.Create(ws).Error)
	rows := []models.WorkspaceMember{{WorkspaceID: ws.ID, UserID: owner.ID, Role: models.RoleOwner, InviteByID: owner.ID}}
	for _, m := range members {
		rows = append(rows, models.WorkspaceMember{WorkspaceID: ws.ID, UserID: m.ID, Role: models.RoleMember, InviteByID: owner.ID})
	}
	require.NoError(t, fx.db.Create(&rows).Error)
	return ws
}

func TestRendererParsesEveryTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	for _, name := range templateNames {
		out, err := r.Render(name, map[string]any{"AppName": "miKan"})
		require.NoError(t, err, name)
		require.Contains(t, out, "<!DOCTYPE html>")
	}
	_, err = r.Render("missing", nil)
	require.Error(t, err)
}

func TestRendererEscapesUserInput(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	out, err := r.Render(TemplateWelcome, map[string]any{"Name": "<script>alert(1)</script>"})
	require.NoError(t, err)
	require.NotContains(t, out, "<script>alert(1)</script>")
}

func TestInviteEmailCarriesAcceptLink(t *testing.T) {
	fx := newNotifierFixture(t)

	fx.publish(t, events.WorkspaceInvite, events.MemberInvited{
		WorkspaceID:   "ws-1",
		WorkspaceName: "Acme",
		Email:         "new@example.com",
		Role:          "ADMIN",
		Type:          events.DeliveryInvite,
		Token:         "tok-123",
	})

	sent := fx.mailer.messages()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"new@example.com"}, sent[0].To)
	require.Contains(t, sent[0].Subject, "Acme")
	require.Contains(t, sent[0].HTMLBody, "https://app.example.com/workspace/accept-invite?token=tok-123")
	require.Contains(t, sent[0].HTMLBody, "valid for 7 days")
}

func TestWelcomeAndMembershipEmails(t *testing.T) {
	fx := newNotifierFixture(t)

	fx.publish(t, events.AuthRegistered, events.UserRegistered{Name: "Ana", Email: "ana@example.com", Provider: "GITHUB"})
	fx.publish(t, events.WorkspaceMemberAdded, events.MemberInvited{WorkspaceID: "ws", WorkspaceName: "Acme", Email: "eva@example.com", Role: "MEMBER"})
	fx.publish(t, events.WorkspaceMemberRoleUpdated, events.MemberRoleUpdated{WorkspaceName: "Acme", MemberEmail: "eva@example.com", OldRole: "MEMBER", NewRole: "ADMIN"})
	fx.publish(t, events.WorkspaceMemberRemoved, events.MemberRemoved{WorkspaceName: "Acme", MemberEmail: "eva@example.com"})
	fx.publish(t, events.WorkspaceMemberLeft, events.MemberLeft{WorkspaceName: "Acme", MemberEmail: "leo@example.com"})

	sent := fx.mailer.messages()
	require.Len(t, sent, 5)
	require.Contains(t, sent[0].HTMLBody, "GitHub")
	require.Contains(t, sent[1].Subject, "added")
	require.Contains(t, sent[2].HTMLBody, "ADMIN")
	require.Contains(t, sent[3].Subject, "removed")
	require.Equal(t, []string{"leo@example.com"}, sent[4].To)
}

func TestInvitationAnswersGoToInviter(t *testing.T) {
	fx := newNotifierFixture(t)
	inviter := fx.user(t, "Olga", "olga@example.com")

	fx.publish(t, events.WorkspaceInvitationAccepted, events.InvitationAnswered{
		WorkspaceName: "Acme", MemberEmail: "new@example.com", MemberName: "Nina", InvitedByID: inviter.ID,
	})
	fx.publish(t, events.WorkspaceInvitationDeclined, events.InvitationAnswered{
		WorkspaceName: "Acme", MemberEmail: "no@example.com", InvitedByID: inviter.ID,
	})
	fx.publish(t, events.WorkspaceInvitationAccepted, events.InvitationAnswered{
		WorkspaceName: "Acme", MemberEmail: "x@example.com", InvitedByID: "gone",
	})

	sent := fx.mailer.messages()
	require.Len(t, sent, 2)
	require.Equal(t, []string{"olga@example.com"}, sent[0].To)
	require.Equal(t, "Nina accepted your invitation", sent[0].Subject)
	require.Equal(t, "no@example.com declined your invitation", sent[1].Subject)
}

func TestProjectCreatedNotifiesOtherMembersOfPublicProjects(t *testing.T) {
	fx := newNotifierFixture(t)
	creator := fx.user(t, "Olga", "olga@example.com")
	mia := fx.user(t, "Mia", "mia@example.com")
	leo := fx.user(t, "Leo", "leo@example.com")
	ws := fx.workspace(t, creator, mia, leo)

	fx.publish(t, events.ProjectCreated, events.ProjectCreatedPayload{
		ProjectID: "p-1", ProjectName: "Roadmap", UserID: creator.ID, UserName: "Olga",
		WorkspaceID: ws.ID, WorkspaceName: "Acme",
	})

	sent := fx.mailer.messages()
	require.Len(t, sent, 2)
	var to []string
	for _, msg := range sent {
		to = append(to, msg.To[0])
		require.Contains(t, msg.HTMLBody, "https://app.example.com/projects/p-1")
	}
	sort.Strings(to)
	require.Equal(t, []string{"leo@example.com", "mia@example.com"}, to)

	fx.publish(t, events.ProjectCreated, events.ProjectCreatedPayload{
		ProjectID: "p-2", ProjectName: "Secret", UserID: creator.ID, WorkspaceID: ws.ID, Private: true,
	})
	fx.publish(t, events.ProjectCreated, events.ProjectCreatedPayload{ProjectID: "p-3", UserID: creator.ID})
	require.Len(t, fx.mailer.messages(), 2)
}

func TestDeliverTreatsDisabledSMTPAsSkipped(t *testing.T) {
	fx := newNotifierFixture(t)
	ctx := context.Background()

	fx.mailer.err = mail.ErrSMTPDisabled
	require.NoError(t, fx.n.deliver(ctx, TemplateMemberLeft, "a@example.com", "bye", map[string]any{}))

	fx.mailer.err = errors.New("smtp down")
	require.Error(t, fx.n.deliver(ctx, TemplateMemberLeft, "a@example.com", "bye", map[string]any{}))

	require.NoError(t, fx.n.deliver(ctx, TemplateMemberLeft, "", "bye", map[string]any{}))
}

func TestNewEmailNotifierValidation(t *testing.T) {
	_, err := NewEmailNotifier(nil, &recordingMailer{}, Config{})
	require.Error(t, err)
}
