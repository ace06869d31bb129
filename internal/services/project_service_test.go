package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	"github.com/MarcosLauremiro/miKan-api/internal/permissions"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

type projectFixture struct {
	db      *gorm.DB
	svc     *ProjectService
	bus     *recordingBus
	owner   *models.User
	member  *models.User
	outside *models.User
	ws      *models.Workspace
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()
	db := openServiceTestDB(t)
	fx := &projectFixture{db: db, bus: &recordingBus{}}

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	fx.svc, err = NewProjectService(db, fx.bus, audit)
	require.NoError(t, err)

	fx.owner = createUser(t, db, "Olga", "olga@example.com")
	fx.member = createUser(t, db, "Mia", "mia@example.com")
	fx.outside = createUser(t, db, "Out", "out@example.com")

	fx.ws = &models.Workspace{Name: "Acme", Color: "#000", OwnerID: fx.owner.ID}
	require.NoError(t, db.Create(fx.ws).Error)
	require.NoError(t, db.Create(&[]models.WorkspaceMember{
		{WorkspaceID: fx.ws.ID, UserID: fx.owner.ID, Role: models.RoleOwner, InviteByID: fx.owner.ID},
		{WorkspaceID: fx.ws.ID, UserID: fx.member.ID, Role: models.RoleMember, InviteByID: fx.owner.ID},
	}).Error)
	return fx
}

func (fx *projectFixture) create(t *testing.T, userID string, private bool) *models.Project {
	t.Helper()
	project, err := fx.svc.Create(context.Background(), userID, CreateProjectInput{
		WorkspaceID: &fx.ws.ID,
		Name:        "Roadmap",
		Private:     boolPtr(private),
	})
	require.NoError(t, err)
	return project
}

func TestProjectCreateSeedsDefaults(t *testing.T) {
	fx := newProjectFixture(t)
	project := fx.create(t, fx.owner.ID, false)

	require.Len(t, project.Lists, 1)
	require.Equal(t, defaultInitialListName, project.Lists[0].Name)
	require.Len(t, project.Statuses, len(DefaultStatuses))
	for i, st := range project.Statuses {
		require.Equal(t, DefaultStatuses[i].Name, st.Name)
		require.Equal(t, DefaultStatuses[i].Color, st.Color)
		require.Equal(t, i, st.Position)
	}

	payload, ok := fx.bus.last(events.ProjectCreated)
	require.True(t, ok)
	created := payload.(events.ProjectCreatedPayload)
	require.Equal(t, "Olga", created.UserName)
	require.Equal(t, "Acme", created.WorkspaceName)
	require.False(t, created.Private)
}

func TestProjectCreateWithCustomTaxonomy(t *testing.T) {
	fx := newProjectFixture(t)

	project, err := fx.svc.Create(context.Background(), fx.owner.ID, CreateProjectInput{
		Name:            "Solo",
		Private:         boolPtr(true),
		InitialListName: "Backlog",
		Statuses:        []StatusInput{{Name: "Open", Color: "#111"}, {Name: "Done", Color: "#222"}},
	})
	require.NoError(t, err)
	require.Nil(t, project.WorkspaceID)
	require.Equal(t, "Backlog", project.Lists[0].Name)
	require.Len(t, project.Statuses, 2)
}

func TestProjectCreateValidation(t *testing.T) {
	fx := newProjectFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, fx.owner.ID, CreateProjectInput{Name: "", Private: boolPtr(false)})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = fx.svc.Create(ctx, fx.owner.ID, CreateProjectInput{Name: "No flag"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	missing := "missing"
	_, err = fx.svc.Create(ctx, fx.owner.ID, CreateProjectInput{Name: "X", Private: boolPtr(false), WorkspaceID: &missing})
	require.ErrorIs(t, err, ErrWorkspaceNotFound)

	_, err = fx.svc.Create(ctx, fx.outside.ID, CreateProjectInput{Name: "X", Private: boolPtr(false), WorkspaceID: &fx.ws.ID})
	require.ErrorIs(t, err, permissions.ErrNotMember)

	_, err = fx.svc.Create(ctx, fx.owner.ID, CreateProjectInput{
		Name: "X", Private: boolPtr(false), Statuses: []StatusInput{{Name: " "}},
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	var count int64
	require.NoError(t, fx.db.Model(&models.Project{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestProjectVisibility(t *testing.T) {
	fx := newProjectFixture(t)
	ctx := context.Background()
	public := fx.create(t, fx.owner.ID, false)
	private := fx.create(t, fx.owner.ID, true)

	got, err := fx.svc.List(ctx, fx.member.ID, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, public.ID, got[0].ID)

	got, err = fx.svc.List(ctx, fx.owner.ID, fx.ws.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = fx.svc.List(ctx, fx.outside.ID, "")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = fx.svc.Get(ctx, fx.member.ID, private.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)
	_, err = fx.svc.Get(ctx, fx.outside.ID, public.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)

	loaded, err := fx.svc.Get(ctx, fx.member.ID, public.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Statuses, 4)
}

func TestProjectUpdateAndDeleteAreOwnerOnly(t *testing.T) {
	fx := newProjectFixture(t)
	ctx := context.Background()
	project := fx.create(t, fx.owner.ID, false)

	name := "Renamed"
	_, err := fx.svc.Update(ctx, fx.member.ID, project.ID, UpdateProjectInput{Name: &name})
	require.ErrorIs(t, err, ErrProjectOwnerOnly)

	updated, err := fx.svc.Update(ctx, fx.owner.ID, project.ID, UpdateProjectInput{Name: &name, Private: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.True(t, updated.Private)

	_, err = fx.svc.Get(ctx, fx.member.ID, project.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)

	require.ErrorIs(t, fx.svc.Delete(ctx, fx.member.ID, project.ID), ErrProjectNotFound)
	require.NoError(t, fx.svc.Delete(ctx, fx.owner.ID, project.ID))

	for _, model := range []any{&models.Project{}, &models.List{}, &models.StatusProject{}} {
		var count int64
		require.NoError(t, fx.db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
}

func TestProjectStatuses(t *testing.T) {
	fx := newProjectFixture(t)
	ctx := context.Background()
	project := fx.create(t, fx.owner.ID, false)

	status, err := fx.svc.AddStatus(ctx, fx.owner.ID, project.ID, StatusInput{Name: "Blocked", Color: "#000000"})
	require.NoError(t, err)
	require.Equal(t, 4, status.Position)

	_, err = fx.svc.AddStatus(ctx, fx.member.ID, project.ID, StatusInput{Name: "X", Color: "#000"})
	require.ErrorIs(t, err, ErrProjectOwnerOnly)
	_, err = fx.svc.AddStatus(ctx, fx.owner.ID, project.ID, StatusInput{Name: "X"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	color := "#ffffff"
	updated, err := fx.svc.UpdateStatus(ctx, fx.owner.ID, status.ID, UpdateStatusInput{Color: &color})
	require.NoError(t, err)
	require.Equal(t, "#ffffff", updated.Color)
	require.Equal(t, "Blocked", updated.Name)

	_, err = fx.svc.UpdateStatus(ctx, fx.outside.ID, status.ID, UpdateStatusInput{Color: &color})
	require.ErrorIs(t, err, ErrStatusNotFound)

	task := &models.Task{Name: "T", ListID: &project.Lists[0].ID, StatusID: status.ID, OwnerID: fx.owner.ID, Priority: models.PriorityLow}
	require.NoError(t, fx.db.Create(task).Error)
	require.ErrorIs(t, fx.svc.DeleteStatus(ctx, fx.owner.ID, status.ID), ErrStatusInUse)

	require.NoError(t, fx.db.Delete(task).Error)
	require.NoError(t, fx.svc.DeleteStatus(ctx, fx.owner.ID, status.ID))
	require.ErrorIs(t, fx.svc.DeleteStatus(ctx, fx.owner.ID, status.ID), ErrStatusNotFound)
}
