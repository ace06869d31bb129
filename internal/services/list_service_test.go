package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
	"github.com/MarcosLauremiro/miKan-api/internal/models"
	apperrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
)

type listFixture struct {
	*projectFixture
	lists   *ListService
	admin   *models.User
	project *models.Project
}

func newListFixture(t *testing.T) *listFixture {
	t.Helper()
	pf := newProjectFixture(t)
	fx := &listFixture{projectFixture: pf}

	audit, err := NewAuditService(pf.db)
	require.NoError(t, err)
	fx.lists, err = NewListService(pf.db, pf.bus, audit)
	require.NoError(t, err)

	fx.admin = createUser(t, pf.db, "Adam", "adam@example.com")
	require.NoError(t, pf.db.Create(&models.WorkspaceMember{
		WorkspaceID: pf.ws.ID, UserID: fx.admin.ID, Role: models.RoleAdmin, InviteByID: pf.owner.ID,
	}).Error)

	fx.project = pf.create(t, pf.owner.ID, false)
	pf.bus.reset()
	return fx
}

func (fx *listFixture) addTask(t *testing.T, listID string) {
	t.Helper()
	task := &models.Task{
		Name:     "Task",
		ListID:   &listID,
		StatusID: fx.project.Statuses[0].ID,
		OwnerID:  fx.owner.ID,
		Priority: models.PriorityMedium,
	}
	require.NoError(t, fx.db.Create(task).Error)
}

func TestListCreateAppendsAtEnd(t *testing.T) {
	fx := newListFixture(t)
	ctx := context.Background()

	list, err := fx.lists.Create(ctx, fx.member.ID, fx.project.ID, " Doing ")
	require.NoError(t, err)
	require.Equal(t, "Doing", list.Name)
	require.Equal(t, 1, list.Position)
	require.Equal(t, []string{events.ListCreated}, fx.bus.names())

	_, err = fx.lists.Create(ctx, fx.member.ID, fx.project.ID, "")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	_, err = fx.lists.Create(ctx, fx.outside.ID, fx.project.ID, "Nope")
	require.ErrorIs(t, err, ErrProjectNotFound)

	lists, err := fx.lists.ListByProject(ctx, fx.member.ID, fx.project.ID)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	require.Equal(t, defaultInitialListName, lists[0].Name)
	require.Equal(t, "Doing", lists[1].Name)
}

func TestListManagePermissions(t *testing.T) {
	fx := newListFixture(t)
	ctx := context.Background()
	listID := fx.project.Lists[0].ID

	_, err := fx.lists.Update(ctx, fx.member.ID, listID, "Member edit")
	require.ErrorIs(t, err, ErrListForbidden)

	updated, err := fx.lists.Update(ctx, fx.admin.ID, listID, "Admin edit")
	require.NoError(t, err)
	require.Equal(t, "Admin edit", updated.Name)

	_, err = fx.lists.Update(ctx, fx.outside.ID, listID, "Outside")
	require.ErrorIs(t, err, ErrListNotFound)

	got, err := fx.lists.Get(ctx, fx.member.ID, listID)
	require.NoError(t, err)
	require.Equal(t, "Admin edit", got.Name)

	_, err = fx.lists.Get(ctx, fx.member.ID, "missing")
	require.ErrorIs(t, err, ErrListNotFound)
}

func TestListDeleteRequiresEmptyList(t *testing.T) {
	fx := newListFixture(t)
	ctx := context.Background()
	listID := fx.project.Lists[0].ID
	fx.addTask(t, listID)

	require.ErrorIs(t, fx.lists.Delete(ctx, fx.owner.ID, listID), ErrListHasTasks)

	_, err := fx.lists.ForceDelete(ctx, fx.admin.ID, listID)
	require.ErrorIs(t, err, ErrProjectOwnerOnly)

	removed, err := fx.lists.ForceDelete(ctx, fx.owner.ID, listID)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
	require.Equal(t, []string{events.ListDeleted}, fx.bus.names())

	var tasks int64
	require.NoError(t, fx.db.Model(&models.Task{}).Count(&tasks).Error)
	require.Zero(t, tasks)

	empty, err := fx.lists.Create(ctx, fx.owner.ID, fx.project.ID, "Empty")
	require.NoError(t, err)
	require.NoError(t, fx.lists.Delete(ctx, fx.admin.ID, empty.ID))
	require.ErrorIs(t, fx.lists.Delete(ctx, fx.admin.ID, empty.ID), ErrListNotFound)
}

func TestListDuplicate(t *testing.T) {
	fx := newListFixture(t)

	dup, err := fx.lists.Duplicate(context.Background(), fx.member.ID, fx.project.Lists[0].ID)
	require.NoError(t, err)
	require.Equal(t, defaultInitialListName+" (Cópia)", dup.Name)
	require.Equal(t, 1, dup.Position)
	require.NotEqual(t, fx.project.Lists[0].ID, dup.ID)
}

func TestListReorder(t *testing.T) {
	fx := newListFixture(t)
	ctx := context.Background()
	first := fx.project.Lists[0].ID
	second, err := fx.lists.Create(ctx, fx.owner.ID, fx.project.ID, "Second")
	require.NoError(t, err)
	third, err := fx.lists.Create(ctx, fx.owner.ID, fx.project.ID, "Third")
	require.NoError(t, err)

	ordered, err := fx.lists.Reorder(ctx, fx.owner.ID, fx.project.ID, []string{third.ID, first, second.ID})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	require.Equal(t, third.ID, ordered[0].ID)
	require.Equal(t, first, ordered[1].ID)
	require.Equal(t, second.ID, ordered[2].ID)

	_, err = fx.lists.Reorder(ctx, fx.member.ID, fx.project.ID, []string{first})
	require.ErrorIs(t, err, ErrListForbidden)

	_, err = fx.lists.Reorder(ctx, fx.owner.ID, fx.project.ID, []string{first, "foreign"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = fx.lists.Reorder(ctx, fx.owner.ID, fx.project.ID, nil)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestListPrivateProjectOnlyOwnerManages(t *testing.T) {
	fx := newListFixture(t)
	ctx := context.Background()
	private := fx.create(t, fx.owner.ID, true)

	_, err := fx.lists.Create(ctx, fx.admin.ID, private.ID, "Hidden")
	require.ErrorIs(t, err, ErrProjectNotFound)

	_, err = fx.lists.Update(ctx, fx.admin.ID, private.Lists[0].ID, "Hidden")
	require.ErrorIs(t, err, ErrListNotFound)

	_, err = fx.lists.Update(ctx, fx.owner.ID, private.Lists[0].ID, "Mine")
	require.NoError(t, err)
}
