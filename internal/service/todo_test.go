package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-api/internal/model"
)

func newTodoTestService() (*TodoService, *fakeTodoStore) {
	store := newFakeTodoStore()
	return NewTodoService(store), store
}

func TestTodoCreate(t *testing.T) {
	svc, _ := newTodoTestService()
	owner := uuid.New()

	info, err := svc.Create(context.Background(), owner, "  buy milk  ", nil, "")
	require.NoError(t, err)
	assert.Equal(t, owner, info.OwnerID)
	assert.Equal(t, "buy milk", info.Description)
	assert.Equal(t, model.PriorityMedium, info.Priority)
	assert.Nil(t, info.DueDate)
}

func TestTodoCreate_Validation(t *testing.T) {
	svc, _ := newTodoTestService()
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, "   ", nil, "")
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = svc.Create(ctx, owner, strings.Repeat("x", 501), nil, "")
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = svc.Create(ctx, owner, "ok", nil, model.Priority("urgent"))
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestTodoGet_OwnerOnly(t *testing.T) {
	svc, _ := newTodoTestService()
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()

	info, err := svc.Create(ctx, owner, "private", nil, model.PriorityHigh)
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, model.RoleGuest, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)

	_, err = svc.Get(ctx, stranger, model.RoleGuest, info.ID)
	assert.True(t, IsKind(err, KindForbidden))

	// Admins may read anybody's items.
	_, err = svc.Get(ctx, stranger, model.RoleAdmin, info.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, owner, model.RoleGuest, uuid.New())
	assert.True(t, IsKind(err, KindNotFound))
}

func TestTodoList(t *testing.T) {
	svc, _ := newTodoTestService()
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	_, err := svc.Create(ctx, alice, "a1", nil, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, "a2", nil, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, "b1", nil, "")
	require.NoError(t, err)

	mine, err := svc.List(ctx, alice, model.RoleGuest, false)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// all=true is ignored below admin.
	mine, err = svc.List(ctx, alice, model.RoleGuest, true)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	everything, err := svc.List(ctx, alice, model.RoleAdmin, true)
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestTodoUpdate(t *testing.T) {
	svc, _ := newTodoTestService()
	ctx := context.Background()
	owner := uuid.New()
	due := nowUTC().Add(24 * time.Hour)

	info, err := svc.Create(ctx, owner, "draft", &due, "")
	require.NoError(t, err)

	desc := "final"
	prio := model.PriorityLow
	updated, err := svc.Update(ctx, owner, model.RoleGuest, info.ID, TodoPatch{Description: &desc, Priority: &prio})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Description)
	assert.Equal(t, model.PriorityLow, updated.Priority)
	require.NotNil(t, updated.DueDate)

	updated, err = svc.Update(ctx, owner, model.RoleGuest, info.ID, TodoPatch{ClearDue: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)

	stranger := uuid.New()
	_, err = svc.Update(ctx, stranger, model.RoleGuest, info.ID, TodoPatch{Description: &desc})
	assert.True(t, IsKind(err, KindForbidden))
}

func TestTodoDelete(t *testing.T) {
	svc, _ := newTodoTestService()
	ctx := context.Background()
	owner := uuid.New()

	info, err := svc.Create(ctx, owner, "ephemeral", nil, "")
	require.NoError(t, err)

	_, err = svc.Get(ctx, owner, model.RoleGuest, info.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, model.RoleGuest, info.ID))

	_, err = svc.Get(ctx, owner, model.RoleGuest, info.ID)
	assert.True(t, IsKind(err, KindNotFound))
}
