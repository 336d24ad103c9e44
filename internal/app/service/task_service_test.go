package service

import (
	"context"
	"testing"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	seedUser(ctx, users, model.User{ID: "helper", Name: "Helper", Email: "helper@x.test"}, "")
	svc := NewTaskService(memory.NewTaskRepository(), users)

	task, err := svc.Create(ctx, "admin-1", CreateTaskRequest{Title: "  Book the hall ", Priority: "HIGH"})
	require.NoError(t, err)
	assert.Equal(t, "Book the hall", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, "admin-1", task.CreatedBy)

	assignee := "helper"
	title := "Book the big hall"
	updated, err := svc.Update(ctx, task.ID, UpdateTaskRequest{Title: &title, AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "helper", *updated.AssignedTo)
	assert.Equal(t, model.PriorityHigh, updated.Priority)

	done, err := svc.SetCompleted(ctx, task.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	require.NoError(t, svc.Delete(ctx, task.ID))
	_, err = svc.Get(ctx, task.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTaskServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(memory.NewTaskRepository(), memory.NewUserRepository())

	_, err := svc.Create(ctx, "admin-1", CreateTaskRequest{Title: ""})
	assert.ErrorIs(t, err, common.ErrValidation)

	ghost := "ghost"
	_, err = svc.Create(ctx, "admin-1", CreateTaskRequest{Title: "t", AssignedTo: &ghost})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Update(ctx, "missing", UpdateTaskRequest{})
	assert.ErrorIs(t, err, common.ErrNotFound)

	task, err := svc.Create(ctx, "admin-1", CreateTaskRequest{Title: "t"})
	require.NoError(t, err)
	bad := "urgent"
	_, err = svc.Update(ctx, task.ID, UpdateTaskRequest{Priority: &bad})
	assert.ErrorIs(t, err, common.ErrValidation)
}
