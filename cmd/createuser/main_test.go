package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository/memory"
	"foundation_portal/internal/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryStore(users *memory.UserRepository) openStore {
	return func(context.Context) (*accountStore, error) {
		return &accountStore{Users: users, BcryptCost: 4, Close: func() {}}, nil
	}
}

func TestRun_Success(t *testing.T) {
	users := memory.NewUserRepository()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-email", "Treasurer@Example.org", "-name", "Treasurer", "-password", "secret1"}
	err := run(context.Background(), args, new(bytes.Buffer), stdout, stderr, memoryStore(users))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "User treasurer@example.org created successfully")

	created, err := users.FindByEmail(context.Background(), "treasurer@example.org")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, created.Role)
	assert.NotEmpty(t, created.HashedPassword)
}

func TestRun_ExplicitRole(t *testing.T) {
	users := memory.NewUserRepository()
	args := []string{"-email", "mod@example.org", "-name", "Mod", "-role", "Moderator", "-password", "secret1"}

	err := run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), memoryStore(users))
	require.NoError(t, err)

	created, err := users.FindByEmail(context.Background(), "mod@example.org")
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, created.Role)
}

func TestRun_DuplicateUser(t *testing.T) {
	users := memory.NewUserRepository()
	args := []string{"-email", "admin@example.org", "-name", "Admin", "-password", "secret1"}

	require.NoError(t, run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), memoryStore(users)))

	err := run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), memoryStore(users))
	require.Error(t, err, "expected error on duplicate user")
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_MissingFlags(t *testing.T) {
	stdout := new(bytes.Buffer)
	opened := false
	open := func(context.Context) (*accountStore, error) {
		opened = true
		return nil, errors.New("unexpected")
	}

	err := run(context.Background(), []string{"-password", "secret1"}, new(bytes.Buffer), stdout, new(bytes.Buffer), open)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags")
	assert.Contains(t, stdout.String(), "Usage:")
	assert.False(t, opened, "store must not be opened before flags are valid")
}

func TestRun_UnknownRole(t *testing.T) {
	args := []string{"-email", "a@example.org", "-name", "A", "-role", "owner", "-password", "secret1"}
	err := run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), memoryStore(memory.NewUserRepository()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestRun_InteractivePassword(t *testing.T) {
	users := memory.NewUserRepository()
	stdout := new(bytes.Buffer)
	stdin := bytes.NewBufferString("typed-secret\n")

	args := []string{"-email", "editor@example.org", "-name", "Editor", "-role", "editor"}
	err := run(context.Background(), args, stdin, stdout, new(bytes.Buffer), memoryStore(users))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Password: ")
	assert.Contains(t, stdout.String(), "created successfully")
}

func TestRun_ShortPassword(t *testing.T) {
	args := []string{"-email", "a@example.org", "-name", "A", "-password", "abc"}
	err := run(context.Background(), args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer), memoryStore(memory.NewUserRepository()))
	require.Error(t, err)
}

func TestRun_RefusesMemoryDriver(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreDriverMemory, BcryptCost: 4}
	open := func(ctx context.Context) (*accountStore, error) { return openAccountStore(ctx, cfg) }
	stdout := new(bytes.Buffer)

	args := []string{"-email", "ghost@example.org", "-name", "Ghost", "-password", "secret1"}
	err := run(context.Background(), args, new(bytes.Buffer), stdout, new(bytes.Buffer), open)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER=memory")
	assert.NotContains(t, stdout.String(), "created successfully")
}
