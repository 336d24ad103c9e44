// Package memory holds map-backed repositories used for STORE_DRIVER=memory and tests.
// Every method copies on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"
)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
	seq     map[string]int
	next    int
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    map[string]*model.User{},
		byEmail: map[string]string{},
		seq:     map[string]int{},
	}
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := model.NormalizeEmail(user.Email)
	if _, taken := r.byEmail[email]; taken {
		return fmt.Errorf("user with email %s: %w", email, common.ErrAccountConflict)
	}
	if _, taken := r.byID[user.ID]; taken {
		return fmt.Errorf("user with id %s: %w", user.ID, common.ErrConflict)
	}

	now := time.Now().UTC()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[email] = user.ID
	r.next++
	r.seq[user.ID] = r.next
	return nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (r *UserRepository) UpdateImage(_ context.Context, id, imageURL string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	user.Image = imageURL
	user.UpdatedAt = time.Now().UTC()
	out := *user
	return &out, nil
}

func (r *UserRepository) UpdateRole(_ context.Context, id string, role model.Role) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	out := *user
	return &out, nil
}

func (r *UserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.byID))
	for _, user := range r.byID {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool {
		return r.seq[users[i].ID] > r.seq[users[j].ID]
	})
	return users, nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

type ExpenseRepository struct {
	mu   sync.RWMutex
	byID map[string]*model.Expense
	seq  map[string]int
	next int
}

var _ repository.ExpenseRepository = (*ExpenseRepository)(nil)

func NewExpenseRepository() *ExpenseRepository {
	return &ExpenseRepository{byID: map[string]*model.Expense{}, seq: map[string]int{}}
}

func (r *ExpenseRepository) Create(_ context.Context, e *model.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byID[e.ID]; taken {
		return fmt.Errorf("expense %s: %w", e.ID, common.ErrConflict)
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Approvals == nil {
		e.Approvals = []model.Approval{}
	}

	r.byID[e.ID] = e.Clone()
	r.next++
	r.seq[e.ID] = r.next
	return nil
}

func (r *ExpenseRepository) FindByID(_ context.Context, id string) (*model.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *ExpenseRepository) Save(_ context.Context, e *model.Expense) (*model.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.ID]; !ok {
		return nil, common.ErrNotFound
	}
	e.UpdatedAt = time.Now().UTC()
	r.byID[e.ID] = e.Clone()
	return e, nil
}

func (r *ExpenseRepository) List(_ context.Context, filter repository.ExpenseFilter) ([]model.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expenses := []model.Expense{}
	for _, e := range r.byID {
		if filter.CategorySlug != "" && e.CategorySlug != filter.CategorySlug {
			continue
		}
		if filter.Approved != nil && e.IsFullyApproved != *filter.Approved {
			continue
		}
		expenses = append(expenses, *e.Clone())
	}
	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].Date.Equal(expenses[j].Date) {
			return expenses[i].Date.After(expenses[j].Date)
		}
		return r.seq[expenses[i].ID] > r.seq[expenses[j].ID]
	})
	return expenses, nil
}

func (r *ExpenseRepository) CountByApproval(_ context.Context) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	approved := 0
	for _, e := range r.byID {
		if e.IsFullyApproved {
			approved++
		}
	}
	return len(r.byID), approved, nil
}

type TaskRepository struct {
	mu   sync.RWMutex
	byID map[string]*model.Task
	seq  map[string]int
	next int
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{byID: map[string]*model.Task{}, seq: map[string]int{}}
}

func cloneTask(t *model.Task) *model.Task {
	out := *t
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		out.AssignedTo = &a
	}
	return &out
}

func (r *TaskRepository) Create(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byID[t.ID]; taken {
		return fmt.Errorf("task %s: %w", t.ID, common.ErrConflict)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	r.byID[t.ID] = cloneTask(t)
	r.next++
	r.seq[t.ID] = r.next
	return nil
}

func (r *TaskRepository) FindByID(_ context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *TaskRepository) Update(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; !ok {
		return common.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	r.byID[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.seq, id)
	return nil
}

func (r *TaskRepository) List(_ context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.byID))
	for _, t := range r.byID {
		tasks = append(tasks, *cloneTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		return r.seq[tasks[i].ID] > r.seq[tasks[j].ID]
	})
	return tasks, nil
}

func (r *TaskRepository) CountByCompletion(_ context.Context) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	completed := 0
	for _, t := range r.byID {
		if t.Completed {
			completed++
		}
	}
	return len(r.byID), completed, nil
}
