package repository

import (
	"context"
	"database/sql"
	"errors"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"
)

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Task, error)
	CountByCompletion(ctx context.Context) (total, completed int, err error)
}

type pgTaskRepository struct {
	db *sql.DB
}

func NewPgTaskRepository(db *sql.DB) TaskRepository {
	return &pgTaskRepository{db: db}
}

const taskColumns = `id, title, description, completed, priority, due_date, created_by, assigned_to, created_at, updated_at`

func (r *pgTaskRepository) Create(ctx context.Context, t *model.Task) error {
	query := `INSERT INTO tasks (id, title, description, completed, priority, due_date, created_by, assigned_to)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.Title, t.Description, t.Completed, t.Priority, nullTimePtr(t.DueDate), t.CreatedBy, nullStringPtr(t.AssignedTo),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return common.StoreError("pgTaskRepository.Create", err)
	}
	return nil
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	if !isRowID(id) {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgTaskRepository.FindByID", err)
	}
	return task, nil
}

func (r *pgTaskRepository) Update(ctx context.Context, t *model.Task) error {
	if !isRowID(t.ID) {
		return common.ErrNotFound
	}
	query := `UPDATE tasks SET
                title = $1, description = $2, completed = $3, priority = $4, due_date = $5,
                assigned_to = $6, updated_at = CURRENT_TIMESTAMP
              WHERE id = $7
              RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		t.Title, t.Description, t.Completed, t.Priority, nullTimePtr(t.DueDate), nullStringPtr(t.AssignedTo), t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return common.StoreError("pgTaskRepository.Update", err)
	}
	return nil
}

func (r *pgTaskRepository) Delete(ctx context.Context, id string) error {
	if !isRowID(id) {
		return common.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return common.StoreError("pgTaskRepository.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.StoreError("pgTaskRepository.Delete rows", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTaskRepository) List(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, common.StoreError("pgTaskRepository.List", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, common.StoreError("pgTaskRepository.List scan", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("pgTaskRepository.List rows", err)
	}
	return tasks, nil
}

func (r *pgTaskRepository) CountByCompletion(ctx context.Context) (int, int, error) {
	var total, completed int
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE completed) FROM tasks`
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &completed); err != nil {
		return 0, 0, common.StoreError("pgTaskRepository.CountByCompletion", err)
	}
	return total, completed, nil
}

func scanTask(row rowScanner) (*model.Task, error) {
	t := &model.Task{}
	var due sql.NullTime
	var assigned sql.NullString
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Completed, &t.Priority, &due,
		&t.CreatedBy, &assigned, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if assigned.Valid {
		a := assigned.String
		t.AssignedTo = &a
	}
	return t, nil
}
