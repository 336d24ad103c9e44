package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"
)

type ExpenseFilter struct {
	CategorySlug string
	Approved     *bool
}

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id string) (*model.Expense, error)
	// Save replaces the stored expense, approvals included.
	Save(ctx context.Context, expense *model.Expense) (*model.Expense, error)
	List(ctx context.Context, filter ExpenseFilter) ([]model.Expense, error)
	CountByApproval(ctx context.Context) (total, approved int, err error)
}

type pgExpenseRepository struct {
	db *sql.DB
}

func NewPgExpenseRepository(db *sql.DB) ExpenseRepository {
	return &pgExpenseRepository{db: db}
}

const expenseColumns = `id, amount, spent_on, description, category, category_slug, created_by, is_fully_approved, created_at, updated_at`

func (r *pgExpenseRepository) Create(ctx context.Context, e *model.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.StoreError("pgExpenseRepository.Create begin", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO expenses (id, amount, spent_on, description, category, category_slug, created_by, is_fully_approved)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		e.ID, e.Amount, e.Date, e.Description, e.Category, e.CategorySlug, e.CreatedBy, e.IsFullyApproved,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return common.StoreError("pgExpenseRepository.Create", err)
	}
	if err := writeApprovals(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.StoreError("pgExpenseRepository.Create commit", err)
	}
	return nil
}

func (r *pgExpenseRepository) FindByID(ctx context.Context, id string) (*model.Expense, error) {
	if !isRowID(id) {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgExpenseRepository.FindByID", err)
	}

	byExpense, err := r.approvalsFor(ctx, []string{expense.ID})
	if err != nil {
		return nil, err
	}
	expense.Approvals = approvalsOrEmpty(byExpense[expense.ID])
	return expense, nil
}

func (r *pgExpenseRepository) Save(ctx context.Context, e *model.Expense) (*model.Expense, error) {
	if !isRowID(e.ID) {
		return nil, common.ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.StoreError("pgExpenseRepository.Save begin", err)
	}
	defer tx.Rollback()

	query := `UPDATE expenses SET
                amount = $1, spent_on = $2, description = $3, category = $4, category_slug = $5,
                is_fully_approved = $6, updated_at = CURRENT_TIMESTAMP
              WHERE id = $7
              RETURNING updated_at`
	err = tx.QueryRowContext(ctx, query,
		e.Amount, e.Date, e.Description, e.Category, e.CategorySlug, e.IsFullyApproved, e.ID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgExpenseRepository.Save", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_approvals WHERE expense_id = $1`, e.ID); err != nil {
		return nil, common.StoreError("pgExpenseRepository.Save clear approvals", err)
	}
	if err := writeApprovals(ctx, tx, e); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, common.StoreError("pgExpenseRepository.Save commit", err)
	}
	return e, nil
}

func (r *pgExpenseRepository) List(ctx context.Context, filter ExpenseFilter) ([]model.Expense, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		conditions = append(conditions, fmt.Sprintf("category_slug = $%d", len(args)))
	}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		conditions = append(conditions, fmt.Sprintf("is_fully_approved = $%d", len(args)))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY spent_on DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StoreError("pgExpenseRepository.List", err)
	}
	defer rows.Close()

	expenses := []model.Expense{}
	var ids []string
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, common.StoreError("pgExpenseRepository.List scan", err)
		}
		expenses = append(expenses, *expense)
		ids = append(ids, expense.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("pgExpenseRepository.List rows", err)
	}
	if len(ids) == 0 {
		return expenses, nil
	}

	byExpense, err := r.approvalsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Approvals = approvalsOrEmpty(byExpense[expenses[i].ID])
	}
	return expenses, nil
}

func (r *pgExpenseRepository) CountByApproval(ctx context.Context) (int, int, error) {
	var total, approved int
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_fully_approved) FROM expenses`
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &approved); err != nil {
		return 0, 0, common.StoreError("pgExpenseRepository.CountByApproval", err)
	}
	return total, approved, nil
}

func (r *pgExpenseRepository) approvalsFor(ctx context.Context, expenseIDs []string) (map[string][]model.Approval, error) {
	query := `SELECT expense_id, approver_id, approved, voted_at
	          FROM expense_approvals
	          WHERE expense_id = ANY($1::uuid[])
	          ORDER BY expense_id, position`
	rows, err := r.db.QueryContext(ctx, query, expenseIDs)
	if err != nil {
		return nil, common.StoreError("pgExpenseRepository.approvalsFor", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Approval, len(expenseIDs))
	for rows.Next() {
		var expenseID string
		var a model.Approval
		if err := rows.Scan(&expenseID, &a.ApproverID, &a.Approved, &a.Date); err != nil {
			return nil, common.StoreError("pgExpenseRepository.approvalsFor scan", err)
		}
		out[expenseID] = append(out[expenseID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("pgExpenseRepository.approvalsFor rows", err)
	}
	return out, nil
}

func writeApprovals(ctx context.Context, q dbtx, e *model.Expense) error {
	query := `INSERT INTO expense_approvals (expense_id, approver_id, position, approved, voted_at)
	          VALUES ($1, $2, $3, $4, $5)`
	for i, a := range e.Approvals {
		if _, err := q.ExecContext(ctx, query, e.ID, a.ApproverID, i, a.Approved, a.Date); err != nil {
			return common.StoreError("pgExpenseRepository.writeApprovals", err)
		}
	}
	return nil
}

func scanExpense(row rowScanner) (*model.Expense, error) {
	e := &model.Expense{Approvals: []model.Approval{}}
	err := row.Scan(
		&e.ID, &e.Amount, &e.Date, &e.Description, &e.Category, &e.CategorySlug,
		&e.CreatedBy, &e.IsFullyApproved, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func approvalsOrEmpty(approvals []model.Approval) []model.Approval {
	if approvals == nil {
		return []model.Approval{}
	}
	return approvals
}
