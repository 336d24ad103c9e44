package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserRepository looks users up by normalized email; callers never need to
// lower-case or trim before calling.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	UpdateImage(ctx context.Context, id, imageURL string) (*model.User, error)
	UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, name, email, hashed_password, role, image, provider, provider_id, created_at, updated_at`

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, hashed_password, role, image, provider, provider_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, model.NormalizeEmail(user.Email), nullString(user.HashedPassword),
		user.Role, nullString(user.Image), user.Provider, nullString(user.ProviderID),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with email %s: %w", user.Email, common.ErrAccountConflict)
		}
		return common.StoreError("pgUserRepository.Create", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, model.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgUserRepository.FindByEmail", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isRowID(id) {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgUserRepository.FindByID", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateImage(ctx context.Context, id, imageURL string) (*model.User, error) {
	if !isRowID(id) {
		return nil, common.ErrNotFound
	}
	query := `UPDATE users SET image = $1, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $2 RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, nullString(imageURL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgUserRepository.UpdateImage", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	if !isRowID(id) {
		return nil, common.ErrNotFound
	}
	query := `UPDATE users SET role = $1, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $2 RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, role, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("pgUserRepository.UpdateRole", err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, common.StoreError("pgUserRepository.List", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, common.StoreError("pgUserRepository.List scan", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("pgUserRepository.List rows", err)
	}
	return users, nil
}

func (r *pgUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, common.StoreError("pgUserRepository.Count", err)
	}
	return n, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var hashed, image, providerID sql.NullString
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &hashed, &user.Role, &image,
		&user.Provider, &providerID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = hashed.String
	user.Image = image.String
	user.ProviderID = providerID.String
	return user, nil
}
