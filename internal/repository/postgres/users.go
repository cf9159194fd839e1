package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vharuk/ticketd/internal/domain"
	"github.com/vharuk/ticketd/internal/repository"
)

type UserRepo struct {
	pool  *pgxpool.Pool
	store *Store
	db    DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const userColumns = `id, fullname, username, email, password, role, reset_token, reset_expires`

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	const op = "postgres.UserRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.FullName, &u.Username, &u.Email,
			&u.PasswordHash, &u.Role, &u.ResetToken, &u.ResetExpires,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return users, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const op = "postgres.UserRepo.FindByUsername"

	return r.findOne(ctx, op,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.UserRepo.FindByEmail"

	return r.findOne(ctx, op,
		`SELECT `+userColumns+` FROM users WHERE lower(trim(email)) = lower(trim($1))`, email)
}

func (r *UserRepo) findOne(ctx context.Context, op, sql string, arg any) (*domain.User, error) {
	var u domain.User

	if err := r.handle().QueryRow(ctx, sql, arg).Scan(
		&u.ID, &u.FullName, &u.Username, &u.Email,
		&u.PasswordHash, &u.Role, &u.ResetToken, &u.ResetExpires,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}

func (r *UserRepo) Save(ctx context.Context, user *domain.User) error {
	const op = "postgres.UserRepo.Save"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO users(id, fullname, username, email, password, role, reset_token, reset_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   fullname = EXCLUDED.fullname,
		   username = EXCLUDED.username,
		   email = EXCLUDED.email,
		   password = EXCLUDED.password,
		   role = EXCLUDED.role,
		   reset_token = EXCLUDED.reset_token,
		   reset_expires = EXCLUDED.reset_expires`,
		user.ID, user.FullName, user.Username, user.Email,
		user.PasswordHash, user.Role, user.ResetToken, user.ResetExpires,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.UserRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
