package jsonfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/vharuk/ticketd/internal/domain"
	"github.com/vharuk/ticketd/internal/repository"
)

type UserRepo struct {
	path string
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	const op = "jsonfile.UserRepo.List"

	users, err := readArray[domain.User](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const op = "jsonfile.UserRepo.FindByUsername"

	users, err := readArray[domain.User](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			return &users[i], nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "jsonfile.UserRepo.FindByEmail"

	users, err := readArray[domain.User](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	want := strings.TrimSpace(email)
	for i := range users {
		if strings.EqualFold(strings.TrimSpace(users[i].Email), want) {
			return &users[i], nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func (r *UserRepo) Save(ctx context.Context, user *domain.User) error {
	const op = "jsonfile.UserRepo.Save"

	users, err := readArray[domain.User](r.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	replaced := false
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = *user
			replaced = true
			break
		}
	}

	if !replaced {
		users = append(users, *user)
	}

	if err := writeArray(r.path, users); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	const op = "jsonfile.UserRepo.Delete"

	users, err := readArray[domain.User](r.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	idx := -1
	for i := range users {
		if users[i].ID == id {
			idx = i
			break
		}
	}

	if idx == -1 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	users = append(users[:idx], users[idx+1:]...)

	if err := writeArray(r.path, users); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
