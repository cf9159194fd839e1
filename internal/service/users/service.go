package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vharuk/ticketd/internal/domain"
	"github.com/vharuk/ticketd/internal/repository"
	"github.com/vharuk/ticketd/internal/service/inventory"
	"github.com/vharuk/ticketd/internal/uow"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = time.Hour

// Service manages the user directory: registration, login, password
// lifecycle and role administration. Password hashes and reset tokens never
// leave this package; every returned user is sanitized.
type Service struct {
	dir        repository.UserDirectory
	uow        *uow.UoW
	bcryptCost int
	now        func() time.Time
}

func New(dir repository.UserDirectory, u *uow.UoW, bcryptCost int) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		dir:        dir,
		uow:        u,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Register creates an account. Usernames and emails are unique
// case-insensitively; any role other than admin becomes user.
func (s *Service) Register(ctx context.Context, fullName, username, email, password string, role domain.Role) (*domain.User, error) {
	const op = "service.users.Register"

	if fullName == "" || username == "" || email == "" || password == "" {
		return nil, &inventory.ValidationError{Field: "user", Reason: "all fields are required"}
	}

	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out *domain.User

	err = s.uow.Do(ctx, []string{uow.ScopeUsers}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		if _, err := s.dir.FindByUsername(ctx, username); err == nil {
			return ErrUsernameTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if _, err := s.dir.FindByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		all, err := s.dir.List(ctx)
		if err != nil {
			return err
		}

		var maxID int64
		for _, u := range all {
			if u.ID > maxID {
				maxID = u.ID
			}
		}

		user := domain.User{
			ID:           maxID + 1,
			FullName:     fullName,
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			Role:         role,
		}

		if err := s.dir.Save(ctx, &user); err != nil {
			return err
		}

		out = sanitize(user)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Login verifies credentials and returns the sanitized account. Unknown
// username and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, error) {
	const op = "service.users.Login"

	if username == "" || password == "" {
		return nil, &inventory.ValidationError{Field: "credentials", Reason: "username and password required"}
	}

	user, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitize(*user), nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	const op = "service.users.ChangePassword"

	if username == "" || currentPassword == "" || newPassword == "" {
		return &inventory.ValidationError{Field: "password", Reason: "username, currentPassword and newPassword required"}
	}

	err := s.uow.Do(ctx, []string{uow.ScopeUsers}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		user, err := s.dir.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
			return ErrInvalidCredentials
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
		if err != nil {
			return err
		}

		user.PasswordHash = string(hash)

		return s.dir.Save(ctx, user)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Forgot issues a password reset token for the account matching the given
// email (or username, which some clients submit in the same field). The
// token expires after one hour.
func (s *Service) Forgot(ctx context.Context, email string) (string, error) {
	const op = "service.users.Forgot"

	email = strings.TrimSpace(email)
	if email == "" {
		return "", &inventory.ValidationError{Field: "email", Reason: "required"}
	}

	var token string

	err := s.uow.Do(ctx, []string{uow.ScopeUsers}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		user, err := s.dir.FindByEmail(ctx, email)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			user, err = s.dir.FindByUsername(ctx, email)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrUserNotFound
				}
				return err
			}
		}

		buf := make([]byte, 20)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		token = hex.EncodeToString(buf)

		user.ResetToken = token
		user.ResetExpires = s.now().Add(resetTokenTTL).UnixMilli()

		return s.dir.Save(ctx, user)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// ResetPassword consumes a reset token issued by Forgot.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	const op = "service.users.ResetPassword"

	if email == "" || token == "" || newPassword == "" {
		return &inventory.ValidationError{Field: "reset", Reason: "email, token and newPassword required"}
	}

	err := s.uow.Do(ctx, []string{uow.ScopeUsers}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		user, err := s.dir.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.ResetToken == "" || user.ResetToken != token || s.now().UnixMilli() > user.ResetExpires {
			return ErrInvalidResetToken
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
		if err != nil {
			return err
		}

		user.PasswordHash = string(hash)
		user.ResetToken = ""
		user.ResetExpires = 0

		return s.dir.Save(ctx, user)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MakeAdmin promotes an account to the admin role.
func (s *Service) MakeAdmin(ctx context.Context, username string) error {
	const op = "service.users.MakeAdmin"

	if username == "" {
		return &inventory.ValidationError{Field: "username", Reason: "required"}
	}

	err := s.uow.Do(ctx, []string{uow.ScopeUsers}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		user, err := s.dir.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		user.Role = domain.RoleAdmin

		return s.dir.Save(ctx, user)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete removes a non-admin account.
func (s *Service) Delete(ctx context.Context, username string) error {
	const op = "service.users.Delete"

	if username == "" {
		return &inventory.ValidationError{Field: "username", Reason: "required"}
	}

	err := s.uow.Do(ctx, []string{uow.ScopeUsers}, func(ctx context.Context, after func(uow.AfterCommit)) error {
		user, err := s.dir.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.Role == domain.RoleAdmin {
			return ErrAdminProtected
		}

		return s.dir.Delete(ctx, user.ID)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// List returns all accounts with secrets stripped.
func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	const op = "service.users.List"

	all, err := s.dir.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]domain.User, 0, len(all))
	for _, u := range all {
		out = append(out, *sanitize(u))
	}

	return out, nil
}

func sanitize(u domain.User) *domain.User {
	u.PasswordHash = ""
	u.ResetToken = ""
	u.ResetExpires = 0
	return &u
}
