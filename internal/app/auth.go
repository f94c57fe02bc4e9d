package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"factory-erp/internal/core"

	"golang.org/x/crypto/bcrypt"
)

// MasterUserID identifies sessions opened with the configured master credential.
const MasterUserID = "MASTER"

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = errors.New("invalid email or password")

func (s *appService) AuthenticateUser(ctx context.Context, email, password string) (*UserSession, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if s.master.Email != "" && strings.EqualFold(email, s.master.Email) {
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.master.Password)) != 1 {
			return nil, ErrInvalidCredentials
		}
		return s.masterSession(), nil
	}

	u, ok := s.coord.Snapshot().UserByEmail(email)
	if !ok || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return sessionFor(u), nil
}

func (s *appService) GetUser(ctx context.Context, userID string) (*UserSession, error) {
	if userID == MasterUserID && s.master.Email != "" {
		return s.masterSession(), nil
	}
	u, ok := s.coord.Snapshot().User(userID)
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, core.ErrNotFound)
	}
	return sessionFor(u), nil
}

func (s *appService) masterSession() *UserSession {
	return &UserSession{
		UserID:      MasterUserID,
		Name:        s.master.Name,
		Email:       s.master.Email,
		IsAdmin:     true,
		Permissions: core.AllPermissions,
	}
}

func sessionFor(u core.User) *UserSession {
	return &UserSession{
		UserID:      u.ID,
		Name:        u.Name,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		Permissions: u.Permissions(),
	}
}

func (s *appService) ListUsers(ctx context.Context) ([]core.User, error) {
	return s.coord.Snapshot().Users, nil
}

// SaveUser hashes Password with bcrypt before storing. New users need a password.
func (s *appService) SaveUser(ctx context.Context, req SaveUserRequest) (*core.User, error) {
	u := req.User
	u.PasswordHash = ""
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if u.ID == "" {
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("password is required: %w", core.ErrValidation)
		}
		return s.coord.AddUser(ctx, u, req.Admin)
	}
	return s.coord.UpdateUser(ctx, u, req.Admin)
}

func (s *appService) DeleteUser(ctx context.Context, id, admin string) error {
	return s.coord.DeleteUser(ctx, id, admin)
}
