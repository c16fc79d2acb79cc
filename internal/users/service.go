// Package users owns accounts, login sessions and admin user management.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/auth"
	"github.com/Hons90/CRM/internal/rbac"
	"github.com/Hons90/CRM/pkg/logger"
)

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
var errInvalidRefresh = fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthorized)

type Service struct {
	store   *Store
	tokens  *auth.Manager
	revoked auth.RevocationStore
	audit   *audit.Service
	clock   func() time.Time
}

// NewService wires the account service. auditSvc may be nil.
func NewService(db *sql.DB, tokens *auth.Manager, revoked auth.RevocationStore, auditSvc *audit.Service) *Service {
	return &Service{
		store:   NewStore(db),
		tokens:  tokens,
		revoked: revoked,
		audit:   auditSvc,
		clock:   time.Now,
	}
}

/* ===================== SESSIONS ===================== */

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.Validation("email and password are required")
	}

	u, err := s.store.activeByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, errInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		logger.From(ctx).Info("login rejected", "user_id", u.ID)
		return Session{}, errInvalidCredentials
	}

	return s.issue(u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
// The role is re-read from the user row so demotions apply on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}

	u, err := s.store.activeByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, errInvalidRefresh
	}
	if err != nil {
		return Session{}, err
	}

	first, err := s.revoked.Revoke(ctx, claims.ID, auth.RemainingTTL(claims, s.clock()))
	if err != nil {
		return Session{}, apperr.Storage("revoke refresh token", err)
	}
	if !first {
		logger.From(ctx).Info("refresh token reused", "user_id", u.ID)
		return Session{}, errInvalidRefresh
	}
	return s.issue(u)
}

// Logout revokes the refresh token. Access tokens expire on their own.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if _, err := s.revoked.Revoke(ctx, claims.ID, auth.RemainingTTL(claims, s.clock())); err != nil {
		return apperr.Storage("revoke refresh token", err)
	}
	return nil
}

func (s *Service) verifyRefresh(ctx context.Context, token string) (auth.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return auth.Claims{}, fmt.Errorf("%w: refresh token required", apperr.ErrUnauthorized)
	}
	claims, err := s.tokens.Verify(token, auth.TokenTypeRefresh, s.clock())
	if err != nil {
		return auth.Claims{}, errInvalidRefresh
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return auth.Claims{}, apperr.Storage("check refresh token", err)
	}
	if revoked {
		return auth.Claims{}, errInvalidRefresh
	}
	return claims, nil
}

func (s *Service) issue(u User) (Session, error) {
	pair, err := s.tokens.IssuePair(s.clock(), auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: u}, nil
}

/* ===================== SELF SERVICE ===================== */

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.store.activeByID(ctx, id)
}

func (s *Service) UpdateMe(ctx context.Context, userID int64, req UpdateMeRequest) (User, error) {
	u, err := s.store.activeByID(ctx, userID)
	if err != nil {
		return User{}, err
	}

	cols := map[string]any{}
	if name := strings.TrimSpace(req.Name); name != "" {
		cols["name"] = name
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return User{}, apperr.Validation("current password required")
		}
		if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
			return User{}, apperr.Validation("current password is incorrect")
		}
		hash, err := hashPassword(req.NewPassword)
		if err != nil {
			return User{}, err
		}
		cols["password_hash"] = hash
	}

	if err := s.store.update(ctx, userID, cols); err != nil {
		return User{}, err
	}
	return s.store.activeByID(ctx, userID)
}

/* ===================== ADMIN ===================== */

// List returns active users, newest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.list(ctx)
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, req CreateUserRequest) (User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return User{}, apperr.Validation("name, email, and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, apperr.Validation("invalid email %q", email)
	}
	role := req.Role
	if role == "" {
		role = rbac.RoleEmployee
	}
	if !rbac.IsValidRole(role) {
		return User{}, apperr.Validation("role must be admin or employee")
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return User{}, err
	}

	u, err := s.store.insert(ctx, User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.clock().UTC(),
	})
	if err != nil {
		return User{}, err
	}
	s.logAdmin(ctx, actor, u.ID, "user created")
	return u, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Identity, id int64, req UpdateUserRequest) (User, error) {
	cols := map[string]any{}
	if name := strings.TrimSpace(req.Name); name != "" {
		cols["name"] = name
	}
	if email := normalizeEmail(req.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return User{}, apperr.Validation("invalid email %q", email)
		}
		cols["email"] = email
	}
	if req.Role != "" {
		if !rbac.IsValidRole(req.Role) {
			return User{}, apperr.Validation("role must be admin or employee")
		}
		cols["role"] = req.Role
	}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			return User{}, err
		}
		cols["password_hash"] = hash
	}

	if len(cols) == 0 {
		return s.store.activeByID(ctx, id)
	}
	if err := s.store.update(ctx, id, cols); err != nil {
		return User{}, err
	}
	s.logAdmin(ctx, actor, id, "user updated")
	return s.store.activeByID(ctx, id)
}

// Delete soft-deletes a user. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	if id == actor.UserID {
		return apperr.Validation("cannot delete your own account")
	}
	if err := s.store.softDelete(ctx, id); err != nil {
		return err
	}
	s.logAdmin(ctx, actor, id, "user deleted")
	return nil
}

func (s *Service) logAdmin(ctx context.Context, actor auth.Identity, targetID int64, message string) {
	if s.audit == nil {
		return
	}
	s.audit.LogAdminAction(ctx, actor.UserID, actor.Role, audit.TargetUser, targetID, message, "")
}

func hashPassword(plain string) (string, error) {
	hash, err := auth.HashPassword(plain)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return "", apperr.Validation("%v", err)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
