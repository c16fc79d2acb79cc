package users

import (
	"context"
	"testing"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/auth"
	"github.com/Hons90/CRM/internal/config"
	"github.com/Hons90/CRM/internal/rbac"
	"github.com/Hons90/CRM/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// admin acts on behalf of an operator with no row in the users table,
// so its id never matches a user created by a test.
var admin = auth.Identity{UserID: 9999, Email: "root@example.com", Role: rbac.RoleAdmin}

func newTestService(t *testing.T) (*Service, *audit.MemoryRepo) {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	repo := audit.NewMemoryRepo()
	return NewService(testutil.NewDB(t), m, auth.NewMemoryRevocationStore(), audit.NewService(repo)), repo
}

func createAgent(t *testing.T, s *Service) User {
	t.Helper()
	u, err := s.Create(context.Background(), admin, CreateUserRequest{
		Name: "Agent", Email: " Agent@Example.com ", Password: "password1",
	})
	require.NoError(t, err)
	return u
}

func TestCreate_DefaultsAndConflict(t *testing.T) {
	ctx := context.Background()
	s, auditRepo := newTestService(t)

	u := createAgent(t, s)
	assert.Equal(t, "agent@example.com", u.Email)
	assert.Equal(t, rbac.RoleEmployee, u.Role)
	assert.NotEqual(t, "password1", u.PasswordHash)
	require.Len(t, auditRepo.Events(), 1)

	_, err := s.Create(ctx, admin, CreateUserRequest{Name: "Dup", Email: "agent@example.com", Password: "password2"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.Create(ctx, admin, CreateUserRequest{Name: "x", Email: "x@example.com", Password: "password1", Role: "owner"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.Create(ctx, admin, CreateUserRequest{Name: "x", Email: "x@example.com", Password: "123"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.Create(ctx, admin, CreateUserRequest{Email: "x@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	u := createAgent(t, s)

	sess, err := s.Login(ctx, "AGENT@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.User.ID)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)

	_, err = s.Login(ctx, "agent@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = s.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = s.Login(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	createAgent(t, s)

	sess, err := s.Login(ctx, "agent@example.com", "password1")
	require.NoError(t, err)

	next, err := s.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	_, err = s.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "rotated token must not be reusable")

	require.NoError(t, s.Logout(ctx, next.RefreshToken))
	_, err = s.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = s.Refresh(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "access tokens cannot refresh")
	assert.ErrorIs(t, s.Logout(ctx, ""), apperr.ErrUnauthorized)
}

func TestRefreshConcurrentReuseHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	createAgent(t, s)
	sess, err := s.Login(ctx, "agent@example.com", "password1")
	require.NoError(t, err)

	errs := make([]error, 4)
	var g errgroup.Group
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = s.Refresh(ctx, sess.RefreshToken)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	}
	assert.Equal(t, 1, ok)
}

func TestRefreshFailsForDeletedUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	u := createAgent(t, s)
	sess, err := s.Login(ctx, "agent@example.com", "password1")
	require.NoError(t, err)

	require.NotEqual(t, admin.UserID, u.ID)
	require.NoError(t, s.Delete(ctx, admin, u.ID))
	_, err = s.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = s.Login(ctx, "agent@example.com", "password1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUpdateMe(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	u := createAgent(t, s)

	got, err := s.UpdateMe(ctx, u.ID, UpdateMeRequest{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	_, err = s.UpdateMe(ctx, u.ID, UpdateMeRequest{NewPassword: "password2"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.UpdateMe(ctx, u.ID, UpdateMeRequest{CurrentPassword: "nope-nope", NewPassword: "password2"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.UpdateMe(ctx, u.ID, UpdateMeRequest{CurrentPassword: "password1", NewPassword: "password2"})
	require.NoError(t, err)
	_, err = s.Login(ctx, "agent@example.com", "password2")
	assert.NoError(t, err)

	_, err = s.UpdateMe(ctx, 999, UpdateMeRequest{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdminUpdateListDelete(t *testing.T) {
	ctx := context.Background()
	s, auditRepo := newTestService(t)
	a := createAgent(t, s)
	b, err := s.Create(ctx, admin, CreateUserRequest{Name: "B", Email: "b@example.com", Password: "password1", Role: rbac.RoleAdmin})
	require.NoError(t, err)

	got, err := s.Update(ctx, admin, a.ID, UpdateUserRequest{Role: rbac.RoleAdmin, Name: "Lead"})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, got.Role)
	assert.Equal(t, "Lead", got.Name)
	assert.Equal(t, "agent@example.com", got.Email)

	_, err = s.Update(ctx, admin, a.ID, UpdateUserRequest{Email: "b@example.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = s.Update(ctx, admin, 999, UpdateUserRequest{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	self := auth.Identity{UserID: b.ID, Role: rbac.RoleAdmin}
	assert.ErrorIs(t, s.Delete(ctx, self, b.ID), apperr.ErrValidation)
	require.NoError(t, s.Delete(ctx, self, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, self, a.ID), apperr.ErrNotFound)

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	var msgs []string
	for _, e := range auditRepo.Events() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"user created", "user created", "user updated", "user deleted"}, msgs)
}
