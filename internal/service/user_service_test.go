package service

import (
	"context"
	"testing"
	"time"

	"freight-erp/internal/model"
	"freight-erp/internal/permission"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type userFixture struct {
	svc    UserService
	users  *fakeUserRepo
	tokens *fakeTokenRepo
	audit  *fakeAuditRepo
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users:  newFakeUserRepo(),
		tokens: newFakeTokenRepo(),
		audit:  &fakeAuditRepo{},
	}
	svc := NewUserService(f.users, f.tokens, f.audit, passThroughTx{}, TokenConfig{
		Secret:     testSecret,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, testLogger())
	svc.(*userService).now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

// seedAdmin bootstraps the first admin and returns its live profile
func (f *userFixture) seedAdmin(t *testing.T, username string) *permission.Profile {
	t.Helper()
	res, err := f.svc.BootstrapAdmin(context.Background(), CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	user, err := f.users.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	return user.Profile()
}

func TestCreateUserSeedsRoleDefaults(t *testing.T) {
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	res, err := f.svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Username: "budi", Email: "Budi@Example.com", Password: "secret123", Role: "finance",
	})
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", res.Email)
	assert.Equal(t, "default", res.CustomDashboard)
	assert.True(t, res.IsActive)
	assert.Equal(t, permission.GetDefaultPermissions("finance"), res.Permissions)
	assert.Equal(t, model.ActionCreateUser, f.audit.entries[len(f.audit.entries)-1].Action)

	_, err = f.svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Username: "budi2", Email: "budi@example.com", Password: "secret123", Role: "ops",
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Username: "x", Email: "x@example.com", Password: "secret123", Role: "superuser",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateUser(context.Background(), profileFor(permission.RoleManager), CreateUserRequest{
		Username: "y", Email: "y@example.com", Password: "secret123", Role: "viewer",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateUserAcceptsExtendedRoles(t *testing.T) {
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	res, err := f.svc.CreateUser(context.Background(), admin, CreateUserRequest{
		Username: "dir", Email: "dir@example.com", Password: "secret123", Role: "director",
	})
	require.NoError(t, err)
	assert.Equal(t, "director", res.Role)
	assert.Equal(t, permission.PermissionSet{}, res.Permissions, "extended roles start with viewer defaults")
}

func TestBootstrapAdminOnlyOnce(t *testing.T) {
	f := newUserFixture()
	req := CreateUserRequest{Username: "root", Email: "root@example.com", Password: "secret123", Role: "viewer"}

	res, err := f.svc.BootstrapAdmin(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "admin", res.Role, "bootstrap always creates an admin")
	assert.True(t, res.Permissions.CanManageUsers)

	req.Username, req.Email = "root2", "root2@example.com"
	_, err = f.svc.BootstrapAdmin(context.Background(), req)
	assert.ErrorIs(t, err, ErrConflict)

	entry := f.audit.entries[0]
	assert.Equal(t, "system", entry.UserRole)
}

func TestUpdateUserClampsOpsRevenueAndProfit(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	created, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "ops1", Email: "ops1@example.com", Password: "secret123", Role: "ops"})
	require.NoError(t, err)

	flags := permission.GetDefaultPermissions("ops")
	flags.CanSeeRevenue = true
	flags.CanSeeProfit = true
	flags.CanCreatePJO = true
	res, err := f.svc.UpdateUser(ctx, admin, created.ID.String(), UpdateUserRequest{Permissions: &flags})
	require.NoError(t, err)
	assert.False(t, res.Permissions.CanSeeRevenue)
	assert.False(t, res.Permissions.CanSeeProfit)
	assert.True(t, res.Permissions.CanCreatePJO, "other overrides are kept")
}

func TestUpdateUserRoleChangeReseedsPermissions(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	created, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "v", Email: "v@example.com", Password: "secret123", Role: "viewer"})
	require.NoError(t, err)

	role := "manager"
	dashboard := "finance"
	res, err := f.svc.UpdateUser(ctx, admin, created.ID.String(), UpdateUserRequest{Role: &role, CustomDashboard: &dashboard})
	require.NoError(t, err)
	assert.Equal(t, "manager", res.Role)
	assert.Equal(t, permission.GetDefaultPermissions("manager"), res.Permissions)
	assert.Equal(t, "finance", res.CustomDashboard)

	bad := "cockpit"
	_, err = f.svc.UpdateUser(ctx, admin, created.ID.String(), UpdateUserRequest{CustomDashboard: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	unknown := "captain"
	_, err = f.svc.UpdateUser(ctx, admin, created.ID.String(), UpdateUserRequest{Role: &unknown})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLastAdminCannotDemoteSelf(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	role := "viewer"
	_, err := f.svc.UpdateUser(ctx, admin, admin.UserID, UpdateUserRequest{Role: &role})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "last admin")

	flags := permission.GetDefaultPermissions("admin")
	flags.CanManageUsers = false
	_, err = f.svc.UpdateUser(ctx, admin, admin.UserID, UpdateUserRequest{Permissions: &flags})
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.svc.DeactivateUser(ctx, admin, admin.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := f.svc.GetProfile(ctx, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleAdmin, stored.Role)
	assert.True(t, stored.Permissions.CanManageUsers)
}

func TestAdminCanStepDownWhenAnotherAdminExists(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	_, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "second", Email: "second@example.com", Password: "secret123", Role: "admin"})
	require.NoError(t, err)

	role := "manager"
	res, err := f.svc.UpdateUser(ctx, admin, admin.UserID, UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "manager", res.Role)
}

func TestDeactivateUserRevokesSessions(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	created, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "fin", Email: "fin@example.com", Password: "secret123", Role: "finance"})
	require.NoError(t, err)

	tokens, err := f.svc.Login(ctx, LoginUserRequest{Email: "fin@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, tokens.RefreshToken)

	require.NoError(t, f.svc.DeactivateUser(ctx, admin, created.ID.String()))
	assert.Empty(t, f.tokens.tokens)

	_, err = f.svc.Login(ctx, LoginUserRequest{Email: "fin@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.GetProfile(ctx, created.ID.String())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	stored, err := f.users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "users are soft-deleted")
	assert.NotNil(t, stored.DeactivatedAt)
}

func TestLoginIssuesTokens(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	_, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "ops", Email: "ops@example.com", Password: "secret123", Role: "ops"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	tokens, err := f.svc.Login(ctx, LoginUserRequest{Email: "OPS@example.com", Password: "secret123"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(tokens.Token, func(*jwt.Token) (interface{}, error) { return testSecret, nil },
		jwt.WithTimeFunc(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "ops", claims["role"])

	rotated, err := f.svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	_, err = f.svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.ErrorIs(t, err, ErrUnauthenticated, "refresh tokens are single use")

	require.NoError(t, f.svc.Logout(ctx, rotated.RefreshToken))
	assert.Empty(t, f.tokens.tokens)
}

func TestGetMe(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	created, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "ops", Email: "ops@example.com", Password: "secret123", Role: "ops"})
	require.NoError(t, err)

	me, err := f.svc.GetMe(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "ops", me.DashboardType)
	assert.True(t, me.Features[permission.FeaturePJOFillCosts])
	assert.False(t, me.Features[permission.FeaturePJOViewRevenue])
	assert.False(t, me.Features[permission.FeatureInvoicesView])
	assert.Len(t, me.Features, len(permission.FeatureKeys()))
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	f := newUserFixture()
	admin := f.seedAdmin(t, "root")

	_, err := f.svc.CreateUser(ctx, admin, CreateUserRequest{Username: "a", Email: "a@example.com", Password: "secret123", Role: "ops"})
	require.NoError(t, err)

	all, total, err := f.svc.ListUsers(ctx, admin, UserFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	ops, _, err := f.svc.ListUsers(ctx, admin, UserFilter{Role: "ops"})
	require.NoError(t, err)
	assert.Len(t, ops, 1)

	_, _, err = f.svc.ListUsers(ctx, profileFor(permission.RoleFinance), UserFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}
