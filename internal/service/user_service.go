package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"freight-erp/internal/model"
	"freight-erp/internal/permission"
	"freight-erp/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

// UpdateUserRequest changes role, dashboard or permission flags. Nil fields are left alone.
// Changing the role without explicit Permissions re-seeds the flags from the new role.
type UpdateUserRequest struct {
	FullName        *string                   `json:"full_name"`
	Role            *string                   `json:"role"`
	CustomDashboard *string                   `json:"custom_dashboard"`
	Permissions     *permission.PermissionSet `json:"permissions"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

// UserResponse is a User without sensitive data (e.g. password)
type UserResponse struct {
	ID              uuid.UUID                `json:"id"`
	Username        string                   `json:"username"`
	Email           string                   `json:"email"`
	FullName        string                   `json:"full_name"`
	Role            string                   `json:"role"`
	CustomDashboard string                   `json:"custom_dashboard"`
	IsActive        bool                     `json:"is_active"`
	Permissions     permission.PermissionSet `json:"permissions"`
	LastLoginAt     *string                  `json:"last_login_at"`
	CreatedAt       string                   `json:"created_at"`
	UpdatedAt       string                   `json:"updated_at"`
}

// MeResponse is the current user plus everything the client needs to render by role
type MeResponse struct {
	UserResponse
	DashboardType string          `json:"dashboard_type"`
	Features      map[string]bool `json:"features"`
}

type UserFilter struct {
	Role     string
	IsActive *bool
	Page     int
	Limit    int
}

// TokenConfig controls how access and refresh tokens are issued
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, actor *permission.Profile, req CreateUserRequest) (*UserResponse, error)
	BootstrapAdmin(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, userID string) (*permission.Profile, error)
	GetMe(ctx context.Context, userID string) (*MeResponse, error)
	GetUserByID(ctx context.Context, actor *permission.Profile, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, actor *permission.Profile, filter UserFilter) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actor *permission.Profile, id string, req UpdateUserRequest) (*UserResponse, error)
	DeactivateUser(ctx context.Context, actor *permission.Profile, id string) error
}

type userService struct {
	repo      repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	tokens    TokenConfig
	log       zerolog.Logger
	now       func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens TokenConfig,
	log zerolog.Logger,
) UserService {
	return &userService{
		repo:      repo,
		tokenRepo: tokenRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		tokens:    tokens,
		log:       log.With().Str("component", "user_service").Logger(),
		now:       time.Now,
	}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		FullName:        user.FullName,
		Role:            user.Role,
		CustomDashboard: user.CustomDashboard,
		IsActive:        user.IsActive,
		Permissions:     user.Permissions(),
		LastLoginAt:     formatTime(user.LastLoginAt),
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       user.UpdatedAt.Format(time.RFC3339),
	}
}

// clampRoleFlags keeps stored flags consistent with rules that no override may break.
func clampRoleFlags(user *model.User) {
	if user.Role == string(permission.RoleOps) {
		user.CanSeeRevenue = false
		user.CanSeeProfit = false
	}
}

func validDashboard(dashboard string) bool {
	if dashboard == permission.DashboardDefault {
		return true
	}
	for _, r := range permission.CoreRoles() {
		if string(r) == dashboard {
			return true
		}
	}
	return false
}

// holdsAdmin is what CountActiveAdmins counts
func holdsAdmin(user *model.User) bool {
	return user.IsActive && user.Role == string(permission.RoleAdmin) && user.CanManageUsers
}

func (s *userService) CreateUser(ctx context.Context, actor *permission.Profile, req CreateUserRequest) (*UserResponse, error) {
	if err := requireFeature(actor, permission.FeatureUsersManage); err != nil {
		return nil, err
	}
	return s.createUser(ctx, actor, req)
}

// BootstrapAdmin creates the first admin. It only works while no active admin exists.
func (s *userService) BootstrapAdmin(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	req.Role = string(permission.RoleAdmin)

	var created *UserResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockAdminRoster(txCtx); err != nil {
			return fmt.Errorf("failed to lock admin roster: %w", err)
		}
		count, err := s.repo.CountActiveAdmins(txCtx)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: an admin account already exists", ErrConflict)
		}
		created, err = s.createUser(txCtx, nil, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *userService) createUser(ctx context.Context, actor *permission.Profile, req CreateUserRequest) (*UserResponse, error) {
	if !permission.IsKnownRole(req.Role) {
		return nil, validationError("unknown role '" + req.Role + "'")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return nil, validationError("invalid email format")
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already exists", ErrConflict)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username:        req.Username,
		Email:           email,
		FullName:        req.FullName,
		Password:        string(hashedPassword),
		Role:            req.Role,
		CustomDashboard: permission.DashboardDefault,
		IsActive:        true,
	}
	user.SetPermissions(permission.GetDefaultPermissions(req.Role))

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		entry := auditEntry(actor, model.ActionCreateUser, "user", user.ID.String(), user.Username, map[string]interface{}{
			"role":        user.Role,
			"permissions": user.Permissions(),
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("role", user.Role).Msg("user created")
	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrUnauthenticated)
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.repo.Update(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to record last login")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	var res *TokenResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.tokenRepo.FindByToken(txCtx, req.RefreshToken)
		if err != nil {
			return fmt.Errorf("%w: invalid refresh token", ErrUnauthenticated)
		}

		// refresh tokens are single use
		if err := s.tokenRepo.Delete(txCtx, stored.ID); err != nil {
			return fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		if stored.Expired(s.now()) {
			return fmt.Errorf("%w: refresh token expired", ErrUnauthenticated)
		}

		user, err := s.repo.GetByID(txCtx, stored.UserID)
		if err != nil || !user.IsActive {
			return fmt.Errorf("%w: account is not available", ErrUnauthenticated)
		}

		res, err = s.issueTokens(txCtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	stored, err := s.tokenRepo.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil
	}
	return s.tokenRepo.Delete(ctx, stored.ID)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.tokens.AccessTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})
	tokenString, err := token.SignedString(s.tokens.Secret)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.tokens.RefreshTTL),
	}
	if err := s.tokenRepo.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{
		Token:        tokenString,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	}, nil
}

// GetProfile loads the live authorization profile. Inactive users have none.
func (s *userService) GetProfile(ctx context.Context, userID string) (*permission.Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrUnauthenticated)
	}
	return user.Profile(), nil
}

func (s *userService) GetMe(ctx context.Context, userID string) (*MeResponse, error) {
	id, err := parseID(userID, "user id")
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}

	profile := user.Profile()
	return &MeResponse{
		UserResponse:  *mapToResponse(user),
		DashboardType: permission.GetDashboardType(profile),
		Features:      permission.FeatureAccess(profile),
	}, nil
}

func (s *userService) GetUserByID(ctx context.Context, actor *permission.Profile, id string) (*UserResponse, error) {
	if err := requireFeature(actor, permission.FeatureUsersManage); err != nil {
		return nil, err
	}
	userID, err := parseID(id, "user id")
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, actor *permission.Profile, filter UserFilter) ([]UserResponse, int64, error) {
	if err := requireFeature(actor, permission.FeatureUsersManage); err != nil {
		return nil, 0, err
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	users, total, err := s.repo.List(ctx, repository.UserListFilter{
		Role:     filter.Role,
		IsActive: filter.IsActive,
		Page:     filter.Page,
		Limit:    filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor *permission.Profile, id string, req UpdateUserRequest) (*UserResponse, error) {
	if err := requireFeature(actor, permission.FeatureUsersManage); err != nil {
		return nil, err
	}
	targetID, err := parseID(id, "user id")
	if err != nil {
		return nil, err
	}
	if req.Role != nil && !permission.IsKnownRole(*req.Role) {
		return nil, validationError("unknown role '" + *req.Role + "'")
	}
	if req.CustomDashboard != nil && !validDashboard(*req.CustomDashboard) {
		return nil, validationError("unknown dashboard '" + *req.CustomDashboard + "'")
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// roster before row, the same order as BootstrapAdmin
		if err := s.repo.LockAdminRoster(txCtx); err != nil {
			return fmt.Errorf("failed to lock admin roster: %w", err)
		}
		var findErr error
		user, findErr = s.repo.GetByIDForUpdate(txCtx, targetID)
		if findErr != nil {
			return lookupError(findErr, "user")
		}

		before := user.Permissions()
		beforeRole := user.Role
		wasAdmin := holdsAdmin(user)

		if req.FullName != nil {
			user.FullName = *req.FullName
		}
		if req.Role != nil && *req.Role != user.Role {
			user.Role = *req.Role
			if req.Permissions == nil {
				user.SetPermissions(permission.GetDefaultPermissions(user.Role))
			}
		}
		if req.Permissions != nil {
			user.SetPermissions(*req.Permissions)
		}
		if req.CustomDashboard != nil {
			user.CustomDashboard = *req.CustomDashboard
		}
		clampRoleFlags(user)

		if wasAdmin && !holdsAdmin(user) {
			if err := s.guardAdminRemoval(txCtx, user, actor); err != nil {
				return err
			}
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		entry := auditEntry(actor, model.ActionUpdateUserPermissions, "user", user.ID.String(), user.Username, map[string]interface{}{
			"role_before":        beforeRole,
			"role_after":         user.Role,
			"permissions_before": before,
			"permissions_after":  user.Permissions(),
			"custom_dashboard":   user.CustomDashboard,
		})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("role", user.Role).
		Str("actor_id", actor.UserID).
		Msg("user permissions updated")

	return mapToResponse(user), nil
}

// DeactivateUser soft-deletes a user. Users are never hard-deleted.
func (s *userService) DeactivateUser(ctx context.Context, actor *permission.Profile, id string) error {
	if err := requireFeature(actor, permission.FeatureUsersManage); err != nil {
		return err
	}
	targetID, err := parseID(id, "user id")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockAdminRoster(txCtx); err != nil {
			return fmt.Errorf("failed to lock admin roster: %w", err)
		}
		user, findErr := s.repo.GetByIDForUpdate(txCtx, targetID)
		if findErr != nil {
			return lookupError(findErr, "user")
		}
		if !user.IsActive {
			return nil
		}

		if holdsAdmin(user) {
			if err := s.guardAdminRemoval(txCtx, user, actor); err != nil {
				return err
			}
		}

		now := s.now()
		user.IsActive = false
		user.DeactivatedAt = &now
		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to deactivate user: %w", err)
		}
		if err := s.tokenRepo.DeleteByUser(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}

		entry := auditEntry(actor, model.ActionDeactivateUser, "user", user.ID.String(), user.Username, nil)
		return s.auditRepo.Log(txCtx, entry)
	})
}

// guardAdminRemoval counts admins inside the caller's transaction, so the check and the
// write cannot interleave with another demotion. The caller holds the admin roster lock.
func (s *userService) guardAdminRemoval(ctx context.Context, target *model.User, actor *permission.Profile) error {
	count, err := s.repo.CountActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	guard := permission.CanRemoveAdminPermission(count, target.ID.String(), actor.UserID)
	if !guard.Allowed {
		return forbidden(guard.Reason)
	}
	return nil
}
