package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/jwtutil"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultBcryptCost is the work factor for stored password hashes
const DefaultBcryptCost = 12

const (
	minPasswordLength = 6
	maxNameLength     = 50

	msgInvalidCredentials = "Invalid credentials"
	msgInvalidRefresh     = "Invalid refresh token"
)

// TenantSummary is the tenant part of an authenticated user
type TenantSummary struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Slug string           `json:"slug"`
	Type model.TenantType `json:"type"`
}

// AuthenticatedUser is the public view of a user with its tenant
type AuthenticatedUser struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Role      model.Role    `json:"role"`
	IsActive  bool          `json:"isActive"`
	Tenant    TenantSummary `json:"tenant"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         AuthenticatedUser `json:"user"`
	ExpiresIn    int64             `json:"expiresIn"`
}

// RefreshResult is returned by a successful refresh
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// LoginInput holds login credentials. TenantSlug is optional.
type LoginInput struct {
	Email      string
	Password   string
	TenantSlug string
}

// RegisterInput holds the data for a new user
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.Role
	TenantID  string
}

func (in *RegisterInput) normalize() error {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return apperror.BadRequest("email must be a valid email address")
	}
	if len(in.Password) < minPasswordLength {
		return apperror.BadRequest("password must be at least %d characters", minPasswordLength)
	}
	if in.FirstName == "" || len(in.FirstName) > maxNameLength {
		return apperror.BadRequest("firstName is required and must be at most %d characters", maxNameLength)
	}
	if in.LastName == "" || len(in.LastName) > maxNameLength {
		return apperror.BadRequest("lastName is required and must be at most %d characters", maxNameLength)
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !in.Role.Valid() {
		return apperror.BadRequest("role must be one of USER, ADMIN, SUPER_ADMIN")
	}
	if strings.TrimSpace(in.TenantID) == "" {
		return apperror.BadRequest("tenantId is required")
	}
	return nil
}

// AuthOption customizes an AuthService
type AuthOption func(*AuthService)

// WithBcryptCost overrides the password hashing cost
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// AuthService handles credentials and the token lifecycle
type AuthService struct {
	db         *gorm.DB
	tokens     *jwtutil.JWTUtil
	bcryptCost int
	now        func() time.Time
}

// NewAuthService creates an AuthService
func NewAuthService(db *gorm.DB, tokens *jwtutil.JWTUtil, opts ...AuthOption) *AuthService {
	s := &AuthService{
		db:         db,
		tokens:     tokens,
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashPassword hashes a password with the configured cost
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login verifies credentials and issues an access and a refresh token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	log := logger.Ctx(ctx)
	db := s.db.WithContext(ctx)
	email := normalizeEmail(in.Email)

	var user model.User
	err := db.Preload("Tenant").Where("email = ?", email).First(&user).Error
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err != nil || !user.IsActive {
		prometheus.RecordAuthError("invalid_credentials")
		log.Warn("Login rejected", zap.String("email", email), zap.String("reason", "unknown or inactive user"))
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	if user.Tenant == nil || !user.Tenant.IsActive {
		prometheus.RecordAuthError("tenant_inactive")
		log.Warn("Login rejected", zap.String("email", email), zap.String("reason", "tenant inactive"))
		return nil, apperror.Unauthorized("Tenant is inactive")
	}

	if in.TenantSlug != "" && user.Tenant.Slug != in.TenantSlug {
		prometheus.RecordAuthError("tenant_mismatch")
		log.Warn("Login rejected", zap.String("email", email), zap.String("reason", "tenant slug mismatch"))
		return nil, apperror.Unauthorized("Invalid tenant access")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		log.Warn("Login rejected", zap.String("email", email), zap.String("reason", "invalid password"))
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	now := s.now()
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	accessToken, refreshToken, err := s.generateTokens(ctx, &user)
	if err != nil {
		return nil, err
	}

	log.Info("User logged in", zap.String("user_id", user.ID), zap.String("tenant_id", user.TenantID))

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         toAuthenticatedUser(&user),
		ExpiresIn:    s.expiresIn(),
	}, nil
}

// Register creates a user. Granting ADMIN or SUPER_ADMIN requires an
// authenticated caller with enough privilege; caller may be nil otherwise.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, caller *Actor) (*AuthenticatedUser, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := authorizeRoleGrant(in.Role, in.TenantID, caller); err != nil {
		prometheus.RecordAuthError("role_grant_denied")
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&model.User{}).Unscoped().Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		prometheus.RecordAuthError("email_already_exists")
		return nil, apperror.Conflict("User with this email already exists")
	}

	var tenant model.Tenant
	if err := db.Where("id = ?", in.TenantID).First(&tenant).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.BadRequest("Invalid or inactive tenant")
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	if !tenant.IsActive {
		return nil, apperror.BadRequest("Invalid or inactive tenant")
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      in.Role,
		IsActive:  true,
		TenantID:  tenant.ID,
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperror.Conflict("User with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.Tenant = &tenant

	logger.Ctx(ctx).Info("New user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	result := toAuthenticatedUser(&user)
	return &result, nil
}

// Refresh exchanges a valid refresh token for a new access token. Every
// failure yields the same Unauthorized error.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	log := logger.Ctx(ctx)
	invalid := func(reason string) error {
		prometheus.RecordAuthError("refresh_" + reason)
		log.Warn("Refresh rejected", zap.String("reason", reason))
		return apperror.Unauthorized(msgInvalidRefresh)
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, invalid("invalid_signature")
	}

	db := s.db.WithContext(ctx)
	var stored model.RefreshToken
	if err := db.Preload("User.Tenant").Where("id = ?", claims.TokenID).First(&stored).Error; err != nil {
		if isNotFound(err) {
			return nil, invalid("unknown_token")
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if stored.UserID != claims.Subject {
		return nil, invalid("subject_mismatch")
	}
	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(refreshToken)) != 1 {
		return nil, invalid("token_mismatch")
	}
	if stored.IsExpired(s.now()) {
		if err := db.Delete(&model.RefreshToken{}, "id = ?", stored.ID).Error; err != nil {
			log.Error("Failed to delete expired refresh token", zap.Error(err))
		}
		return nil, invalid("expired")
	}
	user := stored.User
	if user == nil || !user.IsActive || user.Tenant == nil || !user.Tenant.IsActive {
		return nil, invalid("inactive")
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role), user.TenantID, user.Tenant.Slug)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	prometheus.RecordTokenIssued("access")

	return &RefreshResult{AccessToken: accessToken, ExpiresIn: s.expiresIn()}, nil
}

// Logout revokes refreshToken for the user, or every refresh token of the
// user when refreshToken is empty.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if refreshToken != "" {
		query = query.Where("token = ?", refreshToken)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := query.Delete(&model.RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("delete refresh tokens: %w", result.Error)
	}

	logger.Ctx(ctx).Info("User logged out",
		zap.String("user_id", userID),
		zap.Bool("all_sessions", refreshToken == ""),
		zap.Int64("revoked", result.RowsAffected))
	return nil
}

// LogoutAll revokes every refresh token of the user
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.Logout(ctx, userID, "")
}

// Profile returns the current user with its tenant
func (s *AuthService) Profile(ctx context.Context, userID string) (*AuthenticatedUser, error) {
	var user model.User
	err := s.db.WithContext(ctx).Preload("Tenant").Where("id = ?", userID).First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("User is inactive")
	}
	result := toAuthenticatedUser(&user)
	return &result, nil
}

// generateTokens signs an access token and creates the refresh token row
// first, then stores the signed refresh token in it.
func (s *AuthService) generateTokens(ctx context.Context, user *model.User) (string, string, error) {
	tenantSlug := ""
	if user.Tenant != nil {
		tenantSlug = user.Tenant.Slug
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role), user.TenantID, tenantSlug)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	var refreshToken string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.RefreshToken{
			UserID:    user.ID,
			ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create refresh token: %w", err)
		}

		signed, err := s.tokens.GenerateRefreshToken(user.ID, row.ID, row.ExpiresAt)
		if err != nil {
			return fmt.Errorf("sign refresh token: %w", err)
		}
		if err := tx.Model(&row).Update("token", signed).Error; err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		refreshToken = signed
		return nil
	})
	if err != nil {
		return "", "", err
	}

	prometheus.RecordTokenIssued("access")
	prometheus.RecordTokenIssued("refresh")
	return accessToken, refreshToken, nil
}

func (s *AuthService) expiresIn() int64 {
	return int64(s.tokens.AccessTTL() / time.Second)
}

// authorizeRoleGrant checks that caller may create a user with role in tenantID
func authorizeRoleGrant(role model.Role, tenantID string, caller *Actor) error {
	if role == model.RoleUser {
		return nil
	}
	if caller == nil {
		return apperror.Forbidden("Authentication required to assign role %s", role)
	}
	switch caller.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleAdmin:
		if role == model.RoleAdmin && caller.TenantID == tenantID {
			return nil
		}
	}
	return apperror.Forbidden("Insufficient permissions to assign role %s", role)
}

func toAuthenticatedUser(user *model.User) AuthenticatedUser {
	result := AuthenticatedUser{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		IsActive:  user.IsActive,
	}
	if user.Tenant != nil {
		result.Tenant = TenantSummary{
			ID:   user.Tenant.ID,
			Name: user.Tenant.Name,
			Slug: user.Tenant.Slug,
			Type: user.Tenant.Type,
		}
	}
	return result
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
