package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"avtotest/models"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const minPasswordLength = 6

var (
	ErrInvalidEmail   = errors.New("Unable to validate email address: invalid format")
	ErrWeakPassword   = fmt.Errorf("Password should be at least %d characters", minPasswordLength)
	ErrEmailExists    = errors.New("A user with this email address has already been registered")
	ErrRoleAssigned   = errors.New("user already has a role")
	ErrRoleNotAllowed = errors.New("invalid role")
)

// AuthService is the identity service: it owns accounts, issues and
// resolves bearer tokens, and is the trusted source of user roles.
type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration
	hashCost  int
	validate  *validator.Validate
	now       func() time.Time
}

func NewAuthService(db *gorm.DB, jwtSecret string) *AuthService {
	return &AuthService{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
		hashCost:  bcrypt.DefaultCost,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Claims carries identity only. Roles are always looked up, never trusted
// from a token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type NewAccount struct {
	Email    string
	Password string
	FullName string
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        *models.User `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewUnauthenticatedError("Invalid login credentials")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewUnauthenticatedError("Invalid login credentials")
	}

	token, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		User:        &user,
	}, nil
}

func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ResolveToken returns the account a bearer token belongs to. The token must
// verify and the account must still exist.
func (s *AuthService) ResolveToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, NewUnauthenticatedError("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, NewUnauthenticatedError("invalid token subject")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewUnauthenticatedError("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetUserRole is the trusted role lookup used for every authorization
// decision.
func (s *AuthService) GetUserRole(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	var userRole models.UserRole
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&userRole).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", NewNotFoundError("role not found")
	}
	if err != nil {
		return "", err
	}
	return userRole.Role, nil
}

// CreateAccount stores a pre-confirmed account and its profile.
func (s *AuthService) CreateAccount(ctx context.Context, req NewAccount) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	confirmedAt := s.now()
	user := models.User{
		Email:            email,
		PasswordHash:     string(hash),
		EmailConfirmedAt: &confirmedAt,
		UserMetadata:     datatypes.JSONMap{"full_name": req.FullName},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailExists
		}

		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		profile := models.Profile{
			UserID:   user.ID,
			FullName: req.FullName,
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// DeleteAccount removes an account with its profile and role.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Profile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", userID).Error
	})
}

func (s *AuthService) AssignRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	if !role.Valid() {
		return ErrRoleNotAllowed
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserRole{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrRoleAssigned
	}

	return s.db.WithContext(ctx).Create(&models.UserRole{UserID: userID, Role: role}).Error
}

func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("profile not found")
	}
	return &profile, err
}

// EnsureAdmin creates the bootstrap administrator unless the email is
// already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, fullName string) error {
	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&existing).Error
	if err == nil {
		if _, err := s.GetUserRole(ctx, existing.ID); IsKind(err, KindNotFound) {
			log.Printf("Bootstrap admin %s has no role, assigning admin", existing.Email)
			return s.AssignRole(ctx, existing.ID, models.RoleAdmin)
		} else if err != nil {
			return err
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user, err := s.CreateAccount(ctx, NewAccount{Email: email, Password: password, FullName: fullName})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	if err := s.AssignRole(ctx, user.ID, models.RoleAdmin); err != nil {
		if delErr := s.DeleteAccount(ctx, user.ID); delErr != nil {
			log.Printf("Failed to remove bootstrap admin %s after role error: %v", user.ID, delErr)
		}
		return fmt.Errorf("failed to assign admin role: %w", err)
	}

	log.Printf("Created bootstrap admin %s", user.Email)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
