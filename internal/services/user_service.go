package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const adminTokenTTL = 24 * time.Hour

var (
	ErrInvalidLogin     = errors.New("invalid username or password")
	ErrUserDisabled     = errors.New("user is disabled")
	ErrWrongPassword    = errors.New("current password is incorrect")
	ErrInvalidAuthToken = errors.New("invalid or expired token")
)

// AdminClaims is the payload of an admin bearer token.
type AdminClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type UserService struct {
	db     *gorm.DB
	secret []byte
	now    func() time.Time
}

func NewUserService(db *gorm.DB, jwtSecret string) *UserService {
	return &UserService{db: db, secret: []byte(jwtSecret), now: time.Now}
}

// Login checks credentials and returns a signed 24h token.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidLogin
	}
	if user.Status != "active" {
		return nil, ErrUserDisabled
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", &now).Error; err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(&user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, Username: user.Username, Email: user.Email}, nil
}

func (s *UserService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := AdminClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses an HS256 token; any failure is ErrInvalidAuthToken.
func (s *UserService) ValidateToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuthToken, err)
	}
	return claims, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword requires the current password before storing the new hash.
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if len(newPassword) < 6 {
		return validationErrorf("new password must be at least 6 characters")
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", user.Password).Error
}
