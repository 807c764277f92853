package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists application users. FindByEmail returns (nil, nil) when
// no user has the email.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
}

type AuthService struct {
	users     UserStore
	jwtSecret string
}

func NewAuthService(users UserStore, jwtSecret string) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// VerifyPassword compares a plain password with a hashed password.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateJWT generates a signed token carrying the user ID and role.
func (s *AuthService) GenerateJWT(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(4 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// Register creates a new user. All self-registered users get the "user" role.
func (s *AuthService) Register(ctx context.Context, email, password string) (models.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if existing != nil {
		return models.User{}, ErrEmailInUse
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Password:  hashed,
		Role:      "user",
		CreatedAt: time.Now(),
	}
	if err := s.users.Insert(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login authenticates a user and returns a JWT with role info.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if user == nil || !VerifyPassword(password, user.Password) {
		return "", "", ErrInvalidCredentials
	}

	token, err := s.GenerateJWT(user.ID.Hex(), user.Role)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}
