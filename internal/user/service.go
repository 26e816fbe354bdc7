package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"group-chat/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Store is what the service needs from persistence; the pgx-backed
// Repository satisfies it, tests use an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int) (*User, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
	UpdateImage(ctx context.Context, userID int, imageURL string) error
	GetHiddenWords(ctx context.Context, userID int) ([]string, error)
	ReplaceHiddenWords(ctx context.Context, userID int, words []string) error
}

type Service struct {
	repo      Store
	jwtSecret string
}

type MyJWTClaims struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(repo Store, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterRequest, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, fmt.Errorf("username and password required: %w", apperr.ErrValidation)
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username: req.Username,
		Password: string(hashedPwd),
	}

	if _, err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return &RegisterRequest{Username: u.Username}, nil
}

func (s *Service) Login(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	u, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("bad credentials: %w", apperr.ErrPermission)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MyJWTClaims{
		ID:       u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "group-chat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          u.ID,
		Username:    u.Username,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (int, string, error) {
	claims := &MyJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return 0, "", err
	}
	if !token.Valid {
		return 0, "", fmt.Errorf("invalid token: %w", apperr.ErrPermission)
	}

	return claims.ID, claims.Username, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, query)
}

// ProfileImage returns the user's current avatar URL. Group creation
// copies it once when no group image was supplied.
func (s *Service) ProfileImage(ctx context.Context, userID int) (string, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.ImageURL, nil
}

func (s *Service) UpdateImage(ctx context.Context, userID int, imageURL string) error {
	return s.repo.UpdateImage(ctx, userID, strings.TrimSpace(imageURL))
}

func (s *Service) HiddenWords(ctx context.Context, userID int) ([]string, error) {
	return s.repo.GetHiddenWords(ctx, userID)
}

// SetHiddenWords replaces the viewer's redaction list. Blank entries are
// dropped, duplicates collapse case-insensitively, order is preserved.
func (s *Service) SetHiddenWords(ctx context.Context, userID int, words []string) error {
	seen := make(map[string]bool, len(words))
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, w)
	}

	return s.repo.ReplaceHiddenWords(ctx, userID, cleaned)
}
