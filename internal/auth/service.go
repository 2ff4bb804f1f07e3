package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/niv-onboarding/internal/audit"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type Service interface {
	Login(ctx context.Context, email, secret string) (string, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// ServiceConfig carries the operator service account the API boundary
// authenticates against. The secret is stored as a bcrypt hash only.
type ServiceConfig struct {
	JWTSecret          string
	TokenExpiry        time.Duration
	OperatorEmail      string
	OperatorSecretHash string
}

type service struct {
	audit              audit.Service
	jwtSecret          []byte
	tokenExpiry        time.Duration
	operatorEmail      string
	operatorSecretHash string
}

func NewService(auditService audit.Service, config ServiceConfig) Service {
	expiry := config.TokenExpiry
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &service{
		audit:              auditService,
		jwtSecret:          []byte(config.JWTSecret),
		tokenExpiry:        expiry,
		operatorEmail:      config.OperatorEmail,
		operatorSecretHash: config.OperatorSecretHash,
	}
}

func (s *service) Login(ctx context.Context, email, secret string) (string, error) {
	if email != s.operatorEmail {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.operatorSecretHash), []byte(secret)); err != nil {
		s.audit.LogEvent(ctx, &audit.Event{
			EventType: audit.EventLogin,
			Action:    "LOGIN",
			Resource:  "operator",
			Status:    "failure",
			Details:   map[string]interface{}{"reason": "invalid_secret"},
		})
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
		UserID:   email,
		Username: email,
		Roles:    []string{"operator"},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventLogin,
		UserID:     email,
		Action:     "LOGIN",
		Resource:   "operator",
		ResourceID: email,
		Status:     "success",
	})
	return signed, nil
}

func (s *service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
