package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ledger-bot/internal/config"
)

const (
	audienceAPI     = "api"
	audienceHistory = "history"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenService struct {
	secretKey []byte
	expiresIn time.Duration
}

func NewTokenService(cfg config.Config) *TokenService {
	return &TokenService{
		secretKey: []byte(cfg.JWTSecret),
		expiresIn: cfg.JWTExpiresIn,
	}
}

// Identity is what an API token says about its bearer.
type Identity struct {
	UserID string
	Name   string
}

type apiClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// historyClaims scope a token to one group's history page.
type historyClaims struct {
	GroupID string `json:"group_id"`
	jwt.RegisteredClaims
}

// GenerateToken issues an API token whose subject is the user id.
func (s *TokenService) GenerateToken(id Identity) (string, error) {
	expTime := time.Now().Add(s.expiresIn)
	claims := apiClaims{
		Name: id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Audience:  jwt.ClaimStrings{audienceAPI},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expTime),
		},
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	slog.Info("JWT generated", "user_id", id.UserID, "expires_at", expTime.Format(time.DateTime))
	return tokenStr, nil
}

// ParseToken returns the identity carried by a valid API token.
func (s *TokenService) ParseToken(tokenStr string) (Identity, error) {
	var claims apiClaims
	if err := s.parse(tokenStr, &claims, audienceAPI); err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	slog.Debug("JWT parsed successfully", "user_id", claims.Subject)
	return Identity{UserID: claims.Subject, Name: claims.Name}, nil
}

// GenerateHistoryToken issues a link token that only opens groupID's history.
func (s *TokenService) GenerateHistoryToken(groupID string) (string, error) {
	claims := historyClaims{
		GroupID: groupID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceHistory},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiresIn)),
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign history token: %w", err)
	}
	return tokenStr, nil
}

// ParseHistoryToken returns the group a history token was issued for.
func (s *TokenService) ParseHistoryToken(tokenStr string) (string, error) {
	var claims historyClaims
	if err := s.parse(tokenStr, &claims, audienceHistory); err != nil {
		return "", err
	}
	if claims.GroupID == "" {
		return "", fmt.Errorf("%w: empty group", ErrInvalidToken)
	}
	return claims.GroupID, nil
}

func (s *TokenService) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secretKey, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
