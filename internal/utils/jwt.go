package utils

import (
	"errors"
	"time"

	"cms0/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

// Claims binds a session to one user, role and affiliate.
type Claims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	RoleID      string `json:"role_id,omitempty"`
	AffiliateID string `json:"affiliate_id,omitempty"`
	Type        string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret     []byte
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, ttl, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, refreshTTL: refreshTTL, now: time.Now}
}

// GenerateJWT issues an access token. affiliateID may be empty for sessions not bound to an affiliate.
func (i *TokenIssuer) GenerateJWT(user models.User, affiliateID string) (string, time.Time, error) {
	return i.sign(user, affiliateID, TokenTypeAccess, i.ttl)
}

// GenerateRefreshToken issues a refresh token carrying the same session binding.
func (i *TokenIssuer) GenerateRefreshToken(user models.User, affiliateID string) (string, time.Time, error) {
	return i.sign(user, affiliateID, TokenTypeRefresh, i.refreshTTL)
}

func (i *TokenIssuer) sign(user models.User, affiliateID, typ string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)

	roleID := ""
	if user.RoleID != nil {
		roleID = *user.RoleID
	}

	id, err := GenerateRandomString(16)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := Claims{
		UserID:      user.ID,
		Email:       user.Email,
		RoleID:      roleID,
		AffiliateID: affiliateID,
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseJWT parses and validates an access token
func (i *TokenIssuer) ParseJWT(tokenString string) (*Claims, error) {
	return i.parse(tokenString, TokenTypeAccess)
}

// ParseRefreshToken parses and validates a refresh token
func (i *TokenIssuer) ParseRefreshToken(tokenString string) (*Claims, error) {
	return i.parse(tokenString, TokenTypeRefresh)
}

func (i *TokenIssuer) parse(tokenString, typ string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
