package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"appwini/internal/util"
)

type JWTConfig struct {
	Issuer string
	Secret string
	TTLMin int
}

type JWTManager struct {
	cfg JWTConfig
}

type Claims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTManager(cfg JWTConfig) *JWTManager {
	return &JWTManager{cfg: cfg}
}

func (m *JWTManager) TTL() time.Duration {
	return time.Duration(m.cfg.TTLMin) * time.Minute
}

func (m *JWTManager) Sign(userID int64, role string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.TTL())
	jti, err := util.RandomToken(12)
	if err != nil {
		return "", time.Time{}, err
	}
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString([]byte(m.cfg.Secret))
	return s, exp, err
}

func (m *JWTManager) Parse(tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithIssuer(m.cfg.Issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
