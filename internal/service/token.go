package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/zigg31416/Chatx/internal/domain"
)

// ErrInvalidToken 表示会话令牌无法解析、签名无效或已过期。
var ErrInvalidToken = errors.New("invalid or expired session token")

// SessionClaims 是会话令牌携带的声明。
type SessionClaims struct {
	SessionID string      `json:"session_id"`
	RoomID    string      `json:"room_id"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService 签发和校验会话令牌 (HS256)。
// 令牌只证明持有者通过邀请码或创建房间获得了某个会话。
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenService 创建 TokenService 实例。
// expiryHours <= 0 时默认 24 小时，与房间 TTL 一致。
func NewTokenService(secret string, expiryHours int) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret cannot be empty")
	}
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &TokenService{
		secret: []byte(secret),
		expiry: time.Duration(expiryHours) * time.Hour,
		now:    time.Now,
	}, nil
}

// Issue 为会话签发令牌。
func (s *TokenService) Issue(sessionID, roomID string, role domain.Role) (string, error) {
	now := s.now()
	claims := SessionClaims{
		SessionID: sessionID,
		RoomID:    roomID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Parse 校验令牌并返回其声明。
func (s *TokenService) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
