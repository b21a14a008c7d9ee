package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

const (
	// ContextUserIDKey ключ контекста Gin с ID авторизованного пользователя
	ContextUserIDKey = "auth_user_id"

	authHeaderPrefix = "Bearer "
)

// TokenClaims клеймы токена доступа. Идентификатор пользователя
// приходит в subject, выпуск токенов остается за сервисом авторизации.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenValidator проверяет строку токена и возвращает клеймы
type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// JWTValidator проверяет подписанные HS256 токены
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator создает валидатор с общим секретом
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

// Validate разбирает и проверяет токен
func (v *JWTValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		}
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// AuthMiddleware проверяет bearer-токен на защищенных маршрутах
type AuthMiddleware struct {
	validator TokenValidator
	log       *logger.Logger
}

// NewAuthMiddleware создает middleware авторизации
func NewAuthMiddleware(validator TokenValidator, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		log:       log,
	}
}

// RequireAuth пропускает запрос дальше только с валидным токеном
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, "missing authorization token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.reject(c, err.Error())
			return
		}

		userID := claims.Subject
		if userID == "" {
			m.reject(c, "user ID missing in token")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, message string) {
	m.log.Warnw("Authentication failed", "path", c.Request.URL.Path, "reason", message)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"code":  "unauthorized",
	})
}

// UserID возвращает ID пользователя, положенный RequireAuth в контекст
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
