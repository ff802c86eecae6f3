package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// TokenClaims are the claims of a self-issued HMAC token. The subject is the user id.
type TokenClaims struct {
	jwt.RegisteredClaims
	Role         models.UserRole `json:"role"`
	Name         string          `json:"name,omitempty"`
	Email        string          `json:"email,omitempty"`
	DepartmentID string          `json:"department_id,omitempty"`
	CollegeID    string          `json:"college_id,omitempty"`
}

// User builds the caller described by the claims.
func (tc *TokenClaims) User() *models.User {
	user := &models.User{
		ID:       tc.Subject,
		FullName: tc.Name,
		Email:    tc.Email,
		Role:     tc.Role,
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	if tc.DepartmentID != "" {
		dept := tc.DepartmentID
		user.DepartmentID = &dept
	}
	if tc.CollegeID != "" {
		college := tc.CollegeID
		user.CollegeID = &college
	}
	return user
}

// userRecorder receives every authenticated caller so that services looking
// users up by id see the same role and scope the token carried.
type userRecorder interface {
	Put(user *models.User)
}

// JWTAuthMiddleware authenticates HS256 bearer tokens for deployments
// without Casdoor.
type JWTAuthMiddleware struct {
	secret   []byte
	issuer   string
	recorder userRecorder
}

func NewJWTAuthMiddleware(secret, issuer string, recorder userRecorder) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{secret: []byte(secret), issuer: issuer, recorder: recorder}
}

func (m *JWTAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := m.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, fmt.Sprintf("invalid token: %v", err))
			return
		}

		user := claims.User()
		if m.recorder != nil {
			m.recorder.Put(user)
		}
		setUser(c, user)
		c.Next()
	}
}

// ValidateToken parses and validates a token, returning its claims.
func (m *JWTAuthMiddleware) ValidateToken(tokenStr string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a token for user. The admin CLI and tests use it.
func IssueToken(secret, issuer string, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  user.Role,
		Name:  user.FullName,
		Email: user.Email,
	}
	if user.DepartmentID != nil {
		claims.DepartmentID = *user.DepartmentID
	}
	if user.CollegeID != nil {
		claims.CollegeID = *user.CollegeID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
