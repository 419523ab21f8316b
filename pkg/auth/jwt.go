package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "studypace/pkg/errors"
)

// UserContext carries the authenticated learner identity through a request
type UserContext struct {
	LearnerID string
	Email     string
	Claims    map[string]interface{}
}

type userContextKey struct{}

// WithUser stores the user context on a request context
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey{}).(*UserContext)
	if !ok || user == nil {
		return nil, pkgerrors.NewUnauthorizedError("no authenticated user in context")
	}
	return user, nil
}

// JWTConfig holds JWT validation settings
type JWTConfig struct {
	SecretKey string
	Issuer    string
	Audience  []string
	// Leeway tolerates small clock skew between token issuer and validator
	Leeway time.Duration
}

// JWTValidator validates bearer tokens signed with HS256
type JWTValidator struct {
	config JWTConfig
}

// tokenClaims is the claim set studypace tokens carry
type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTValidator creates a validator from configuration
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}
	if config.Leeway == 0 {
		config.Leeway = 30 * time.Second
	}
	return &JWTValidator{config: config}, nil
}

// Validate parses and validates a token string and returns the user context
func (v *JWTValidator) Validate(tokenString string) (*UserContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.config.Leeway),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	for _, aud := range v.config.Audience {
		opts = append(opts, jwt.WithAudience(aud))
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.config.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, pkgerrors.NewUnauthorizedError("invalid token").WithCause(err)
	}
	if !token.Valid {
		return nil, pkgerrors.NewUnauthorizedError("invalid token")
	}
	if claims.Subject == "" {
		return nil, pkgerrors.NewUnauthorizedError("token has no subject")
	}

	return &UserContext{
		LearnerID: claims.Subject,
		Email:     claims.Email,
	}, nil
}
