package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"studypace/pkg/auth"
	"studypace/pkg/common"
)

// Authenticate creates the authentication middleware. Requests carry either a
// bearer token validated here, or pre-validated identity headers set by the
// Lambda adapter after the API Gateway JWT authorizer has run.
func Authenticate(validator *auth.JWTValidator, ipLimiter, userLimiter auth.RateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, err := ipLimiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			user := userFromGatewayHeaders(r)
			if user == nil {
				token := extractToken(r)
				if token == "" {
					respondUnauthorized(w, "Missing authentication token")
					return
				}
				user, err = validator.Validate(token)
				if err != nil {
					logger.Warn("Invalid token",
						zap.Error(err),
						zap.String("ip", clientIP),
						zap.String("path", r.URL.Path),
					)
					respondUnauthorized(w, "Invalid token")
					return
				}
			}

			allowed, err = userLimiter.Allow(r.Context(), user.LearnerID)
			if err != nil {
				logger.Error("User rate limiter error", zap.Error(err))
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !allowed {
				respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
				return
			}

			ctx := auth.WithUser(r.Context(), user)
			ctx = common.EnrichContext(ctx, user.LearnerID, chimiddleware.GetReqID(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromGatewayHeaders trusts identity headers only when the Lambda adapter
// has marked the request as already authorized upstream
func userFromGatewayHeaders(r *http.Request) *auth.UserContext {
	if r.Header.Get("X-API-Gateway-Authorized") != "true" {
		return nil
	}
	learnerID := r.Header.Get("X-Learner-ID")
	if learnerID == "" {
		return nil
	}
	return &auth.UserContext{
		LearnerID: learnerID,
		Email:     r.Header.Get("X-Learner-Email"),
	}
}

// extractToken pulls the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return authHeader
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    code,
	})
}
