// Package middleware holds the HTTP middleware stack: authentication,
// rate limiting, and request logging.
package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"cardtree-backend/infrastructure/config"
	"cardtree-backend/pkg/auth"
	"cardtree-backend/pkg/common"
)

// requestLimiter throttles by client IP and by authenticated user. When a
// shared limiter is injected (DynamoDB-backed, survives Lambda cold starts)
// both checks go through it under namespaced keys; otherwise per-process
// sliding windows apply.
type requestLimiter struct {
	shared auth.RateLimiter
	ip     *auth.IPRateLimiter
	user   *auth.UserRateLimiter
}

func newRequestLimiter(shared auth.RateLimiter) requestLimiter {
	if shared != nil {
		return requestLimiter{shared: shared}
	}
	return requestLimiter{
		ip:   auth.NewIPRateLimiter(100),
		user: auth.NewUserRateLimiter(200),
	}
}

func (l requestLimiter) allowIP(ctx context.Context, ip string) bool {
	if l.shared != nil {
		allowed, _ := l.shared.Allow(ctx, "ip:"+ip)
		return allowed
	}
	allowed, _ := l.ip.Allow(ctx, ip)
	return allowed
}

func (l requestLimiter) allowUser(ctx context.Context, userID string) bool {
	if l.shared != nil {
		allowed, _ := l.shared.Allow(ctx, "user:"+userID)
		return allowed
	}
	allowed, _ := l.user.Allow(ctx, userID)
	return allowed
}

// Authenticate creates an authentication middleware with JWT validation.
// In Lambda, API Gateway has already validated the token and the user
// identity arrives in headers instead. limiter may be nil, which falls
// back to in-memory rate limiting.
func Authenticate(cfg *config.Config, limiter auth.RateLimiter) func(next http.Handler) http.Handler {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return authenticateForLambda(limiter)
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "development-secret-change-in-production"
	}

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     jwtSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      []string{"cardtree-api"},
	})
	if err != nil {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication system error")
			})
		}
	}

	limits := newRequestLimiter(limiter)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limits.allowIP(r.Context(), getClientIP(r)) {
				common.RespondError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Rate limit exceeded")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				switch err {
				case auth.ErrExpiredToken:
					common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token has expired")
				case auth.ErrInvalidSignature:
					common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token signature")
				default:
					common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				}
				return
			}

			if !limits.allowUser(r.Context(), claims.UserID) {
				common.RespondError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "User rate limit exceeded")
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
				Roles:  claims.Roles,
			})
			ctx = common.WithUserID(ctx, claims.UserID)
			if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
				ctx = common.WithSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticateForLambda trusts the identity headers set by the Lambda
// adapter after API Gateway's JWT authorizer ran.
func authenticateForLambda(limiter auth.RateLimiter) func(next http.Handler) http.Handler {
	limits := newRequestLimiter(limiter)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limits.allowIP(r.Context(), getClientIP(r)) {
				common.RespondError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Rate limit exceeded")
				return
			}

			if r.Header.Get("X-API-Gateway-Authorized") != "true" {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing API Gateway authorization")
				return
			}
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user context from API Gateway")
				return
			}

			if !limits.allowUser(r.Context(), userID) {
				common.RespondError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "User rate limit exceeded")
				return
			}

			roles := []string{"authenticated"}
			if raw := r.Header.Get("X-User-Roles"); raw != "" {
				roles = strings.Split(raw, ",")
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: userID,
				Email:  r.Header.Get("X-User-Email"),
				Roles:  roles,
			})
			ctx = common.WithUserID(ctx, userID)
			if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
				ctx = common.WithSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		authHeader = r.Header.Get("authorization")
	}
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
