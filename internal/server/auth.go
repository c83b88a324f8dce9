package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"fleetline/internal/action"
	"fleetline/internal/repo"
)

type AuthConfig struct {
	JWTSecret             string
	AllowAPIKeys          bool
	AllowLegacyCrewHeader bool
	Logger                *log.Logger
}

type userKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withUser(ctx context.Context, u action.UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func userFromContext(ctx context.Context) (action.UserContext, bool) {
	u, ok := ctx.Value(userKey{}).(action.UserContext)
	return u, ok
}

func requireUser(ctx context.Context) (action.UserContext, huma.StatusError) {
	if u, ok := userFromContext(ctx); ok && u.UserID != "" {
		return u, nil
	}
	return action.UserContext{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	YachtID string `json:"yacht_id,omitempty"`
	Role    string `json:"role,omitempty"`
}

func authenticateJWT(token string, secret string) (action.UserContext, error) {
	if strings.TrimSpace(secret) == "" {
		return action.UserContext{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return action.UserContext{}, err
	}
	if !parsed.Valid {
		return action.UserContext{}, errors.New("invalid token")
	}
	return action.UserContext{
		UserID:  claims.Subject,
		YachtID: claims.YachtID,
		Role:    claims.Role,
	}, nil
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (action.UserContext, error) {
	if strings.TrimSpace(key) == "" {
		return action.UserContext{}, errors.New("api key required")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return action.UserContext{}, err
	}
	return action.UserContext{
		UserID:  apiKey.UserID,
		YachtID: apiKey.YachtID,
		Role:    apiKey.Role,
	}, nil
}

// MintToken signs an HS256 token carrying the user context claims. Used by
// the dev login route and the fl token issue command.
func MintToken(user action.UserContext, secret string, ttlSeconds int) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := jwtClaims{
		YachtID: user.YachtID,
		Role:    user.Role,
	}
	claims.Subject = user.UserID
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttlSeconds > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			legacyCrew := strings.TrimSpace(req.Header.Get("X-Crew-Id"))

			if authz != "" {
				if res := action.ValidateBearerHeader(authz); !res.Valid {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, res.Err.Code, res.Err.Message, nil))
					return
				}
				user, err := authenticateJWT(strings.TrimSpace(authz[len("Bearer "):]), cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, action.CodeInvalidToken, "invalid credentials", nil))
					return
				}
				if res := action.ValidateUserContext(&user); !res.Valid {
					respondStatusError(w, newAPIError(statusForCode(res.Err.Code), res.Err.Code, res.Err.Message, nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withUser(req.Context(), user)))
				return
			}

			if apiKeyHeader != "" && cfg.AllowAPIKeys {
				user, err := authenticateAPIKey(req.Context(), r, apiKeyHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, action.CodeInvalidToken, "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withUser(req.Context(), user)))
				return
			}

			if legacyCrew != "" && cfg.AllowLegacyCrewHeader {
				cfg.logger().Printf("WARNING: using legacy X-Crew-Id header without auth; deprecated path (user_id=%s)", legacyCrew)
				next.ServeHTTP(w, req.WithContext(withUser(req.Context(), action.UserContext{UserID: legacyCrew})))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, action.CodeMissingToken, "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
