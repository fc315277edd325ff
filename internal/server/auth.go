package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/access"
	"guyub/internal/engine"
	"guyub/internal/identity"
)

type callerKey struct{}

func withCaller(ctx context.Context, c access.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerFromContext(ctx context.Context) (access.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(access.Caller)
	return c, ok
}

// caller returns the request's authorization context.
func caller(ctx context.Context) (access.Caller, huma.StatusError) {
	if c, ok := callerFromContext(ctx); ok && c.UID != "" {
		return c, nil
	}
	return access.Caller{}, newAPIError(http.StatusUnauthorized, "Missing/invalid Authorization Bearer token")
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware verifies the bearer token and loads the caller profile
// once per request. Health, docs and the dev login stay public.
func newAuthMiddleware(basePath string, verifier identity.Verifier, e engine.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "openapi.json"):   true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath+"/") || public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(strings.TrimSpace(req.Header.Get("Authorization")))
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Missing/invalid Authorization Bearer token"))
				return
			}
			uid, err := verifier.Verify(req.Context(), token)
			if err != nil {
				logger.Debug("rejected credential", slog.String("path", req.URL.Path), slog.String("error", err.Error()))
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Missing/invalid Authorization Bearer token"))
				return
			}
			c, err := e.ResolveCaller(req.Context(), uid)
			if err != nil {
				respondStatusError(w, handleError(req.Context(), logger, err))
				return
			}
			next.ServeHTTP(w, req.WithContext(withCaller(req.Context(), c)))
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

// corsMiddleware allows browser clients from any origin and answers
// preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
