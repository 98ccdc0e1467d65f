package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/camerarecorder/cctv-service/internal/auth"
	"github.com/camerarecorder/cctv-service/internal/model"
)

type principalKey struct{}

// PrincipalFromContext retrieves the authenticated principal attached by
// RequireAuth, if any.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix)), true
}

// RequireAuth verifies the bearer token against the configured Verifier
// (the single authorisation port per the Design Notes) before delegating
// to next; missing or invalid tokens are rejected with 401 and never
// retried.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeErrorStatus(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, err := s.Verifier.Verify(r.Context(), token)
		if err != nil {
			writeErrorStatus(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAgentAuth verifies the bearer token against the LocalRecordingClient
// store rather than the JWT verifier, per §4.8's agent-specific auth.
func (s *Server) RequireAgentAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeErrorStatus(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		client, err := s.Store.GetClientByToken(r.Context(), token)
		if err != nil || client == nil {
			writeErrorStatus(w, http.StatusUnauthorized, "unrecognised agent token")
			return
		}
		ctx := context.WithValue(r.Context(), agentClientKey{}, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type agentClientKey struct{}

func agentClientFromContext(ctx context.Context) (*model.LocalRecordingClient, bool) {
	c, ok := ctx.Value(agentClientKey{}).(*model.LocalRecordingClient)
	return c, ok
}

func corsAndNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache,no-store,max-age=0,must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}
