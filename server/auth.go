package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/pathfinder-ai/pathfinder/identity"
	"github.com/pathfinder-ai/pathfinder/pipeline"
)

type contextKey string

const claimsKey contextKey = "identity-claims"

// withAuth resolves the caller's identity. A missing token yields
// anonymous claims; an invalid one is rejected with 401 before the
// pipeline runs.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)

		claims, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.log.Warn().Err(err).Msg("token verification failed")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// profileFrom converts the request's claims into the pipeline profile.
// Anonymous callers get no profile.
func profileFrom(ctx context.Context) *pipeline.Profile {
	claims, ok := ctx.Value(claimsKey).(identity.Claims)
	if !ok || claims == identity.Anonymous {
		return nil
	}
	return &pipeline.Profile{
		Subject:         claims.Subject,
		Email:           claims.Email,
		BudgetSensitive: claims.BudgetSensitive,
	}
}
