package server

import (
	"net/http"
	"strings"
	"time"
)

// withAuth rejects requests without a valid bearer token and stores the
// resolved user on the request context.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeErrorReq(w, r, unauthenticated())
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token, time.Now().UTC())
		if err != nil {
			s.writeErrorReq(w, r, internalError(msgServerError, err))
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, unauthenticated())
			return
		}

		ctx := contextWithAuthPrincipal(r.Context(), authPrincipal{User: user, Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
