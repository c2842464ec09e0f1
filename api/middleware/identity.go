package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/identity"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type tokenVerifier interface {
	Verify(raw string) (pkgAuth.Subject, error)
}

// IdentityOptions names where the session key travels. Without Tokens every
// bearer token is rejected.
type IdentityOptions struct {
	Tokens        tokenVerifier
	SessionHeader string
	SessionCookie string
	SecureCookie  bool
}

// Identity attaches the caller to the request context. The session key comes
// from the header or cookie and is issued when absent; a bearer token, when
// present, must be valid and supplies the user.
func Identity(opts IdentityOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.Identity{
				SessionKey: sessionKey(r, opts),
				Params:     r.URL.Query(),
			}
			if id.SessionKey == "" {
				id.SessionKey = uuid.NewString()
				issueSession(w, opts, id.SessionKey)
			}

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				if opts.Tokens == nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer tokens are not accepted"))
					return
				}
				subject, err := opts.Tokens.Verify(token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				id.UserID = &subject.UserID
				id.Staff = subject.Staff
			}

			ctx := identity.WithContext(r.Context(), id)
			if logg != nil {
				ctx = logg.WithSessionKey(ctx, id.SessionKey)
				if id.IsAuthenticated() {
					ctx = logg.WithUserID(ctx, id.UserID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionKey(r *http.Request, opts IdentityOptions) string {
	if opts.SessionHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(opts.SessionHeader)); v != "" {
			return v
		}
	}
	if opts.SessionCookie != "" {
		if c, err := r.Cookie(opts.SessionCookie); err == nil {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

func issueSession(w http.ResponseWriter, opts IdentityOptions, key string) {
	if opts.SessionHeader != "" {
		w.Header().Set(opts.SessionHeader, key)
	}
	if opts.SessionCookie != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     opts.SessionCookie,
			Value:    key,
			Path:     "/",
			HttpOnly: true,
			Secure:   opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
