package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mind-engage/usersapi/internal/api/envelope"
	"github.com/mind-engage/usersapi/internal/auth/guard"
)

const (
	msgTokenRequired = "The token is required."
	msgTokenExpired  = "The token expired."
)

// TokenHeader carries the single-use token. Authorization: Bearer is accepted
// as a fallback.
const TokenHeader = "Token"

type Admitter interface {
	Admit(token string) error
}

type Issuer interface {
	Issue() (string, error)
}

// GET /token  ->  {"success":true,"token":"..."}
func TokenHandler(iss Issuer, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := iss.Issue()
		if err != nil {
			log.Error("issue token", zap.Error(err))
			envelope.Fail(w, err)
			return
		}
		envelope.OK(w, http.StatusOK, "", map[string]any{"token": tok})
	}
}

// RequireToken admits the request's token once. Forged, expired and replayed
// tokens all get the same 401 so the response does not tell them apart.
func RequireToken(a Admitter, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := credential(r)
			err := a.Admit(tok)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithTokenID(r.Context(), guard.TokenID(tok))))
			case errors.Is(err, guard.ErrMissingCredential):
				envelope.Fail(w, envelope.BadRequest(msgTokenRequired))
			case errors.Is(err, guard.ErrInvalidOrExpired):
				log.Debug("token refused",
					zap.String("reason", string(guard.ReasonOf(err))),
					zap.String("path", r.URL.Path),
				)
				envelope.Fail(w, envelope.Unauthorized(msgTokenExpired))
			default:
				log.Error("token admission failed", zap.Error(err), zap.String("path", r.URL.Path))
				envelope.Fail(w, err)
			}
		})
	}
}

func credential(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(TokenHeader)); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
