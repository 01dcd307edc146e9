package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/gopherchat/internal/auth"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
	"github.com/suPer8Hu/gopherchat/internal/session"
)

const PrincipalKey = "principal"

type Resolver interface {
	Resolve(ctx context.Context, handle string) (*session.Principal, error)
}

// SessionHandle extracts the session handle from the signed cookie.
// It returns "" for a missing or invalid cookie.
func SessionHandle(c *gin.Context, tokens *auth.SessionTokens, cookieName string) string {
	raw, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	handle, err := tokens.Parse(raw)
	if err != nil {
		return ""
	}
	return handle
}

// SessionRequired rejects requests without a live login and stores the
// principal under PrincipalKey.
func SessionRequired(resolver Resolver, tokens *auth.SessionTokens, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := i18n.Match(c.GetHeader("Accept-Language"))

		p, err := resolver.Resolve(c.Request.Context(), SessionHandle(c, tokens, cookieName))
		if err != nil {
			if errors.Is(err, common.ErrNotAuthenticated) {
				common.Fail(c, http.StatusUnauthorized, 40101, "unauthenticated", i18n.Text(lang, i18n.Unauthorized))
				return
			}
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("resolve session")
			common.Fail(c, http.StatusInternalServerError, 50001, "storage_unavailable", i18n.Text(lang, i18n.StorageFailure))
			return
		}

		c.Set(PrincipalKey, p)
		c.Next()
	}
}

func PrincipalFromContext(c *gin.Context) (*session.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*session.Principal)
	return p, ok
}
