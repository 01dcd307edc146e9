package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/gopherchat/internal/auth"
	"github.com/suPer8Hu/gopherchat/internal/chat"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
	"github.com/suPer8Hu/gopherchat/internal/session"
	"github.com/suPer8Hu/gopherchat/internal/users"
	"golang.org/x/text/language"
)

// Pinger is a backend checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CookieSettings struct {
	Name   string
	Secure bool
}

type Handler struct {
	Users    *users.Service
	Sessions *session.Registry
	Chat     *chat.Service
	Tokens   *auth.SessionTokens
	Cookie   CookieSettings
	Checks   map[string]Pinger
}

func lang(c *gin.Context) language.Tag {
	return i18n.Match(c.GetHeader("Accept-Language"))
}

type errorMapping struct {
	target error
	status int
	code   int
	kind   string
	key    i18n.Key
}

var errorMappings = []errorMapping{
	{common.ErrNotAuthenticated, http.StatusUnauthorized, 40101, "unauthenticated", i18n.Unauthorized},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, 40102, "invalid_credentials", i18n.InvalidCredentials},
	{common.ErrValidation, http.StatusBadRequest, 40001, "validation_error", i18n.InvalidJSON},
	{common.ErrNotFound, http.StatusNotFound, 40401, "not_found", i18n.UserNotFound},
	{common.ErrConflict, http.StatusConflict, 40901, "conflict", i18n.UsernameTaken},
	{common.ErrStorageUnavailable, http.StatusInternalServerError, 50001, "storage_unavailable", i18n.StorageFailure},
	{common.ErrUpstreamFailure, http.StatusInternalServerError, 50201, "upstream_failure", i18n.UpstreamFailure},
}

// respondError maps a service error to its HTTP status and localized body.
// validationKey overrides the message for common.ErrValidation.
func respondError(c *gin.Context, err error, validationKey i18n.Key) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		key := m.key
		if m.target == common.ErrValidation && validationKey != "" {
			key = validationKey
		}
		if m.status >= http.StatusInternalServerError {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("kind", m.kind).Msg("request failed")
		}
		common.Fail(c, m.status, m.code, m.kind, i18n.Text(lang(c), key))
		return
	}

	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("unexpected error")
	common.Fail(c, http.StatusInternalServerError, 50000, "internal", i18n.Text(lang(c), i18n.Internal))
}

func (h *Handler) setSessionCookie(c *gin.Context, p *session.Principal) error {
	token, err := h.Tokens.Sign(p.Handle, p.ExpiresAt)
	if err != nil {
		return err
	}
	maxAge := int(time.Until(p.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Cookie.Name, token, maxAge, "/", "", h.Cookie.Secure, true)
	return nil
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Cookie.Name, "", -1, "/", "", h.Cookie.Secure, true)
}

func (h *Handler) Ping(c *gin.Context) {
	common.JSON(c, http.StatusOK, gin.H{"message": "pong"})
}

// Healthz pings every configured backend.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	common.JSON(c, status, gin.H{"status": overall, "checks": checks})
}
