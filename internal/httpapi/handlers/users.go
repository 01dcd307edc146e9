package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/httpapi/middleware"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
	"github.com/suPer8Hu/gopherchat/internal/models"
)

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenReq struct {
	AccessToken string `json:"accessToken"`
}

type userView struct {
	ID             uint64    `json:"id"`
	Username       string    `json:"username"`
	HasAccessToken bool      `json:"has_access_token"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func viewOf(u *models.User) userView {
	return userView{
		ID:             u.ID,
		Username:       u.Username,
		HasAccessToken: u.HasAccessToken(),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40002, "validation_error", i18n.Text(lang(c), i18n.InvalidJSON))
		return
	}

	ctx := c.Request.Context()
	u, err := h.Users.Register(ctx, req.Username, req.Password)
	if err != nil {
		respondError(c, err, i18n.CredentialsMissing)
		return
	}

	if !h.startSession(c, u) {
		return
	}
	zerolog.Ctx(ctx).Info().Uint64("user_id", u.ID).Msg("user registered")
	common.JSON(c, http.StatusCreated, viewOf(u))
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40002, "validation_error", i18n.Text(lang(c), i18n.InvalidJSON))
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err, i18n.CredentialsMissing)
		return
	}

	if !h.startSession(c, u) {
		return
	}
	common.JSON(c, http.StatusOK, viewOf(u))
}

// startSession logs the user in and sets the cookie. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handler) startSession(c *gin.Context, u *models.User) bool {
	p, err := h.Sessions.Login(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, err, "")
		return false
	}
	if err := h.setSessionCookie(c, p); err != nil {
		respondError(c, err, "")
		return false
	}
	return true
}

// Logout succeeds without a session too; the cookie is cleared either way.
func (h *Handler) Logout(c *gin.Context) {
	handle := middleware.SessionHandle(c, h.Tokens, h.Cookie.Name)
	if handle != "" {
		if err := h.Sessions.Invalidate(c.Request.Context(), handle); err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("invalidate session")
			common.Fail(c, http.StatusInternalServerError, 50001, "storage_unavailable", i18n.Text(lang(c), i18n.LogoutFailed))
			return
		}
	}
	h.clearSessionCookie(c)
	common.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Profile(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthenticated", i18n.Text(lang(c), i18n.Unauthorized))
		return
	}

	u, err := h.Users.Profile(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err, "")
		return
	}
	common.JSON(c, http.StatusOK, viewOf(u))
}

func (h *Handler) SetToken(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthenticated", i18n.Text(lang(c), i18n.Unauthorized))
		return
	}

	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40002, "validation_error", i18n.Text(lang(c), i18n.InvalidJSON))
		return
	}

	u, err := h.Users.SetAccessToken(c.Request.Context(), p.UserID, req.AccessToken)
	if err != nil {
		respondError(c, err, i18n.TokenRequired)
		return
	}
	common.JSON(c, http.StatusOK, viewOf(u))
}
