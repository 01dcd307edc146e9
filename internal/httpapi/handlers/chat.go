package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/gopherchat/internal/chat"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/httpapi/middleware"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
)

type sendMessageReq struct {
	Message string `json:"message"`
}

// SendMessage authenticates inside the turn so that a missing session is
// reported before a missing message.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	// A body that does not bind leaves Message empty; the turn rejects it
	// after authentication.
	if err := c.ShouldBindJSON(&req); err != nil {
		zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("chat body did not bind")
	}

	res, err := h.Chat.Send(c.Request.Context(), chat.TurnRequest{
		Handle:  middleware.SessionHandle(c, h.Tokens, h.Cookie.Name),
		Message: req.Message,
		Lang:    lang(c),
	})
	if err != nil {
		if errors.Is(err, common.ErrUpstreamFailure) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "upstream_failure",
				"code":      50201,
				"message":   res.Content,
				"retryable": res.Retryable,
			})
			return
		}
		respondError(c, err, i18n.MessageRequired)
		return
	}

	common.JSON(c, http.StatusOK, gin.H{"message": res.Content})
}

func (h *Handler) ListMessages(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthenticated", i18n.Text(lang(c), i18n.Unauthorized))
		return
	}

	msgs, err := h.Chat.History(c.Request.Context(), p.Handle)
	if err != nil {
		respondError(c, err, "")
		return
	}
	common.JSON(c, http.StatusOK, msgs)
}
