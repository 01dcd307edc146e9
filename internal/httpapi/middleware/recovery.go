package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				lang := i18n.Match(c.GetHeader("Accept-Language"))
				common.Fail(c, http.StatusInternalServerError, 50000, "internal", i18n.Text(lang, i18n.Internal))
			}
		}()
		c.Next()
	}
}
