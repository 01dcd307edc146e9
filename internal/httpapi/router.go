package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/gopherchat/internal/httpapi/middleware"
	"github.com/suPer8Hu/gopherchat/internal/i18n"
)

// Options carries the router settings that are not part of the handler.
type Options struct {
	AllowedOrigins []string
}

func NewRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type", "Accept-Language", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		lang := i18n.Match(c.GetHeader("Accept-Language"))
		common.Fail(c, http.StatusNotFound, 40400, "not_found", i18n.Text(lang, i18n.RouteNotFound))
	})
	r.NoMethod(func(c *gin.Context) {
		lang := i18n.Match(c.GetHeader("Accept-Language"))
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method_not_allowed", i18n.Text(lang, i18n.MethodNotAllowed))
	})

	r.GET("/ping", h.Ping)
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	// chat authenticates inside the turn
	api.POST("/chat", h.SendMessage)

	authed := api.Group("/")
	authed.Use(middleware.SessionRequired(h.Sessions, h.Tokens, h.Cookie.Name))
	authed.GET("/profile", h.Profile)
	authed.POST("/token", h.SetToken)
	authed.GET("/messages", h.ListMessages)
	return r
}
