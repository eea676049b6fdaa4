package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fulljjb/server/internal/handlers"
	"github.com/fulljjb/server/internal/service"
	"github.com/fulljjb/server/internal/ws"
)

type Deps struct {
	AuthHandler      *handlers.AuthHandler
	TechniqueHandler *handlers.TechniqueHandler
	ChatHandler      *handlers.ChatHandler
	Gateway          *ws.Gateway
	TokenService     *service.TokenService
	UploadDir        string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// Uploaded videos are served straight from the public directory,
	// clients only ever see the relative path.
	e.Static("/video", d.UploadDir)

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.GET("/confirm/:token", d.AuthHandler.ConfirmEmail)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh-token", d.AuthHandler.RefreshToken)

	authPrivate := auth.Group("", d.TokenService.AutoRefresh)
	authPrivate.POST("/logout", d.AuthHandler.Logout)
	authPrivate.GET("/whoami", d.AuthHandler.WhoAmI)
	authPrivate.GET("/users", d.AuthHandler.GetUsers)

	techniques := api.Group("/techniques")
	techniques.GET("", d.TechniqueHandler.GetTechniques)
	techniques.GET("/search", d.TechniqueHandler.SearchTechniques)
	techniques.GET("/:id", d.TechniqueHandler.GetTechnique)
	techniques.POST("", d.TechniqueHandler.CreateTechnique)
	techniques.PUT("/:id", d.TechniqueHandler.UpdateTechnique)
	techniques.DELETE("/:id", d.TechniqueHandler.DeleteTechnique)

	chat := api.Group("/chat", d.TokenService.AutoRefresh)
	chat.GET("/chat-messages", d.ChatHandler.GetMessages)
	chat.POST("/chat-messages", d.ChatHandler.CreateMessage)
	chat.DELETE("/chat-messages/:id", d.ChatHandler.DeleteMessage)

	e.GET("/ws", d.Gateway.Serve)
}
