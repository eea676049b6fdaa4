package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/logging"
	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/tokens"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway authenticates and upgrades socket connections. The handshake
// is checked once at connect time; a connection that outlives its
// access token is never re-challenged.
type Gateway struct {
	Hub    *Hub
	DB     *gorm.DB
	Tokens *tokens.Service
	Chat   ChatHandler
}

// Serve handles GET /ws?token=...&refreshToken=... The handshake
// mirrors the HTTP auth gate: a valid access token is accepted as-is,
// an expired one is refreshed through the refresh token and the
// replacement pushed to the client as a new_token event.
func (g *Gateway) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("component", "ws_gateway")

	token := c.QueryParam("token")
	refreshToken := c.QueryParam("refreshToken")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}

	claims, err := g.Tokens.VerifyAccess(token)
	newToken := ""
	if err != nil {
		if !errors.Is(err, tokens.ErrExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		if refreshToken == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "no refresh token provided")
		}
		refreshClaims, rErr := g.Tokens.VerifyRefresh(refreshToken)
		if rErr != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		var user models.User
		if dbErr := g.DB.First(&user, refreshClaims.UserID).Error; dbErr != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
		}
		minted, mErr := g.Tokens.IssueAccess(&user)
		if mErr != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot issue token")
		}
		newToken = minted
		claims = refreshClaims
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}

	client := &Client{
		id:     g.Hub.nextID.Add(1),
		hub:    g.Hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
		chat:   g.Chat,
	}

	if newToken != "" {
		raw, _ := json.Marshal(newToken)
		if b, mErr := json.Marshal(Envelope{Event: "new_token", Data: raw}); mErr == nil {
			client.send <- b
		}
	}

	g.Hub.register <- client
	l.Info("client connected", "conn_id", client.id, "user_id", client.userID)

	go client.writePump()
	client.readPump()
	return nil
}
