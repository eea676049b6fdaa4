package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/events"
	"github.com/fulljjb/server/internal/hash"
	"github.com/fulljjb/server/internal/logging"
	"github.com/fulljjb/server/internal/mail"
	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/service"
	"github.com/fulljjb/server/internal/tokens"
)

type AuthHandler struct {
	DB          *gorm.DB
	Tokens      *tokens.Service
	Mailer      mail.Mailer
	Producer    *events.Producer
	FrontendURL string
	Secure      bool
}

type userSummary struct {
	Name string `json:"name"`
	ID   uint   `json:"id"`
	Role string `json:"role"`
}

// Register creates an unconfirmed account, emails the confirmation
// link and answers with the token pair. A mail failure surfaces as a
// 500 but the created row is kept; retrying the registration then
// reports the duplicate email.
func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return c.JSON(http.StatusBadRequest, errorBody("this email is already in use"))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error registering user"))
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error registering user"))
	}

	user := models.User{
		Name:      req.Name,
		Email:     req.Email,
		Password:  pwHash,
		Confirmed: false,
		Role:      "user",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Error("register failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error registering user"))
	}

	// The access token doubles as the confirmation link payload.
	token, err := h.Tokens.IssueAccess(&user)
	if err != nil {
		l.Error("register failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error registering user"))
	}
	refreshToken, err := h.Tokens.IssueRefresh(&user)
	if err != nil {
		l.Error("register failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error registering user"))
	}

	link := fmt.Sprintf("%s/confirm/%s", h.FrontendURL, token)
	if err := h.Mailer.SendConfirmation(user.Email, user.Name, link); err != nil {
		l.Error("confirmation mail failed", "user_id", user.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error registering user"))
	}

	h.publish(c, map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("user registered", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"Status":       "Success",
		"Message":      "A verification email has been sent to your address. Please confirm your registration.",
		"token":        token,
		"refreshToken": refreshToken,
	})
}

// ConfirmEmail flips the confirmed flag for the user named by the
// emailed token. Confirming twice is not an error.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_confirm")

	claims, err := h.Tokens.VerifyAccess(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid token"))
	}

	var user models.User
	err = h.DB.Where("id = ? AND email = ?", claims.UserID, claims.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusBadRequest, errorBody("user not found"))
		}
		l.Error("confirm failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error confirming email"))
	}

	if user.Confirmed {
		return c.JSON(http.StatusOK, Response{Status: "AlreadyConfirmed", Message: "email already confirmed"})
	}

	user.Confirmed = true
	if err := h.DB.Save(&user).Error; err != nil {
		l.Error("confirm failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error confirming email"))
	}

	l.Info("email confirmed", "user_id", user.ID)
	return c.JSON(http.StatusOK, successBody("email confirmed, you can now log in"))
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody("invalid email or password"))
	}

	if !hash.CheckPassword(user.Password, req.Password) {
		return c.JSON(http.StatusUnauthorized, errorBody("invalid email or password"))
	}

	if !user.Confirmed {
		return c.JSON(http.StatusUnauthorized, errorBody("your email has not been confirmed, please check your inbox"))
	}

	token, err := h.Tokens.IssueAccess(&user)
	if err != nil {
		l.Error("login failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error logging in"))
	}
	refreshToken, err := h.Tokens.IssueRefresh(&user)
	if err != nil {
		l.Error("login failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error logging in"))
	}

	c.SetCookie(service.CreateCookie("token", token, "/", time.Now().Add(h.Tokens.AccessTTL), h.Secure))
	c.SetCookie(service.CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(h.Tokens.RefreshTTL), h.Secure))

	h.publish(c, map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("login successful", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"Status":       "Success",
		"Message":      "login successful",
		"user":         userSummary{Name: user.Name, ID: user.ID, Role: user.Role},
		"token":        token,
		"refreshToken": refreshToken,
	})
}

// Logout clears both cookies unconditionally.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(service.DeleteCookie("token", "/", h.Secure))
	c.SetCookie(service.DeleteCookie("refreshToken", "/", h.Secure))
	return c.JSON(http.StatusOK, successBody("logout successful"))
}

// RefreshToken is the explicit, client-initiated variant of the
// transparent refresh the auth gate performs.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil || refreshCookie.Value == "" {
		return c.JSON(http.StatusForbidden, errorBody("access denied, token missing"))
	}

	claims, err := h.Tokens.VerifyRefresh(refreshCookie.Value)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody("invalid token"))
	}

	identity := claims.Identity()
	token, err := h.Tokens.IssueAccess(&identity)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("cannot issue token"))
	}

	c.SetCookie(service.CreateCookie("token", token, "/", time.Now().Add(h.Tokens.AccessTTL), h.Secure))
	return c.JSON(http.StatusOK, echo.Map{
		"Status":  "Success",
		"Message": "token refreshed",
		"token":   token,
	})
}

// WhoAmI re-fetches the full user record for the authenticated
// identity; clients use it to rehydrate session state after reload.
func (h *AuthHandler) WhoAmI(c echo.Context) error {
	claims, err := service.IdentityFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody("not authenticated"))
	}

	var user models.User
	if err := h.DB.First(&user, claims.UserID).Error; err != nil {
		return c.JSON(http.StatusNotFound, errorBody("user not found"))
	}

	return c.JSON(http.StatusOK, echo.Map{"Status": "Success", "User": user})
}

func (h *AuthHandler) GetUsers(c echo.Context) error {
	var users []userListEntry
	if err := h.DB.Model(&models.User{}).Select("id", "name", "email", "role").Find(&users).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("failed to fetch users"))
	}
	return c.JSON(http.StatusOK, echo.Map{"Status": "Success", "Users": users})
}

type userListEntry struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *AuthHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
