package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fulljjb/server/internal/service"
)

type ChatHandler struct {
	Chat *service.ChatService
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	messages, err := h.Chat.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("failed to fetch chat messages"))
	}
	return c.JSON(http.StatusOK, echo.Map{"Status": "Success", "Messages": messages})
}

func (h *ChatHandler) CreateMessage(c echo.Context) error {
	claims, err := service.IdentityFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody("not authenticated"))
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	dto, err := h.Chat.Create(c.Request().Context(), claims.UserID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			return c.JSON(http.StatusBadRequest, errorBody("message is required"))
		case errors.Is(err, service.ErrSenderNotFound):
			return c.JSON(http.StatusNotFound, errorBody("sender not found"))
		default:
			return c.JSON(http.StatusInternalServerError, errorBody("failed to send chat message"))
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"Status": "Success", "Message": dto})
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid id"))
	}

	if err := h.Chat.Delete(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("message not found"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("failed to delete chat message"))
	}

	return c.JSON(http.StatusOK, successBody("message deleted"))
}
