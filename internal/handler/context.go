package handler

import (
	"github.com/labstack/echo/v4"

	"rescueboard/internal/auth"
	apperrors "rescueboard/internal/errors"
	"rescueboard/internal/model"
)

// Context keys set by the authentication middleware.
const (
	ContextKeyClaims = "claims"
	ContextKeyUser   = "currentUser"
)

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

func currentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(ContextKeyUser).(*model.User)
	if !ok || user == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return user, nil
}

func currentClaims(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(ContextKeyClaims).(*auth.Claims)
	if !ok || claims == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return claims, nil
}
