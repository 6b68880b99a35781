package utils

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/contextkeys"
	apperrors "maintenance-system/pkg/errors"
)

// Actor - тот, кто выполняет запрос: ID пользователя и его роль.
type Actor struct {
	UserID uint64
	Role   constants.Role
}

func (a Actor) Is(role constants.Role) bool { return a.Role == role }

func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = context.WithValue(ctx, contextkeys.UserIDKey, actor.UserID)
	return context.WithValue(ctx, contextkeys.UserRoleKey, actor.Role)
}

func GetActorFromCtx(ctx context.Context) (Actor, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return Actor{}, apperrors.ErrUserIDNotFoundInContext
	}
	role, ok := ctx.Value(contextkeys.UserRoleKey).(constants.Role)
	if !ok || !role.IsValid() {
		return Actor{}, apperrors.ErrUnauthorized
	}
	return Actor{UserID: userID, Role: role}, nil
}

// ParseIDParam читает числовой параметр пути (":id").
func ParseIDParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewBadRequestError("Некорректный ID: " + c.Param(name))
	}
	return id, nil
}
