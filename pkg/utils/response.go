package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/workflow"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/types"
)

type HTTPResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int, total ...uint64) error {
	response := &HTTPResponse{Status: true, Message: message}
	withPagination, _ := strconv.ParseBool(ctx.QueryParam("withPagination"))
	if withPagination && len(total) > 0 {
		filter := ParseFilterFromQuery(ctx.Request().URL.Query())
		response.Body = map[string]interface{}{
			"list":       body,
			"pagination": types.NewPagination(total[0], filter.Page, filter.Limit),
		}
	} else {
		response.Body = body
	}
	return ctx.JSON(code, response)
}

// ErrorResponse превращает любую ошибку в одно сообщение для пользователя.
func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		if httpErr.Err != nil {
			logger.Warn("HTTP Error",
				zap.Int("code", httpErr.Code),
				zap.String("message", httpErr.Message),
				zap.Error(httpErr.Err),
				zap.Any("context", httpErr.Context),
			)
		}
		response := map[string]interface{}{
			"status":  false,
			"message": httpErr.Message,
		}
		if httpErr.Details != nil {
			response["body"] = httpErr.Details
		}
		return c.JSON(httpErr.Code, response)
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return c.JSON(echoErr.Code, map[string]interface{}{"status": false, "message": fmt.Sprint(echoErr.Message)})
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var msgs []string
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("Поле '%s' не прошло проверку '%s'", e.Field(), e.Tag()))
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": false, "message": "Ошибка валидации: " + strings.Join(msgs, "; ")})
	}

	var invalidInput *apperrors.InvalidInputError
	if errors.As(err, &invalidInput) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": false, "message": invalidInput.Message})
	}

	if code, ok := statusForSentinel(err); ok {
		return c.JSON(code, map[string]interface{}{"status": false, "message": err.Error()})
	}

	logger.Error("Unexpected Error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"status":  false,
		"message": "Внутренняя ошибка сервера",
	})
}

func statusForSentinel(err error) (int, bool) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, apperrors.ErrUnauthorized),
		errors.Is(err, apperrors.ErrEmptyAuthHeader),
		errors.Is(err, apperrors.ErrInvalidAuthHeader),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrTokenIsNotAccess),
		errors.Is(err, apperrors.ErrInvalidSigningMethod),
		errors.Is(err, apperrors.ErrUserIDNotFoundInContext):
		return http.StatusUnauthorized, true
	case errors.Is(err, apperrors.ErrForbidden),
		errors.Is(err, apperrors.ErrNotAssignedTechnician):
		return http.StatusForbidden, true
	case errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrSweepInProgress),
		errors.Is(err, apperrors.ErrTechnicianNotAvailable),
		errors.Is(err, workflow.ErrIllegalTransition):
		return http.StatusConflict, true
	}
	return 0, false
}
