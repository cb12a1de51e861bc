package handler

import (
	"net/http"
	"strconv"

	"xprexx/internal/domain/model"
	"xprexx/internal/middleware"
	"xprexx/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 503のときに返すRetry-After（秒）
const retryAfterSeconds = "5"

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", retryAfterSeconds)
		}
		if he.Status >= http.StatusInternalServerError {
			// 元エラーはRequestLoggerに渡す
			c.Set(middleware.CtxHandlerErrorKey, he.Err)
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// middleware.AuthJWT が入れた user_id / role を取り出す
func getActorFromContext(c echo.Context) (model.Actor, bool) {
	return middleware.ActorFromContext(c)
}

// page / limit（未指定は0 = usecase側の既定値）
func parsePageLimit(c echo.Context) (int, int, error) {
	page := 0
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid page")
		}
		page = p
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = l
	}
	return page, limit, nil
}
