package handler

import (
	"net/http"

	"xprexx/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 公開の追跡API（ログイン不要）
type TrackingHandler struct {
	uc *usecase.TrackingUsecase
}

func NewTrackingHandler(uc *usecase.TrackingUsecase) *TrackingHandler {
	return &TrackingHandler{uc: uc}
}

func (h *TrackingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/tracking/:trackingNumber", h.track)
}

func (h *TrackingHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, SuccessResponse{Message: "ok"})
}

func (h *TrackingHandler) track(c echo.Context) error {
	out, found, err := h.uc.Lookup(c.Request().Context(), c.Param("trackingNumber"))
	if err != nil {
		return writeError(c, err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: usecase.MsgTrackingNotFound})
	}
	return c.JSON(http.StatusOK, out)
}
