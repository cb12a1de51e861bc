package server

import (
	"xprexx/internal/bootstrap"
	"xprexx/internal/handler"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, app *bootstrap.App) {
	//公開
	handler.NewTrackingHandler(app.Tracking).RegisterRoutes(e)
	handler.NewAuthHandler(app.Auth).RegisterRoutes(e, app.Cfg, app.Users)

	//顧客
	handler.NewShipmentHandler(app.Shipments).RegisterRoutes(e, app.Cfg, app.Users)

	//管理者
	handler.NewAdminShipmentHandler(app.Admin, app.Shipments).RegisterRoutes(e, app.Cfg, app.Users)
	handler.NewAdminUserHandler(app.Cfg, app.Users, app.Auth).RegisterRoutes(e)
}
