package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"xprexx/internal/config"
	"xprexx/internal/domain/model"
	"xprexx/internal/middleware"
	"xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ShipmentStatusUpdateRequest struct {
	Status      string  `json:"status"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

type PaymentStatusUpdateRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// /admin/shipments, /admin/overview, /admin/audit-logs
type AdminShipmentHandler struct {
	uc         *usecase.AdminShipmentUsecase
	shipmentUC *usecase.ShipmentUsecase
}

func NewAdminShipmentHandler(uc *usecase.AdminShipmentUsecase, shipmentUC *usecase.ShipmentUsecase) *AdminShipmentHandler {
	return &AdminShipmentHandler{uc: uc, shipmentUC: shipmentUC}
}

func (h *AdminShipmentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/overview", h.overview)
	admin.GET("/audit-logs", h.auditLogs)

	admin.GET("/shipments", h.list)
	admin.POST("/shipments", h.create)
	admin.GET("/shipments/export", h.exportCSV)
	admin.POST("/shipments/export", h.uploadExport)
	admin.GET("/shipments/:id", h.detail)
	admin.PUT("/shipments/:id/status", h.updateStatus)
	admin.POST("/shipments/:id/pause-toggle", h.togglePause)
	admin.PUT("/shipments/:id/payment-status", h.updatePaymentStatus)
}

func (h *AdminShipmentHandler) overview(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Overview(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) list(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	f, err := parseAdminShipmentFilter(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.List(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) create(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ShipmentCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.shipmentUC.Create(c.Request().Context(), actor, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminShipmentHandler) detail(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) updateStatus(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ShipmentStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.TransitionStatus(c.Request().Context(), actor, c.Param("id"), usecase.TransitionStatusInput{
		Status:      req.Status,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) togglePause(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.TogglePause(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) updatePaymentStatus(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PaymentStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.SetPaymentStatus(c.Request().Context(), actor, c.Param("id"), req.PaymentStatus)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) exportCSV(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	f, err := parseAdminShipmentFilter(c)
	if err != nil {
		return writeError(c, err)
	}

	var buf bytes.Buffer
	if _, err := h.uc.ExportCSV(c.Request().Context(), actor, f, &buf); err != nil {
		return writeError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "shipments.csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *AdminShipmentHandler) uploadExport(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	f, err := parseAdminShipmentFilter(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UploadExport(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminShipmentHandler) auditLogs(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var f repository.AuditLogFilter
	if v := c.QueryParam("resource_id"); v != "" {
		f.ResourceID = &v
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		f.Limit = l
	}
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		f.Offset = o
	}

	out, err := h.uc.AuditLogs(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func parseAdminShipmentFilter(c echo.Context) (repository.ShipmentListFilter, error) {
	page, limit, err := parsePageLimit(c)
	if err != nil {
		return repository.ShipmentListFilter{}, err
	}

	f := repository.ShipmentListFilter{
		Page:          page,
		Limit:         limit,
		Q:             c.QueryParam("q"),
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
	}
	if v := c.QueryParam("paused"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return repository.ShipmentListFilter{}, usecase.NewHTTPError(http.StatusBadRequest, "invalid paused")
		}
		f.Paused = &b
	}
	return f, nil
}
