package handler

import (
	"net/http"

	"xprexx/internal/config"
	"xprexx/internal/middleware"
	"xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ShipmentCreateRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Weight      *float64 `json:"weight"`
	Dimensions  *string  `json:"dimensions"`
	Quantity    *int     `json:"quantity"`
	Volume      *float64 `json:"volume"`
	ServiceType string   `json:"service_type"`
	Term        *string  `json:"term"`

	SenderName    string `json:"sender_name"`
	SenderEmail   string `json:"sender_email"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverEmail string `json:"receiver_email"`

	// 管理者のみ
	OwnerUserID *int64 `json:"owner_user_id"`
}

func (r ShipmentCreateRequest) toInput() usecase.CreateShipmentInput {
	return usecase.CreateShipmentInput{
		Origin:        r.Origin,
		Destination:   r.Destination,
		Weight:        r.Weight,
		Dimensions:    r.Dimensions,
		Quantity:      r.Quantity,
		Volume:        r.Volume,
		ServiceType:   r.ServiceType,
		Term:          r.Term,
		SenderName:    r.SenderName,
		SenderEmail:   r.SenderEmail,
		ReceiverName:  r.ReceiverName,
		ReceiverEmail: r.ReceiverEmail,
		OwnerUserID:   r.OwnerUserID,
	}
}

// 顧客ダッシュボード（自分の配送）
type ShipmentHandler struct {
	uc *usecase.ShipmentUsecase
}

func NewShipmentHandler(uc *usecase.ShipmentUsecase) *ShipmentHandler {
	return &ShipmentHandler{uc: uc}
}

func (h *ShipmentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/shipments")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *ShipmentHandler) create(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ShipmentCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Create(c.Request().Context(), actor, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *ShipmentHandler) list(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, limit, err := parsePageLimit(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListMine(c.Request().Context(), actor, repository.ShipmentListFilter{
		Page:   page,
		Limit:  limit,
		Q:      c.QueryParam("q"),
		Status: c.QueryParam("status"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ShipmentHandler) detail(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetMine(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
