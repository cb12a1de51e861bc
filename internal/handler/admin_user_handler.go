package handler

import (
	"net/http"
	"strconv"

	"xprexx/internal/config"
	"xprexx/internal/middleware"
	"xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/labstack/echo/v4"
)

type UserActiveUpdateRequest struct {
	IsActive *bool `json:"is_active"`
}

type AdminUserHandler struct {
	cfg      config.Config
	userRepo repository.UserRepository
	uc       *usecase.AuthUsecase
}

func NewAdminUserHandler(cfg config.Config, userRepo repository.UserRepository, uc *usecase.AuthUsecase) *AdminUserHandler {
	return &AdminUserHandler{cfg: cfg, userRepo: userRepo, uc: uc}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo) {
	// ★ /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.GET("/users", h.list)
	admin.PUT("/users/:id/active", h.setActive)
	admin.POST("/users/:id/force-logout", h.forceLogout)
}

func (h *AdminUserHandler) list(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, limit, err := parsePageLimit(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListUsers(c.Request().Context(), actor, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminUserHandler) setActive(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
	}

	var req UserActiveUpdateRequest
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.SetUserActive(c.Request().Context(), actor, userID, *req.IsActive)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminUserHandler) forceLogout(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
	}

	res, err := h.uc.ForceLogout(c.Request().Context(), actor, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
