package handler

import (
	"net/http"

	"console/internal/middleware"
	"console/internal/permission"
	"console/internal/service"
	"console/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	permService service.PermissionService
	auth        *middleware.Auth
}

func NewPermissionHandler(permService service.PermissionService, auth *middleware.Auth) *PermissionHandler {
	return &PermissionHandler{permService: permService, auth: auth}
}

func (h *PermissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := h.auth.RequireRole(service.AdminRole)

	router.GET("/api/modules", admin, h.ListModules)
	router.GET("/api/roles/:id/permissions", admin, h.GetRolePermissions)
	router.POST("/api/roles/:id/permissions", admin, h.UpdateRolePermissions)
	router.PUT("/api/roles/:id/permissions", admin, h.UpdateRolePermissions)

	// Lets module services and front ends ask whether the caller holds a permission.
	router.GET("/api/access/:module/:kind", h.auth.RequirePermissionFrom(func(c *gin.Context) []string {
		return []string{permission.Code(c.Param("module"), permission.Kind(c.Param("kind")))}
	}), h.CheckAccess)
}

// ListModules returns every module permissions can be granted on
// @Summary      List modules
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.ModuleResponse}
// @Router       /api/modules [get]
func (h *PermissionHandler) ListModules(c *gin.Context) {
	modules, err := h.permService.ListModules(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modules))
}

// GetRolePermissions returns the role's grants grouped by module
// @Summary      Get role permissions
// @Description  Modules without any granted kind are omitted.
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=[]permission.Grant}
// @Failure      404  {object}  response.Response
// @Router       /api/roles/{id}/permissions [get]
func (h *PermissionHandler) GetRolePermissions(c *gin.Context) {
	grants, err := h.permService.RolePermissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grants))
}

// UpdateRolePermissions replaces all permissions for a role
// @Summary      Replace role permissions
// @Description  The payload is the role's complete permission set. A module sent with [""] has nothing granted.
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                true  "Role ID"
// @Param        payload  body      service.UpdateRolePermissionsRequest  true  "Permission set"
// @Success      200      {object}  response.Response{data=[]permission.Grant}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/roles/{id}/permissions [post]
func (h *PermissionHandler) UpdateRolePermissions(c *gin.Context) {
	var req service.UpdateRolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	grants, err := h.permService.UpdateRolePermissions(c.Request.Context(), c.GetString(middleware.KeyUserID), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, grants))
}

// CheckAccess answers 200 when the caller's role holds <module>.<kind>
// @Summary      Check access
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        module  path      string  true  "Module name"
// @Param        kind    path      string  true  "view, create, edit or delete"
// @Success      200     {object}  response.Response
// @Failure      403     {object}  response.Response
// @Router       /api/access/{module}/{kind} [get]
func (h *PermissionHandler) CheckAccess(c *gin.Context) {
	code := permission.Code(c.Param("module"), permission.Kind(c.Param("kind")))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"code": code, "allowed": true}))
}
