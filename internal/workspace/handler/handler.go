package handler

import (
	"net/http"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/service"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/logger"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc *service.Service
}

// RegisterWorkspaceRoutes mounts workspace membership and analytics routes.
func RegisterWorkspaceRoutes(r gin.IRouter, svc *service.Service) {
	h := &Handler{svc: svc}

	r.POST("/api/workspaces", h.Create)
	r.GET("/api/workspaces", h.List)
	r.GET("/api/workspaces/:id", h.Get)
	r.PUT("/api/workspaces/:id", h.Update)
	r.DELETE("/api/workspaces/:id", h.Delete)
	r.POST("/api/workspaces/:id/collaborators", h.AddCollaborator)
	r.DELETE("/api/workspaces/:id/collaborators/:userId", h.RemoveCollaborator)
	r.GET("/api/workspaces/:id/role", h.Role)
	r.GET("/api/analytics", h.Analytics)
}

func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("workspace request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", middleware.UserID(c)),
			zap.Error(err))
	}
	c.JSON(status, apperr.Body(err))
}

func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Visibility  string `json:"visibility"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid_body", err.Error()))
		return
	}
	ws, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), service.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  workspace.Visibility(req.Visibility),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Get(c *gin.Context) {
	ws, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *Handler) Update(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Visibility  *string `json:"visibility"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid_body", err.Error()))
		return
	}
	in := service.UpdateInput{Name: req.Name, Description: req.Description}
	if req.Visibility != nil {
		v := workspace.Visibility(*req.Visibility)
		in.Visibility = &v
	}
	ws, err := h.svc.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.SoftDelete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "message": "workspace deleted"})
}

func (h *Handler) AddCollaborator(c *gin.Context) {
	var req struct {
		CollaboratorID string `json:"collaboratorId"`
		Role           string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid_body", err.Error()))
		return
	}
	ws, err := h.svc.AddCollaborator(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.CollaboratorID, rbac.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *Handler) RemoveCollaborator(c *gin.Context) {
	ws, err := h.svc.RemoveCollaborator(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// Role reports the caller's role and the document permission it implies.
func (h *Handler) Role(c *gin.Context) {
	id := c.Param("id")
	caller := middleware.UserID(c)
	a, err := h.svc.Access(c.Request.Context(), id, caller)
	if err != nil {
		fail(c, err)
		return
	}
	if !a.Found {
		fail(c, apperr.NewNotFound("workspace_not_found", "workspace not found"))
		return
	}
	perm := rbac.Level(a.Role)
	if perm == rbac.PermNone && a.Public {
		perm = rbac.PermRead
	}
	c.JSON(http.StatusOK, gin.H{
		"workspaceId": id,
		"userId":      caller,
		"role":        a.Role,
		"permission":  perm.String(),
	})
}

func (h *Handler) Analytics(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
