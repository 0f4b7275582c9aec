package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/repository"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/service"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/logger"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc *service.Service
}

// RegisterDocumentRoutes mounts the document API on r. r must already run
// the auth middleware so middleware.UserID resolves the caller.
func RegisterDocumentRoutes(r gin.IRouter, svc *service.Service) {
	h := &Handler{svc: svc}

	r.POST("/api/documents", h.Upload)
	r.GET("/api/documents/search", h.Search)
	r.GET("/api/documents/:id", h.Get)
	r.DELETE("/api/documents/:id", h.PermanentlyDelete)
	r.PUT("/api/documents/:id/soft-delete", h.SoftDelete)
	r.PUT("/api/documents/:id/restore", h.Restore)
	r.GET("/api/documents/:id/preview", h.Preview)
	r.GET("/api/documents/:id/download", h.Download)
	r.PUT("/api/documents/:id/content", h.ReplaceContent)
	r.PUT("/api/documents/:id/metadata", h.UpdateMetadata)
	r.PUT("/api/documents/:id/tags", h.UpdateTags)
	r.PUT("/api/documents/:id/name", h.Rename)
	r.GET("/api/documents/:id/versions", h.History)
	r.POST("/api/documents/:id/versions/:version/restore", h.RestoreVersion)
	r.PUT("/api/documents/:id/grants", h.Grant)
	r.DELETE("/api/documents/:id/grants/:userId", h.Revoke)

	r.GET("/api/workspaces/:id/documents", h.ListByWorkspace)
	r.GET("/api/workspaces/:id/recycle-bin", h.RecycleBin)
}

func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("document request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", middleware.UserID(c)),
			zap.Error(err))
	}
	c.JSON(status, apperr.Body(err))
}

func badRequest(c *gin.Context, code, msg string) {
	fail(c, apperr.NewValidation(code, msg))
}

// multipartOverhead allows for boundaries and the form fields sent with the file.
const multipartOverhead = 1 << 20

// formFile reads the "file" field, refusing bodies over the upload limit
// before anything is buffered.
func (h *Handler) formFile(c *gin.Context) (*multipart.FileHeader, []byte, bool) {
	limit := h.svc.MaxUploadBytes()
	tooLarge := func() {
		badRequest(c, "file_too_large", fmt.Sprintf("file exceeds %d bytes", limit))
	}
	if limit > 0 {
		if c.Request.ContentLength > limit+multipartOverhead {
			tooLarge()
			return nil, nil, false
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			tooLarge()
			return nil, nil, false
		}
		badRequest(c, "missing_file", "multipart field 'file' is required")
		return nil, nil, false
	}
	if limit > 0 && fh.Size > limit {
		tooLarge()
		return nil, nil, false
	}
	data, err := readFile(fh)
	if err != nil {
		badRequest(c, "unreadable_file", "could not read uploaded file")
		return nil, nil, false
	}
	return fh, data, true
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Upload accepts multipart form fields file and workspaceId (name optional).
func (h *Handler) Upload(c *gin.Context) {
	fh, data, ok := h.formFile(c)
	if !ok {
		return
	}
	name := c.PostForm("name")
	if name == "" {
		name = fh.Filename
	}
	doc, err := h.svc.Upload(c.Request.Context(), middleware.UserID(c), service.UploadInput{
		WorkspaceID: c.PostForm("workspaceId"),
		Name:        name,
		MimeType:    fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) SoftDelete(c *gin.Context) {
	doc, err := h.svc.SoftDelete(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Restore(c *gin.Context) {
	doc, err := h.svc.Restore(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) PermanentlyDelete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.PermanentlyDelete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "message": "document permanently deleted"})
}

func (h *Handler) Preview(c *gin.Context) {
	p, err := h.svc.Preview(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Download(c *gin.Context) {
	out, err := h.svc.Download(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}))
	c.Data(http.StatusOK, out.MimeType, out.Data)
}

func (h *Handler) ReplaceContent(c *gin.Context) {
	fh, data, ok := h.formFile(c)
	if !ok {
		return
	}
	doc, err := h.svc.ReplaceContent(c.Request.Context(), c.Param("id"), middleware.UserID(c), data, fh.Header.Get("Content-Type"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) UpdateMetadata(c *gin.Context) {
	var req struct {
		Metadata *string  `json:"metadata"`
		Tags     []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}
	doc, err := h.svc.UpdateMetadata(c.Request.Context(), c.Param("id"), middleware.UserID(c), service.MetadataInput{
		Metadata: req.Metadata,
		Tags:     req.Tags,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) UpdateTags(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "tags array is required")
		return
	}
	doc, err := h.svc.UpdateTags(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Tags)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Rename(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_name", "name is required")
		return
	}
	doc, err := h.svc.Rename(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) History(c *gin.Context) {
	records, err := h.svc.History(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) RestoreVersion(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		badRequest(c, "invalid_version", "version must be an integer")
		return
	}
	doc, err := h.svc.RestoreVersion(c.Request.Context(), c.Param("id"), middleware.UserID(c), n)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Grant(c *gin.Context) {
	var req struct {
		UserID     string `json:"userId" binding:"required"`
		Permission string `json:"permission" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", "userId and permission are required")
		return
	}
	perm, ok := rbac.ParsePermission(req.Permission)
	if !ok {
		badRequest(c, "invalid_permission", "permission must be read, write or admin")
		return
	}
	doc, err := h.svc.GrantAccess(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.UserID, perm)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Revoke(c *gin.Context) {
	doc, err := h.svc.RevokeAccess(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Search reads ?metadata= and a comma-separated ?tags= list.
func (h *Handler) Search(c *gin.Context) {
	docs, err := h.svc.Search(c.Request.Context(), middleware.UserID(c), service.SearchInput{
		Metadata: c.Query("metadata"),
		Tags:     splitList(c.Query("tags")),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) ListByWorkspace(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	docs, err := h.svc.ListByWorkspace(c.Request.Context(), c.Param("id"), middleware.UserID(c), opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) RecycleBin(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	docs, err := h.svc.RecycleBin(c.Request.Context(), c.Param("id"), middleware.UserID(c), opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// listOptions maps query parameters; includeDeleted accepts true, false or only.
func listOptions(c *gin.Context) (service.ListOptions, error) {
	opts := service.ListOptions{SortBy: c.Query("sortBy"), Order: c.Query("order")}
	switch v := strings.ToLower(c.Query("includeDeleted")); v {
	case "", "false":
		opts.Deleted = repository.ExcludeDeleted
	case "true":
		opts.Deleted = repository.IncludeDeleted
	case "only":
		opts.Deleted = repository.OnlyDeleted
	default:
		opts.Deleted = repository.DeletedFilter(v)
	}
	var err error
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = queryInt(c, "offset"); err != nil {
		return opts, err
	}
	return opts, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.NewValidation("invalid_paging", key+" must be an integer")
	}
	return n, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
