package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the API description.
// - GET /swagger/index.html  -> Swagger UI page loading the JSON below
// - GET /swagger/doc.json    -> OpenAPI 3 document
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docvault API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docvault", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "message": {"type":"string"} } },
      "Document": { "type": "object", "properties": {
        "id": {"type":"string"}, "name": {"type":"string"}, "mimeType": {"type":"string"}, "size": {"type":"integer"},
        "ownerId": {"type":"string"}, "workspaceId": {"type":"string"}, "metadata": {"type":"string"},
        "tags": {"type":"array","items":{"type":"string"}}, "version": {"type":"integer"},
        "deleted": {"type":"boolean"}, "deletedAt": {"type":"string","format":"date-time"} } },
      "Workspace": { "type": "object", "properties": {
        "id": {"type":"string"}, "name": {"type":"string"}, "description": {"type":"string"},
        "visibility": {"type":"string","enum":["private","public"]}, "ownerId": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/documents": {
      "post": { "summary": "Upload a document (multipart: file, workspaceId, name)", "responses": { "201": {"description":"created"}, "400": {"description":"validation"}, "403": {"description":"forbidden"}, "404": {"description":"workspace not found"}, "409": {"description":"duplicate name"} } }
    },
    "/api/documents/search": {
      "get": { "summary": "Search readable documents by metadata and tags", "parameters": [ {"name":"metadata","in":"query","schema":{"type":"string"}}, {"name":"tags","in":"query","schema":{"type":"string"}} ], "responses": { "200": {"description":"documents"}, "404": {"description":"no documents"} } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document", "responses": { "200": {"description":"document"}, "403": {"description":"forbidden"}, "404": {"description":"not found"} } },
      "delete": { "summary": "Permanently delete a recycled document", "responses": { "200": {"description":"deleted"}, "409": {"description":"not in recycle bin"}, "502": {"description":"blob store failure"} } }
    },
    "/api/documents/{id}/soft-delete": { "put": { "summary": "Move to recycle bin", "responses": { "200": {"description":"document"} } } },
    "/api/documents/{id}/restore": { "put": { "summary": "Restore from recycle bin", "responses": { "200": {"description":"document"}, "409": {"description":"name conflict or not recycled"} } } },
    "/api/documents/{id}/preview": { "get": { "summary": "Preview descriptor", "responses": { "200": {"description":"preview"} } } },
    "/api/documents/{id}/download": { "get": { "summary": "Download content", "responses": { "200": {"description":"file bytes"} } } },
    "/api/documents/{id}/content": { "put": { "summary": "Replace content (multipart: file)", "responses": { "200": {"description":"document"} } } },
    "/api/documents/{id}/metadata": { "put": { "summary": "Update metadata and tags", "responses": { "200": {"description":"document"} } } },
    "/api/documents/{id}/tags": { "put": { "summary": "Replace tags", "responses": { "200": {"description":"document"} } } },
    "/api/documents/{id}/name": { "put": { "summary": "Rename", "responses": { "200": {"description":"document"}, "409": {"description":"duplicate name"} } } },
    "/api/documents/{id}/versions": { "get": { "summary": "Version history", "responses": { "200": {"description":"version records"} } } },
    "/api/documents/{id}/versions/{version}/restore": { "post": { "summary": "Restore a historical version", "responses": { "200": {"description":"document"}, "404": {"description":"version not found"} } } },
    "/api/documents/{id}/grants": { "put": { "summary": "Grant access {userId, permission}", "responses": { "200": {"description":"document"} } } },
    "/api/documents/{id}/grants/{userId}": { "delete": { "summary": "Revoke access", "responses": { "200": {"description":"document"} } } },
    "/api/workspaces": {
      "post": { "summary": "Create workspace", "responses": { "201": {"description":"workspace"}, "409": {"description":"name taken"} } },
      "get": { "summary": "List workspaces the caller belongs to", "responses": { "200": {"description":"workspaces"} } }
    },
    "/api/workspaces/{id}": {
      "get": { "summary": "Get workspace", "responses": { "200": {"description":"workspace"} } },
      "put": { "summary": "Update workspace", "responses": { "200": {"description":"workspace"} } },
      "delete": { "summary": "Delete workspace", "responses": { "200": {"description":"deleted"} } }
    },
    "/api/workspaces/{id}/collaborators": { "post": { "summary": "Add collaborator {collaboratorId, role}", "responses": { "200": {"description":"workspace"} } } },
    "/api/workspaces/{id}/collaborators/{userId}": { "delete": { "summary": "Remove collaborator", "responses": { "200": {"description":"workspace"} } } },
    "/api/workspaces/{id}/role": { "get": { "summary": "Caller's role and permission", "responses": { "200": {"description":"role"} } } },
    "/api/workspaces/{id}/documents": { "get": { "summary": "List documents (sortBy, order, includeDeleted, limit, offset)", "responses": { "200": {"description":"documents"} } } },
    "/api/workspaces/{id}/recycle-bin": { "get": { "summary": "Recycled documents", "responses": { "200": {"description":"documents"} } } },
    "/api/analytics": { "get": { "summary": "Workspace and document totals", "responses": { "200": {"description":"stats"} } } },
    "/auth/login": {
      "post": {
        "summary": "Password or authorization code login",
        "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"mode":{"type":"string"},"username":{"type":"string"},"password":{"type":"string"},"code":{"type":"string"},"redirect_uri":{"type":"string"}}}}}},
        "responses": { "200": { "description": "tokens returned" }, "401": { "description": "authentication failed" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Rotate refresh token", "security": [], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new tokens" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Revoke refresh token and current access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/me": { "get": { "summary": "Current user", "responses": { "200": { "description": "user or claims" } } } },
    "/api/users/search": { "get": { "summary": "Find users by name or email prefix", "parameters": [ {"name":"q","in":"query","required":true,"schema":{"type":"string"}} ], "responses": { "200": { "description": "users" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
