package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/config"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/oidc"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/sessions"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/tokens"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/users"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/logger"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// LoginRequest used for password-mode login (dev/testing) and auth-code exchange
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required"` // "password" | "auth_code"
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	idTokens    middleware.Verifier
	revocations *sessions.Revocations
}

// NewAuthHandler wires the login flow. idTokens verifies identity provider
// ID tokens; revocations may be nil when Redis is not configured.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, idTokens middleware.Verifier, revocations *sessions.Revocations) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, idTokens: idTokens, revocations: revocations}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg gin.IRouter) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// RegisterProtected mounts the routes that need an authenticated caller.
func (h *AuthHandler) RegisterProtected(rg gin.IRouter) {
	rg.GET("/api/v1/me", h.Me)
	rg.GET("/api/users/search", h.SearchUsers)
}

func (h *AuthHandler) oauth2Config(redirectURI string) *oauth2.Config {
	issuer := oidc.IssuerURL(h.cfg.Keycloak.URL, h.cfg.Keycloak.Realm)
	return &oauth2.Config{
		ClientID:     h.cfg.Keycloak.ClientID,
		ClientSecret: h.cfg.Keycloak.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"openid", "profile", "email"},
		// AuthStyleAutoDetect tries client_secret_basic first and falls back to
		// client_secret_post, which covers both Keycloak client settings.
		Endpoint: oauth2.Endpoint{
			AuthURL:  issuer + "/protocol/openid-connect/auth",
			TokenURL: issuer + "/protocol/openid-connect/token",
		},
	}
}

// Login exchanges credentials or an authorization code at the identity
// provider, upserts the user and issues our own access and refresh tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": err.Error()})
		return
	}
	if h.cfg.Keycloak.URL == "" || h.cfg.Keycloak.Realm == "" || h.idTokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idp_unavailable", "message": "identity provider not configured"})
		return
	}
	ctx := c.Request.Context()

	var tok *oauth2.Token
	var err error
	switch req.Mode {
	case "password":
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "username and password required for password mode"})
			return
		}
		tok, err = h.oauth2Config("").PasswordCredentialsToken(ctx, req.Username, req.Password)
	case "auth_code":
		if req.Code == "" || req.RedirectURI == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "code and redirect_uri required for auth_code mode"})
			return
		}
		logger.Debugf("Login(auth_code): received code length=%d redirect_uri=%s", len(req.Code), req.RedirectURI)
		tok, err = h.oauth2Config(req.RedirectURI).Exchange(ctx, req.Code)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "unsupported mode"})
		return
	}
	if err != nil {
		logger.L().Warn("token exchange failed", zap.String("mode", req.Mode), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed", "message": "authentication failed"})
		return
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_id_token", "message": "identity provider returned no id_token"})
		return
	}
	idt, err := h.idTokens.Verify(ctx, rawID)
	if err != nil {
		logger.L().Warn("id token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_id_token", "message": "invalid id token"})
		return
	}
	var claims map[string]interface{}
	if err := idt.Claims(&claims); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_id_token", "message": "failed to parse claims"})
		return
	}

	u, err := h.usersSvc.UpsertFromClaims(ctx, claims)
	if err != nil {
		if errors.Is(err, users.ErrMissingSubject) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_id_token", "message": "id token has no subject"})
			return
		}
		logger.L().Error("user upsert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "user upsert failed"})
		return
	}

	h.issue(c, u, "")
}

// issue answers with a fresh access token and either the supplied refresh
// token or a newly created session.
func (h *AuthHandler) issue(c *gin.Context, u *users.User, refresh string) {
	if refresh == "" {
		var err error
		refresh, err = h.sessionsSvc.CreateSession(c.Request.Context(), u.Sub, h.cfg.JWT.RefreshTokenTTL)
		if err != nil {
			logger.L().Error("failed to create session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "failed to create session"})
			return
		}
	}
	access, err := tokens.GenerateAccessToken(h.cfg.JWT.Secret, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         u,
		"expiresIn":    int(h.cfg.JWT.AccessTokenTTL.Seconds()),
	})
}

// Refresh rotates the refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": err.Error()})
		return
	}
	ctx := c.Request.Context()
	sess, next, err := h.sessionsSvc.Rotate(ctx, req.RefreshToken, h.cfg.JWT.RefreshTokenTTL)
	if errors.Is(err, sessions.ErrInvalidRefresh) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh", "message": "invalid refresh token"})
		return
	}
	if err != nil {
		logger.L().Error("refresh rotation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "validation failed"})
		return
	}
	u, err := h.usersSvc.GetBySub(ctx, sess.UserID)
	if err != nil {
		logger.L().Error("user lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "user lookup failed"})
		return
	}
	h.issue(c, u, next)
}

// Logout drops the refresh session and revokes the presented access token
// for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if at, ok := middleware.BearerToken(c); ok {
		if exp, err := tokens.ExpiresAt(at); err == nil {
			if ttl := time.Until(exp); ttl > 0 {
				if err := h.revocations.Revoke(ctx, at, ttl); err != nil {
					logger.L().Error("failed to revoke access token", zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "failed to revoke access token"})
					return
				}
			}
		}
	}
	if err := h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the stored profile, falling back to the token claims when the
// user has never logged in through /auth/login.
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.usersSvc.GetBySub(c.Request.Context(), middleware.UserID(c))
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"user": u})
		return
	}
	if !errors.Is(err, users.ErrNotFound) {
		logger.L().Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "user lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": middleware.Claims(c)})
}

// SearchUsers backs the collaborator picker: ?q=<prefix>&limit=<n>.
func (h *AuthHandler) SearchUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	found, err := h.usersSvc.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logger.L().Error("user search failed", zap.Error(err))
		}
		c.JSON(status, apperr.Body(err))
		return
	}
	c.JSON(http.StatusOK, found)
}
