// Package app wires configuration, backing stores and services into the
// HTTP router shared by the API binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/handlers"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/config"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/database"
	dochandler "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/handler"
	docrepo "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/repository"
	docservice "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/service"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/oidc"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/sessions"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/storage"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/tokens"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/users"
	wshandler "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/handler"
	wsrepo "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/repository"
	wsservice "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/service"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/metrics"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const mongoAttempts = 5

type pinger func(ctx context.Context) error

// App holds the constructed services. Close releases the connections it opened.
type App struct {
	Config      *config.Config
	Log         *zap.Logger
	Users       *users.Service
	Sessions    *sessions.Service
	Revocations *sessions.Revocations
	Workspaces  *wsservice.Service
	Documents   *docservice.Service
	// IDTokens verifies identity provider ID tokens at login; nil disables /auth/login.
	IDTokens middleware.Verifier
	Registry *prometheus.Registry

	redis   *redis.Client
	mongo   *mongo.Client
	deps    map[string]pinger
	started time.Time
}

// New connects the configured backends, falling back to in-memory stores for
// whatever is not configured.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log, deps: map[string]pinger{}, started: time.Now()}

	if cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, continuing without it", zap.String("host", cfg.Redis.Host), zap.Error(err))
			_ = rc.Close()
		} else {
			a.redis = rc
			a.deps["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
			log.Info("connected to redis", zap.String("host", cfg.Redis.Host))
		}
	}
	a.Revocations = sessions.NewRevocations(a.redis)

	var (
		userRepo    users.UserRepository = users.NewMemoryUserRepository()
		sessionRepo sessions.Repository  = sessions.NewMemoryRepository()
		wsRepo      wsrepo.Repository    = wsrepo.NewMemoryRepo()
		docRepo     docrepo.Repository   = docrepo.NewMemoryRepo()
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoAttempts, log)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("mongo: %w", err)
		}
		a.mongo = client
		a.deps["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

		db := client.Database(cfg.MongoDB.Database)
		mu := users.NewMongoUserRepository(db)
		ms := sessions.NewMongoRepository(db)
		mw := wsrepo.NewMongoRepo(db)
		md := docrepo.NewMongoRepo(db)
		for name, ensure := range map[string]func(context.Context) error{
			"users":      mu.EnsureIndexes,
			"sessions":   ms.EnsureIndexes,
			"workspaces": mw.EnsureIndexes,
			"documents":  md.EnsureIndexes,
		} {
			if err := ensure(ctx); err != nil {
				log.Warn("index creation failed", zap.String("collection", name), zap.Error(err))
			}
		}
		userRepo, sessionRepo, wsRepo, docRepo = mu, ms, mw, md
		log.Info("using mongodb repositories", zap.String("database", cfg.MongoDB.Database))
	}
	if a.redis != nil {
		sessionRepo = sessions.NewRedisRepository(a.redis, "docvault:session:")
	}

	var blobs storage.BlobStore = storage.NewMemoryStore()
	if cfg.MinIO.Endpoint != "" {
		mc, err := storage.NewMinIOStorage(ctx, &storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("minio: %w", err)
		}
		blobs = mc
		a.deps["minio"] = mc.Ping
		log.Info("using minio blob store", zap.String("bucket", cfg.MinIO.Bucket))
	}
	blobs = storage.NewTimed(blobs, cfg.Storage.OpTimeout, log)

	a.Users = users.NewService(userRepo)
	a.Sessions = sessions.NewService(sessionRepo)
	a.Workspaces = wsservice.New(wsRepo,
		wsservice.WithDocumentCounter(docRepo),
		wsservice.WithUserDirectory(a.Users),
		wsservice.WithLogger(log))
	a.Documents = docservice.New(docRepo, blobs, a.Workspaces,
		docservice.WithLogger(log),
		docservice.WithPresignExpiry(cfg.MinIO.PresignExpiry),
		docservice.WithMaxUploadBytes(cfg.Storage.MaxUploadBytes))

	a.IDTokens = idTokenVerifier(ctx, cfg, log)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(a.Registry)
	return a, nil
}

func idTokenVerifier(ctx context.Context, cfg *config.Config, log *zap.Logger) middleware.Verifier {
	kc := cfg.Keycloak
	if kc.URL != "" && kc.Realm != "" && kc.ClientID != "" {
		v, err := oidc.NewVerifier(ctx, oidc.IssuerURL(kc.URL, kc.Realm), kc.ClientID)
		if err == nil {
			return v
		}
		log.Warn("failed to initialize OIDC verifier", zap.Error(err))
	}
	if kc.AllowInsecureToken {
		log.Warn("enabling insecure ID token verifier")
		return oidc.NewInsecureVerifier()
	}
	return nil
}

// Close disconnects MongoDB and Redis. Safe to call on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.Log.Warn("mongo disconnect", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// RouterOptions selects which route groups Router mounts.
type RouterOptions struct {
	// Auth mounts /auth/*, /api/v1/me and the user search.
	Auth bool
}

// Router builds the gin engine. Workspace and document routes always sit
// behind the bearer token middleware.
func (a *App) Router(opts RouterOptions) *gin.Engine {
	cfg := a.Config
	r := gin.New()
	r.Use(middleware.RequestLogger(a.Log), middleware.Recovery(a.Log), cors())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	handlers.RegisterSwagger(r)

	var limit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limit = append(limit, middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			limit = append(limit, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	auth := middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret), middleware.WithRevocations(a.Revocations))
	api := r.Group("/", append([]gin.HandlerFunc{auth}, limit...)...)
	wshandler.RegisterWorkspaceRoutes(api, a.Workspaces)
	dochandler.RegisterDocumentRoutes(api, a.Documents)

	if opts.Auth {
		h := handlers.NewAuthHandler(cfg, a.Users, a.Sessions, a.IDTokens, a.Revocations)
		h.Register(r.Group("/", limit...))
		h.RegisterProtected(api)
	}
	return r
}

func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	deps := map[string]bool{"oidc": a.Config.Keycloak.URL == "" || a.IDTokens != nil}
	if !deps["oidc"] {
		ready = false
	}
	for name, ping := range a.deps {
		ok := ping(ctx) == nil
		deps[name] = ok
		ready = ready && ok
	}
	uptime := time.Since(a.started).Round(time.Second).String()
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
}

// cors is permissive; deployments front the API with a proxy that narrows it.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+middleware.RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
