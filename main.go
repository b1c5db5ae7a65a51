package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tewahedanswers/answers/backend/go-services/handlers"
	"github.com/tewahedanswers/answers/backend/go-services/internal/authz"
	"github.com/tewahedanswers/answers/backend/go-services/internal/config"
	"github.com/tewahedanswers/answers/backend/go-services/internal/database"
	"github.com/tewahedanswers/answers/backend/go-services/internal/oidc"
	"github.com/tewahedanswers/answers/backend/go-services/internal/sessions"
	"github.com/tewahedanswers/answers/backend/go-services/internal/storage"
	"github.com/tewahedanswers/answers/backend/go-services/internal/users"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/metrics"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: issuer=%v mongo=%v redis=%v default_admin_set=%v",
		cfg.Auth.IssuerURL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Admin.DefaultEmail != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	ctx := context.Background()

	// Connect to Redis early so sessions, the token blacklist and the
	// rate limiter can use it when configured
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password})
		if err := redisClient.Ping(ctx).Err(); err == nil {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		} else {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// ID-token verifier against the configured identity provider
	var verifier middleware.Verifier
	if cfg.Auth.IssuerURL != "" && cfg.Auth.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	// Optional insecure verifier for integration tests: parse token claims without signature verification
	if verifier == nil {
		if strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN"))) == "true" {
			logger.Warn("enabling insecure token verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		}
	}

	// Persisted user store: MongoDB when configured, in-memory otherwise
	var userRepo users.UserRepository
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		// Retry/backoff when connecting to MongoDB to tolerate startup races
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
			mongoClient = nil
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
			usersCol := mongoClient.Database(cfg.MongoDB.Database).Collection("users")
			if err := database.EnsureUserIndexes(ctx, usersCol); err != nil {
				logger.Warnf("failed to ensure user indexes: %v", err)
			}
			userRepo = users.NewMongoUserRepository(usersCol)
		}
	}
	if userRepo == nil {
		logger.Warn("MongoDB unavailable; using in-memory user store (state is lost on restart)")
		userRepo = users.NewMemoryUserRepository()
	}

	userSvc := users.NewService(userRepo, cfg.Admin.DefaultEmail)
	if err := userSvc.EnsureDefaultAdmin(ctx); err != nil {
		logger.Warnf("failed to verify default admin record: %v", err)
	}

	// Session store: prefer Redis (fast, TTL native), fall back to Mongo
	var sessionsSvc *sessions.Service
	if redisClient != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(redisClient, "session:"))
		logger.Infof("using Redis for session storage")
	} else if mongoClient != nil {
		sessionsCol := mongoClient.Database(cfg.MongoDB.Database).Collection("sessions")
		sessionsSvc = sessions.NewService(sessions.NewMongoRepository(sessionsCol))
		logger.Infof("using MongoDB for session storage")
	}

	// The single shared identity pipeline: every request passes through it;
	// privileged routes enforce via the guards
	authzSvc := authz.NewService(verifier, userSvc, sessionsSvc, cfg)
	r.Use(middleware.Identity(authzSvc, cfg.Session.CookieName))

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["sessions"] = sessionsSvc != nil
		if sessionsSvc == nil {
			ready = false
		}
		deps["users"] = userRepo != nil

		// verifier readiness: if an issuer was configured we expect a verifier (or ALLOW_INSECURE_TOKEN)
		if cfg.Auth.IssuerURL != "" {
			deps["oidc"] = verifier != nil
			if verifier == nil {
				ready = false
			}
		} else {
			deps["oidc"] = true
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// Register handlers
	root := r.Group("/")
	if sessionsSvc != nil {
		handlers.NewAuthHandler(cfg, sessionsSvc).Register(root)
	} else {
		logger.Warnf("auth handlers not registered because no session store is available")
	}
	handlers.NewAdminHandler(userSvc).Register(root)

	// Avatar uploads need object storage; skip quietly when not configured
	if minioCfg := storage.LoadMinIOConfig(); minioCfg.Endpoint != "" {
		store, err := storage.NewAvatarStorage(minioCfg)
		if err != nil {
			logger.Warnf("failed to initialize avatar storage: %v", err)
		} else {
			handlers.NewAvatarHandler(userSvc, store).Register(root)
		}
	}

	handlers.RegisterSwagger(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting auth service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
