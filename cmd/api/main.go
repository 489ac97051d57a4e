package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/clock"
	"geoattend/internal/config"
	"geoattend/internal/directory"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.EnsureSchema(context.Background(), db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "geoattend:marks")
	}

	civil, err := clock.NewCivil(clock.System{}, cfg.Timezone)
	if err != nil {
		return err
	}

	repo := attendance.NewRepository(db.Client)
	dir := directory.NewRepository(db.Client)
	svc := attendance.NewService(repo, dir, dir, civil, cfg.SessionDuration, cfg.GeofenceRadiusM)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	var limiter httpmiddleware.Limiter
	if redisClient.Healthy(context.Background()) {
		limiter = httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin)
	} else {
		log.Println("redis unreachable, using in-memory rate limiter")
		limiter = httpmiddleware.NewMemoryLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}
	r.Use(httpmiddleware.RateLimit(limiter))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Provisioning surface: account management lives outside this service,
	// this endpoint only mints role-bearing tokens for known principals.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	teacher := r.Group("/v1/teacher", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleTeacher))

	teacher.POST("/sessions/start", func(c *gin.Context) {
		var req struct {
			ScheduledClassID string  `json:"scheduled_class_id" binding:"required"`
			Lat              float64 `json:"lat" binding:"required"`
			Lon              float64 `json:"lon" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess, err := svc.Open(c.Request.Context(), req.ScheduledClassID, auth.Subject(c), req.Lat, req.Lon)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sess)
	})

	teacher.POST("/sessions/:id/close", func(c *gin.Context) {
		if err := svc.Close(c.Request.Context(), c.Param("id"), auth.Subject(c)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
	})

	teacher.GET("/sessions/:id/live", func(c *gin.Context) {
		roster, err := svc.LiveRoster(c.Request.Context(), c.Param("id"), auth.Subject(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"roster": roster, "count": len(roster)})
	})

	student := r.Group("/v1/student", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent))

	student.POST("/attendance/mark", func(c *gin.Context) {
		var req struct {
			SessionID string  `json:"session_id" binding:"required"`
			DeviceID  string  `json:"device_id" binding:"required"`
			Lat       float64 `json:"lat" binding:"required"`
			Lon       float64 `json:"lon" binding:"required"`
			Accuracy  float64 `json:"accuracy"` // accepted, unused
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mark, err := svc.Mark(c.Request.Context(), auth.Subject(c), req.SessionID, req.DeviceID, req.Lat, req.Lon)
		if err != nil {
			writeError(c, err)
			return
		}

		evt := queue.MarkEvent{MarkID: mark.ID, StudentID: mark.StudentID, SessionID: mark.SessionID}
		if err := q.Publish(c.Request.Context(), evt); err != nil {
			log.Printf("queue publish failed for mark %s: %v", mark.ID, err)
		}

		c.JSON(http.StatusCreated, mark)
	})

	student.GET("/attendance/active", func(c *gin.Context) {
		sess, err := svc.ActiveForStudent(c.Request.Context(), auth.Subject(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if sess == nil {
			c.JSON(http.StatusOK, gin.H{"session": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess})
	})

	student.GET("/sessions/:id", func(c *gin.Context) {
		sess, marked, err := svc.SessionDetail(c.Request.Context(), c.Param("id"), auth.Subject(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess, "marked": marked})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// writeError translates taxonomy errors into structured responses and hides
// infrastructure failures behind a generic 500.
func writeError(c *gin.Context, err error) {
	status := attendance.HTTPStatus(err)
	var api *attendance.APIError
	if errors.As(err, &api) {
		c.JSON(status, gin.H{"code": api.Code, "error": api.Message, "details": api.Details})
		return
	}
	log.Printf("internal error on %s: %v", c.FullPath(), err)
	c.JSON(status, gin.H{"error": "internal error"})
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
