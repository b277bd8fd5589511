package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusconnect/internal/account"
	"campusconnect/internal/attendance"
	"campusconnect/internal/auth"
	"campusconnect/internal/config"
	"campusconnect/internal/course"
	"campusconnect/internal/department"
	"campusconnect/internal/evidence"
	"campusconnect/internal/faculty"
	"campusconnect/internal/handler"
	"campusconnect/internal/httpmiddleware"
	"campusconnect/internal/importer"
	"campusconnect/internal/queue"
	"campusconnect/internal/store"
	"campusconnect/internal/student"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
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
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var alerts queue.Queue
	if cfg.QueueBackend == "memory" {
		alerts = queue.NewInMemory(64)
	} else {
		alerts = queue.NewRedisQueue(redisClient.Client, "campusconnect:alerts")
	}

	accounts := account.NewRepository(db.Client)
	departments := department.NewRepository(db.Client)
	students := student.NewRepository(db.Client)
	facultyRepo := faculty.NewRepository(db.Client)
	courses := course.NewRepository(db.Client)

	att := attendance.NewService(attendance.NewSQLRepository(db), attendance.Config{
		Threshold:  cfg.DefaulterThreshold,
		EditWindow: cfg.EditWindow,
		TrendDays:  cfg.TrendDays,
		Cache:      redisClient,
		CacheTTL:   cfg.DashboardCacheTTL,
		Alerts:     alerts,
	})
	imports := importer.NewService(importer.NewSQLStore(db))

	// Evidence uploader (nil when not configured)
	var uploader *evidence.Uploader
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploader = evidence.NewUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("evidence storage configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("evidence storage not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := handler.New(cfg, accounts, departments, students, facultyRepo, courses, att, imports, uploader)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

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

	r.POST("/v1/auth/login", h.Login)

	authed := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	authed.POST("/auth/password", h.ChangePassword)

	// Read endpoints, open to every authenticated role.
	authed.GET("/attendance", h.ListAttendance)
	authed.GET("/dashboard", h.Dashboard)
	authed.GET("/departments", h.ListDepartments)
	authed.GET("/students", h.ListStudents)
	authed.GET("/students/:studentID", h.GetStudent)
	authed.GET("/faculty", h.ListFaculty)
	authed.GET("/courses", h.ListCourses)
	authed.GET("/courses/:id/prerequisites", h.ListPrerequisites)

	// Marking and editing is faculty/admin work.
	staff := authed.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleFaculty))
	staff.POST("/attendance", h.MarkAttendance)
	staff.POST("/attendance/bulk", h.MarkBulkAttendance)
	staff.PATCH("/attendance/:id", h.UpdateAttendance)
	staff.POST("/students/:id/recompute", h.RecomputeStudent)
	staff.POST("/evidence", h.UploadEvidence)

	// Directory mutations and imports are admin-only.
	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/imports/:kind", h.Import)
	admin.POST("/departments", h.CreateDepartment)
	admin.DELETE("/departments/:id", h.DeleteDepartment)
	admin.POST("/courses", h.CreateCourse)
	admin.POST("/courses/:id/prerequisites", h.AddPrerequisite)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
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

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
