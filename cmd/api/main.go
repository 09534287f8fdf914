package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/shs-portal/enrollment-api/api/swagger"
	"github.com/shs-portal/enrollment-api/internal/handler"
	"github.com/shs-portal/enrollment-api/internal/middleware"
	"github.com/shs-portal/enrollment-api/internal/models"
	"github.com/shs-portal/enrollment-api/internal/repository"
	"github.com/shs-portal/enrollment-api/internal/service"
	"github.com/shs-portal/enrollment-api/pkg/cache"
	"github.com/shs-portal/enrollment-api/pkg/config"
	"github.com/shs-portal/enrollment-api/pkg/database"
	"github.com/shs-portal/enrollment-api/pkg/jobs"
	"github.com/shs-portal/enrollment-api/pkg/logger"
	"github.com/shs-portal/enrollment-api/pkg/mailer"
	corsmiddleware "github.com/shs-portal/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/shs-portal/enrollment-api/pkg/middleware/requestid"
	"github.com/shs-portal/enrollment-api/pkg/storage"
)

// @title SHS Enrollment API
// @version 1.0.0
// @description Senior high school enrollment and registrar backend
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	var mail mailer.Mailer
	if cfg.Mail.SendgridAPIKey != "" {
		mail = mailer.NewSendgrid(cfg.Mail.SendgridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	} else {
		logr.Warn("SENDGRID_API_KEY not set, emails will be logged to console")
		mail = mailer.NewConsole(logr)
	}

	notifications := service.NewNotificationService(mail, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications.Start(ctx)
	defer notifications.Stop()

	applicantRepo := repository.NewApplicantRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	validate := validator.New()
	codeStore := cache.NewCodeStore(redisClient, "")

	metricsSvc := service.NewMetricsService()
	enrollmentSvc := service.NewEnrollmentService(applicantRepo, studentRepo, userRepo, store, validate, logr)
	admissionSvc := service.NewAdmissionService(applicantRepo, studentRepo, store, notifications, service.AdmissionConfig{
		SchoolName:        cfg.School.Name,
		TempPasswordBytes: cfg.School.TempPasswordBytes,
	}, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, studentRepo, subjectRepo, cfg.School.TerminalGrade, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, sectionRepo, subjectRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, studentRepo, sectionRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, studentRepo, codeStore, notifications, cfg.JWT, cfg.School.ResetCodeTTL, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, redisClient, cfg.Dashboard.CacheTTL, logr)
	reportSvc := service.NewReportService(sectionRepo, studentRepo, logr)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc, cfg.Uploads.MaxFileSizeBytes)
	admissionHandler := handler.NewAdmissionHandler(admissionSvc, metricsSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	sectionHandler := handler.NewSectionHandler(sectionSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	filesHandler := handler.NewFilesHandler(enrollmentSvc, store, signer)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	r.GET("/files/signed", filesHandler.Download)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface: intake wizard and authentication.
	api.POST("/enrollment", enrollmentHandler.Submit)
	api.POST("/enrollment/documents", enrollmentHandler.SubmitDocuments)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/password/reset", authHandler.RequestPasswordReset)
	api.POST("/auth/password/confirm", authHandler.ConfirmPasswordReset)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleStudent)

	authed.GET("/applicants", staff, enrollmentHandler.List)
	authed.GET("/applicants/:id", staff, enrollmentHandler.Get)
	authed.POST("/applicants/:id/approve", staff, admissionHandler.Approve)
	authed.POST("/applicants/:id/reject", staff, admissionHandler.Reject)
	authed.DELETE("/applicants/:id", adminOnly, admissionHandler.Delete)
	authed.GET("/applicants/:id/documents/:kind/url", staff, filesHandler.SignDocumentURL)

	authed.GET("/students", staff, studentHandler.List)
	authed.GET("/students/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleStaff), "SELF"), studentHandler.Get)
	authed.PUT("/students/:id", staff, studentHandler.Update)
	authed.DELETE("/students/:id", adminOnly, studentHandler.Delete)

	authed.GET("/sections", staff, sectionHandler.List)
	authed.GET("/sections/:id", staff, sectionHandler.Get)
	authed.POST("/sections", staff, sectionHandler.Create)
	authed.PUT("/sections/:id", staff, sectionHandler.Update)
	authed.DELETE("/sections/:id", adminOnly, sectionHandler.Delete)
	authed.POST("/sections/:id/students/:studentId/confirm", staff, sectionHandler.ConfirmStudent)
	authed.GET("/sections/:id/enrollment-list", staff, reportHandler.SectionEnrollmentList)

	authed.GET("/subjects", staff, subjectHandler.List)
	authed.GET("/subjects/:id", staff, subjectHandler.Get)
	authed.POST("/subjects", staff, subjectHandler.Create)
	authed.POST("/subjects/bulk", staff, subjectHandler.BulkCreate)
	authed.PUT("/subjects/:id", staff, subjectHandler.Update)
	authed.DELETE("/subjects/:id", adminOnly, subjectHandler.Delete)
	authed.POST("/subjects/:id/offerings", staff, subjectHandler.AddSectionOffering)
	authed.PUT("/subjects/:id/offerings/:offeringId", staff, subjectHandler.UpdateSectionOffering)
	authed.DELETE("/subjects/:id/offerings/:offeringId", staff, subjectHandler.DeleteSectionOffering)

	authed.GET("/users", adminOnly, userHandler.List)
	authed.GET("/users/:id", adminOnly, userHandler.Get)
	authed.POST("/users", adminOnly, userHandler.Create)
	authed.PUT("/users/:id", adminOnly, userHandler.Update)
	authed.DELETE("/users/:id", adminOnly, userHandler.Delete)

	authed.GET("/announcements", anyRole, announcementHandler.List)
	authed.GET("/announcements/:id", anyRole, announcementHandler.Get)
	authed.POST("/announcements", staff, announcementHandler.Create)
	authed.PUT("/announcements/:id", staff, announcementHandler.Update)
	authed.DELETE("/announcements/:id", staff, announcementHandler.Delete)

	authed.GET("/dashboard/stats", staff, dashboardHandler.Stats)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
