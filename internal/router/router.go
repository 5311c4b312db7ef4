package router

import (
	"net/http"

	"venue_ops_backend/internal/config"
	"venue_ops_backend/internal/handlers"
	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/middleware"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the process-wide resources the routes are built from.
type Deps struct {
	DB          *sqlx.DB
	Config      *config.Config
	Broadcaster realtime.Broadcaster
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

// Services is every service the HTTP layer calls.
type Services struct {
	Auth          services.AuthService
	Users         services.UserService
	Permissions   services.PermissionService
	Stock         services.StockService
	Batches       services.BatchService
	Deliveries    services.DeliveryService
	Alerts        services.AlertService
	Reports       services.ReportService
	Schedules     services.ScheduleService
	Tasks         services.TaskService
	Templates     services.TemplateService
	Notifications services.NotificationService
	Audit         services.AuditService
}

// NewServices wires repositories into services.
func NewServices(deps Deps) Services {
	db := deps.DB
	tx := repositories.NewTransactor(db)

	// Initialize Repositories
	userRepo := repositories.NewUserRepository(db)
	permRepo := repositories.NewPermissionRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	stockDeps := services.StockDeps{
		Stock:        repositories.NewStockRepository(db),
		Batches:      repositories.NewBatchRepository(db),
		Transactions: repositories.NewTransactionRepository(db),
		Deliveries:   repositories.NewDeliveryRepository(db),
		Alerts:       repositories.NewAlertRepository(db),
		Audit:        auditRepo,
		Tx:           tx,
		Broadcaster:  deps.Broadcaster,
		Metrics:      deps.Metrics,
	}

	alertCfg := deps.Config.Alerts
	alertService := services.NewAlertService(stockDeps, services.AlertSettings{
		ExpiringWithinDays: alertCfg.ExpiringWithinDays,
		LowStockSeverity:   alertCfg.LowStockSeverity,
		OutOfStockSeverity: alertCfg.OutOfStockSeverity,
		ExpiringSeverity:   alertCfg.ExpiringSeverity,
	})
	permService := services.NewPermissionService(permRepo, userRepo, auditRepo, tx)

	workDeps := services.WorkDeps{
		Users:         userRepo,
		Schedules:     repositories.NewScheduleRepository(db),
		Tasks:         repositories.NewTaskRepository(db),
		Templates:     repositories.NewTemplateRepository(db),
		Notifications: notificationRepo,
		Audit:         auditRepo,
		Tx:            tx,
		Permissions:   permService,
		Broadcaster:   deps.Broadcaster,
		Metrics:       deps.Metrics,
	}

	return Services{
		Auth:          services.NewAuthService(userRepo, auditRepo, tx),
		Users:         services.NewUserService(userRepo, auditRepo, tx),
		Permissions:   permService,
		Stock:         services.NewStockService(stockDeps, alertService),
		Batches:       services.NewBatchService(stockDeps, alertService, alertCfg.ListingWindowDays),
		Deliveries:    services.NewDeliveryService(stockDeps, alertService),
		Alerts:        alertService,
		Reports:       services.NewReportService(repositories.NewReportRepository(db), workDeps, alertCfg.ExpiringWithinDays),
		Schedules:     services.NewScheduleService(workDeps),
		Tasks:         services.NewTaskService(workDeps),
		Templates:     services.NewTemplateService(workDeps),
		Notifications: services.NewNotificationService(notificationRepo),
		Audit:         services.NewAuditService(auditRepo, permService),
	}
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, deps Deps) {
	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	Register(engine, NewServices(deps), deps.Broadcaster)
}

// Register mounts the /api/v1 routes for svc.
func Register(engine *gin.Engine, svc Services, broadcaster realtime.Broadcaster) {
	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	userHandler := handlers.NewUserHandler(svc.Users)
	permHandler := handlers.NewPermissionHandler(svc.Permissions)
	stockHandler := handlers.NewStockHandler(svc.Stock, svc.Batches)
	deliveryHandler := handlers.NewDeliveryHandler(svc.Deliveries)
	alertHandler := handlers.NewAlertHandler(svc.Alerts)
	reportHandler := handlers.NewReportHandler(svc.Reports)
	staffHandler := handlers.NewStaffHandler(svc.Schedules)
	taskHandler := handlers.NewTaskHandler(svc.Tasks)
	templateHandler := handlers.NewTemplateHandler(svc.Templates)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications, broadcaster)
	auditHandler := handlers.NewAuditHandler(svc.Audit)

	apiV1 := engine.Group("/api/v1")

	SetupPublicAuthRoutes(apiV1.Group("/auth"), authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupUserRoutes(authenticated, userHandler)
		SetupPermissionRoutes(authenticated, permHandler)
		SetupStockRoutes(authenticated, svc.Permissions, stockHandler, deliveryHandler, alertHandler, reportHandler)
		SetupScheduleRoutes(authenticated, staffHandler)
		SetupTaskRoutes(authenticated, taskHandler)
		SetupTemplateRoutes(authenticated, templateHandler)
		SetupTaskReportRoutes(authenticated, reportHandler)
		SetupNotificationRoutes(authenticated, notificationHandler)
		authenticated.GET("/audit-log", auditHandler.GetAuditLog)
		authenticated.GET("/events", notificationHandler.Events)
	}
}
