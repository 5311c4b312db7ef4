package router

import (
	"venue_ops_backend/internal/handlers"
	"venue_ops_backend/internal/middleware"
	"venue_ops_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupPublicAuthRoutes mounts the routes reachable without a token.
func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.LoginUser)
}

func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.GET("/me", authHandler.GetCurrentUser)
	group.POST("/change-password", authHandler.ChangePassword)
	group.POST("/logout", authHandler.LogoutUser)
}

// SetupUserRoutes sets up the user management routes.
func SetupUserRoutes(authenticatedGroup *gin.RouterGroup, userHandler *handlers.UserHandler) {
	userRoutes := authenticatedGroup.Group("/users")
	{
		userRoutes.GET("/active", userHandler.ListActiveUsers)
		userRoutes.GET("/:id", userHandler.GetUserByID)

		management := userRoutes.Group("")
		management.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleManager))
		{
			management.GET("", userHandler.ListUsers)
			management.POST("", userHandler.CreateUser)
			management.PUT("/:id", userHandler.UpdateUser)
			management.PATCH("/:id/active", userHandler.SetUserActive)
		}
	}
}

// SetupPermissionRoutes sets up the permission routes. Changes are admin only.
func SetupPermissionRoutes(authenticatedGroup *gin.RouterGroup, permHandler *handlers.PermissionHandler) {
	permRoutes := authenticatedGroup.Group("/permissions")
	{
		permRoutes.GET("/available", permHandler.Available)
		permRoutes.GET("/me", permHandler.MyPermissions)
		permRoutes.GET("/user/:id", permHandler.UserPermissions)

		admin := permRoutes.Group("")
		admin.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			admin.GET("/role/:role", permHandler.RolePermissions)
			admin.POST("/grant", permHandler.Grant)
			admin.POST("/revoke", permHandler.Revoke)
			admin.POST("/bulk-grant", permHandler.BulkGrant)
			admin.POST("/bulk-revoke", permHandler.BulkRevoke)
		}
	}
}

// SetupStockRoutes sets up the stock catalog, batch, delivery, alert and report routes.
// Every route is gated on a permission from the caller's effective set.
func SetupStockRoutes(
	authenticatedGroup *gin.RouterGroup,
	checker middleware.PermissionChecker,
	stockHandler *handlers.StockHandler,
	deliveryHandler *handlers.DeliveryHandler,
	alertHandler *handlers.AlertHandler,
	reportHandler *handlers.ReportHandler,
) {
	view := middleware.RequirePermission(checker, models.PermViewStock)
	manage := middleware.RequirePermission(checker, models.PermManageStock)
	adjust := middleware.RequirePermission(checker, models.PermAdjustStock)
	accept := middleware.RequirePermission(checker, models.PermAcceptDeliveries)
	reports := middleware.RequirePermission(checker, models.PermViewStockReports)

	stockRoutes := authenticatedGroup.Group("/stock")
	{
		stockRoutes.GET("/categories", view, stockHandler.GetCategories)
		stockRoutes.POST("/categories", manage, stockHandler.CreateCategory)

		stockRoutes.GET("/items", view, stockHandler.GetItems)
		stockRoutes.POST("/items", manage, stockHandler.CreateItem)
		stockRoutes.GET("/items/:id", view, stockHandler.GetItemByID)
		stockRoutes.PUT("/items/:id", manage, stockHandler.UpdateItem)
		stockRoutes.DELETE("/items/:id", manage, stockHandler.DeleteItem)
		stockRoutes.POST("/items/:id/adjust", adjust, stockHandler.AdjustItem)
		stockRoutes.POST("/items/:id/consume", adjust, stockHandler.ConsumeItem)
		stockRoutes.GET("/items/:id/batches", view, stockHandler.GetItemBatches)
		stockRoutes.GET("/items/:id/transactions", view, stockHandler.GetItemTransactions)

		stockRoutes.GET("/batches/expiring", view, stockHandler.GetExpiringBatches)
		stockRoutes.POST("/batches/:id/adjust", adjust, stockHandler.AdjustBatch)

		stockRoutes.GET("/deliveries", view, deliveryHandler.GetDeliveries)
		stockRoutes.POST("/deliveries", accept, deliveryHandler.CreateDelivery)
		stockRoutes.GET("/deliveries/:id", view, deliveryHandler.GetDeliveryByID)
		stockRoutes.POST("/deliveries/:id/accept", accept, deliveryHandler.AcceptDelivery)
		stockRoutes.POST("/deliveries/:id/reject", accept, deliveryHandler.RejectDelivery)

		stockRoutes.GET("/alerts", view, alertHandler.GetAlerts)
		stockRoutes.POST("/alerts/recheck", manage, alertHandler.Recheck)
		stockRoutes.POST("/alerts/:id/acknowledge", view, alertHandler.Acknowledge)

		stockRoutes.GET("/reports/summary", reports, reportHandler.GetStockSummary)
		stockRoutes.GET("/reports/valuation", reports, reportHandler.GetStockValuation)
		stockRoutes.GET("/reports/valuation.xlsx", reports, reportHandler.DownloadStockValuation)
	}
}

// SetupScheduleRoutes sets up the shift schedule routes.
func SetupScheduleRoutes(authenticatedGroup *gin.RouterGroup, staffHandler *handlers.StaffHandler) {
	scheduleRoutes := authenticatedGroup.Group("/schedules")
	{
		scheduleRoutes.GET("/date/:date", staffHandler.GetShiftsByDate)
		scheduleRoutes.GET("/user/:userId", staffHandler.GetShiftsByUser)
		scheduleRoutes.GET("/on-duty/:date", staffHandler.GetOnDuty)

		management := scheduleRoutes.Group("")
		management.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleManager))
		{
			management.POST("", staffHandler.CreateShift)
			management.DELETE("/:id", staffHandler.DeleteShift)
		}
	}
}

// SetupTaskRoutes sets up the task routes. Permission checks live in the service.
func SetupTaskRoutes(authenticatedGroup *gin.RouterGroup, taskHandler *handlers.TaskHandler) {
	taskRoutes := authenticatedGroup.Group("/tasks")
	{
		taskRoutes.GET("", taskHandler.GetTasks)
		taskRoutes.POST("", taskHandler.CreateTask)
		taskRoutes.GET("/stats/overview", taskHandler.GetTaskStats)
		taskRoutes.GET("/date/:date", taskHandler.GetTasksByDate)
		taskRoutes.GET("/shift/:date", taskHandler.GetShiftTasks)
		taskRoutes.GET("/:id", taskHandler.GetTaskByID)
		taskRoutes.PUT("/:id", taskHandler.UpdateTask)
		taskRoutes.PATCH("/:id/status", taskHandler.UpdateTaskStatus)
		taskRoutes.POST("/:id/complete", taskHandler.CompleteTask)
		taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
	}
}

// SetupTemplateRoutes sets up the task template routes. Everyone signed in can read them.
func SetupTemplateRoutes(authenticatedGroup *gin.RouterGroup, templateHandler *handlers.TemplateHandler) {
	templateRoutes := authenticatedGroup.Group("/templates")
	{
		templateRoutes.GET("", templateHandler.GetTemplates)
		templateRoutes.GET("/:id", templateHandler.GetTemplateByID)

		management := templateRoutes.Group("")
		management.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleManager))
		{
			management.POST("", templateHandler.CreateTemplate)
			management.DELETE("/:id", templateHandler.DeleteTemplate)
		}
	}
}

// SetupTaskReportRoutes sets up the task, user and summary reports. Append ?format=xlsx for a workbook.
func SetupTaskReportRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	reportRoutes := authenticatedGroup.Group("/reports")
	{
		reportRoutes.POST("/tasks", reportHandler.CreateTaskReport)
		reportRoutes.GET("/user/:userId", reportHandler.GetUserReport)
		reportRoutes.POST("/summary", reportHandler.CreateSummaryReport)
	}
}

// SetupNotificationRoutes sets up the notification inbox routes.
func SetupNotificationRoutes(authenticatedGroup *gin.RouterGroup, notificationHandler *handlers.NotificationHandler) {
	notificationRoutes := authenticatedGroup.Group("/notifications")
	{
		notificationRoutes.GET("", notificationHandler.GetNotifications)
		notificationRoutes.PATCH("/read-all", notificationHandler.MarkAllRead)
		notificationRoutes.POST("/read-all", notificationHandler.MarkAllRead)
		notificationRoutes.PATCH("/:id/read", notificationHandler.MarkRead)
	}
}
