package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mesflow/backend/internal/config"
	"github.com/mesflow/backend/internal/db"
	"github.com/mesflow/backend/internal/erp"
	"github.com/mesflow/backend/internal/http/handlers"
	"github.com/mesflow/backend/internal/http/middleware"
	"github.com/mesflow/backend/internal/service"

	_ "github.com/mesflow/backend/docs"
)

func Router(cfg config.Config, store *db.Store, orders *erp.Cache, pipeline *service.Pipeline, alerts *service.AlertService, notifier *service.Notifier, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Alerts:    alerts,
		Pipeline:  pipeline,
		Notifier:  notifier,
		Orders:    orders,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/defect-alerts", h.AlertsList)
		api.GET("/defect-alerts/:id", h.AlertDetails)
		api.GET("/work-orders", h.WorkOrdersList)
		api.GET("/work-orders/:id", h.WorkOrderDetails)
		api.GET("/notifications", h.NotificationsList)
		api.GET("/production-orders", h.ProductionOrdersList)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/qc/failures", h.ReportQCFailure)
		admin.POST("/defect-alerts/:id/resolve", h.ResolveAlert)
		admin.POST("/notifications/:id/read", h.MarkNotificationRead)
		admin.POST("/work-orders/:id/notify-assignee", h.NotifyWorkOrderAssignee)
		admin.POST("/production-orders/lookup", h.ProductionOrdersLookup)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
