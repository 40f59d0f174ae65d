package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/vrp-import-service/internal/services"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
)

type HandlerManager struct {
	importHandler *ImportHandler
	logger        utils.Logger
}

func NewHandlerManager(importService services.ImportService, maxUploadBytes int64, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		importHandler: NewImportHandler(importService, maxUploadBytes, logger),
		logger:        logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(utils.LoggerMiddleware(hm.logger), utils.ContextLogger(hm.logger), OwnerMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "vrp-import-service",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", hm.importHandler.StartImport)
			imports.GET("", hm.importHandler.ListImports)
			imports.GET("/:id", hm.importHandler.GetImport)
			imports.POST("/:id/transition", hm.importHandler.Transition)
			imports.POST("/:id/undo", hm.importHandler.Undo)
			imports.POST("/:id/abort", hm.importHandler.Abort)

			// Column mapping
			imports.PUT("/:id/mappings", hm.importHandler.UpdateMapping)
			imports.POST("/:id/mappings/auto", hm.importHandler.AutoMap)
			imports.GET("/:id/mappings/suggestions", hm.importHandler.Suggestions)

			// Duplicate and location review
			imports.POST("/:id/duplicates/resolve", hm.importHandler.ResolveDuplicate)
			imports.POST("/:id/duplicates/accept", hm.importHandler.AcceptDuplicateSuggestions)
			imports.POST("/:id/locations/resolve", hm.importHandler.ResolveLocation)
			imports.POST("/:id/locations/auto", hm.importHandler.AutoResolveLocations)

			// Execution and results
			imports.POST("/:id/execute", hm.importHandler.Execute)
			imports.GET("/:id/report", hm.importHandler.GetReport)
		}

		v1.GET("/templates/:table", hm.importHandler.DownloadTemplate)
	}
}
