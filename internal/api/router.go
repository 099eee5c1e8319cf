package api

import (
	"object-detection-sensor/internal/api/handlers"
	"object-detection-sensor/internal/api/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter creates the gin engine with all API routes under /api.
func NewRouter(apiHandler *handlers.APIHandler, eventHandler *handlers.EventHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.Default())

	api := router.Group("/api")
	apiHandler.RegisterRoutes(api)
	if eventHandler != nil {
		eventHandler.RegisterRoutes(api)
	}

	return router
}
