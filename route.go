package main

import (
	"net/http"

	"wcl_check/metrics"

	"github.com/gin-gonic/gin"
)

func route(g *gin.Engine) {
	g.Use(gin.ErrorLogger())

	metrics.Route(g)

	g.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	g.GET("/analysis", routeAnalysis)

	api := g.Group("/api")
	api.POST("/analysis", routeAnalyzeSync)
	api.POST("/jobs", routeJobSubmit)
	api.GET("/jobs/:id", routeJobStatus)
}
