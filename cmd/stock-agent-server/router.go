package main

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
	"github.com/aaaa47080/stock-agent-sub002/internal/orchestrator"
)

type queryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query" binding:"required"`
}

type resumeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Answer    string `json:"answer"`
}

type outcomeResponse struct {
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	Response  string         `json:"response,omitempty"`
	Question  *hitl.Question `json:"question,omitempty"`
}

func newRouter(container *serverContainer, logger *logging.Logger) http.Handler {
	logger = logging.OrNop(logger)
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/query", func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		outcome, err := container.Engine.Run(c.Request.Context(), req.SessionID, req.Query)
		if err != nil {
			logger.Error("query failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, toResponse(outcome))
	})

	v1.POST("/resume", func(c *gin.Context) {
		var req resumeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		outcome, err := container.Engine.Resume(c.Request.Context(), req.SessionID, req.Answer)
		if err != nil {
			if errors.Is(err, orchestrator.ErrCheckpointNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no suspended run for session"})
				return
			}
			logger.Error("resume failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resume failed"})
			return
		}
		c.JSON(http.StatusOK, toResponse(outcome))
	})

	return router
}

func toResponse(outcome *orchestrator.Outcome) outcomeResponse {
	return outcomeResponse{
		SessionID: outcome.SessionID,
		Status:    outcome.Status,
		Response:  outcome.Response,
		Question:  outcome.Question,
	}
}
