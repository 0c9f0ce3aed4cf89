package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

func (s *Server) routes() {
	s.Router.GET("/debug/mountains/:id/latest", s.handleGetLatest)
	s.Router.GET("/debug/mountains/:id/history", s.handleGetHistory)
	s.Router.GET("/debug/mountains/:id/snapshot", s.handleGetSnapshot)
	s.Router.GET("/debug/status", s.handleGetAllLatest)
	s.Router.GET("/debug/stats", s.handleStats)
	s.Router.POST("/debug/run", s.handleRunAll)
	s.Router.POST("/debug/run/:id", s.handleRunOne)
}

func (s *Server) handleGetLatest(c *gin.Context) {
	status, found, err := s.Engine.GetLatest(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recorded status for this mountain"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleGetAllLatest(c *gin.Context) {
	statuses, err := s.Engine.GetAllLatest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (s *Server) handleGetHistory(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		days = parsed
	}
	history, err := s.Engine.GetHistory(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleGetSnapshot(c *gin.Context) {
	snap, err := s.Engine.GetMountainSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown mountain id"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.Engine.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRunAll(c *gin.Context) {
	result, err := s.Engine.RunAll(c.Request.Context(), "debug-api")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result.Run)
}

func (s *Server) handleRunOne(c *gin.Context) {
	result, err := s.Engine.RunOne(c.Request.Context(), "debug-api", c.Param("id"))
	if err != nil {
		if models.KindOf(err) == models.ErrConfigMissing {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result.Run)
}
